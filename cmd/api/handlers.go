package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/engine/search"
	"github.com/MezgerSearch/mezger-engine/pkg/fn"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ListingsResponse is the JSON response for GET /api/listings.
type ListingsResponse struct {
	Listings    []listing.Listing `json:"listings"`
	Total       int               `json:"total"`
	LastUpdated string            `json:"last_updated"`
}

func handleListings(c *cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coll := c.get(r.Context())
		q := r.URL.Query()

		all := coll.All()
		if cat := q.Get("category"); cat != "" {
			if !listing.ValidCategories[listing.Category(cat)] {
				http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
				return
			}
			all = fn.Filter(all, func(l listing.Listing) bool { return l.Category == listing.Category(cat) })
		}
		if status := q.Get("status"); status != "" {
			all = fn.Filter(all, func(l listing.Listing) bool { return string(l.Status) == status })
		}
		if src := q.Get("source"); src != "" {
			all = fn.Filter(all, func(l listing.Listing) bool { return l.Source == src })
		}
		if text := strings.ToLower(q.Get("q")); text != "" {
			all = fn.Filter(all, func(l listing.Listing) bool {
				return strings.Contains(strings.ToLower(l.Title), text) ||
					strings.Contains(strings.ToLower(l.PartNumber), text)
			})
		}

		last := ""
		if !coll.LastUpdated.IsZero() {
			last = coll.LastUpdated.Format("2006-01-02T15:04:05Z07:00")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ListingsResponse{Listings: all, Total: len(all), LastUpdated: last})
	}
}

func handleListing(c *cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		coll := c.get(r.Context())
		for _, set := range []map[string]listing.Listing{coll.Cars, coll.Parts, coll.Auctions} {
			if l, ok := set[id]; ok {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(l)
				return
			}
		}
		http.Error(w, `{"error":"listing not found"}`, http.StatusNotFound)
	}
}

// SearchResponse is the JSON response for GET /api/search.
type SearchResponse struct {
	Hits []search.Hit `json:"hits"`
}

func handleSearch(indexer *search.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		text := q.Get("q")
		if text == "" {
			http.Error(w, `{"error":"q is required"}`, http.StatusBadRequest)
			return
		}
		if indexer == nil {
			http.Error(w, `{"error":"search is not configured"}`, http.StatusServiceUnavailable)
			return
		}
		limit := 10
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, `{"error":"limit must be 1-100"}`, http.StatusBadRequest)
				return
			}
			limit = n
		}
		filters := map[string]string{}
		if cat := q.Get("category"); cat != "" {
			filters["category"] = cat
		}
		if status := q.Get("status"); status != "" {
			filters["status"] = status
		}

		hits, err := indexer.Query(r.Context(), text, limit, filters)
		if err != nil {
			slog.Error("search query failed", "error", err)
			http.Error(w, `{"error":"search failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{Hits: hits})
	}
}
