package pelican

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

func catalogServer(t *testing.T, items []catalogItem) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog.json" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(catalogPage{Items: items})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_FiltersAndMaps(t *testing.T) {
	srv := catalogServer(t, []catalogItem{
		{Title: "GT3 Engine Mount", URL: "https://example.com/parts/1", Price: 450,
			PartNumber: "996-375-043-51", Stock: "In Stock"},
		{Title: "Mezger Oil Pump", URL: "https://example.com/parts/2", Price: 1890,
			PartNumber: "996-107-013-52", Stock: "Back Order 2 weeks"},
		{Title: "Boxster Floor Mats", URL: "https://example.com/parts/3", Price: 99},
	})

	records, err := New(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (floor mats filtered out)", len(records))
	}
	if records[0].Source != SourceName || records[0].PartNumber != "996-375-043-51" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].StockText != "Back Order 2 weeks" {
		t.Errorf("StockText = %q", records[1].StockText)
	}
}

func TestFetch_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(catalogPage{Items: []catalogItem{
			{Title: "GT3 Engine Mount", URL: "https://example.com/parts/1"},
		}})
	}))
	defer srv.Close()

	a := New(srv.URL)
	a.retry.InitialWait = time.Millisecond
	a.retry.MaxWait = 2 * time.Millisecond

	records, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestFetch_ExhaustedRetriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New(srv.URL)
	a.retry.MaxAttempts = 2
	a.retry.InitialWait = time.Millisecond
	a.retry.MaxWait = 2 * time.Millisecond

	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

func TestAdapterContract(t *testing.T) {
	a := New("http://invalid.invalid")
	if a.Name() != "pelican" || a.Category() != listing.CategoryPart {
		t.Errorf("adapter contract: %s/%s", a.Name(), a.Category())
	}
}
