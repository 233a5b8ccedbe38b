// Package reconcile folds scraped batches into the canonical listing
// collection. It owns the lifecycle rules: stable identity, field merge,
// status transitions on observation and absence, auction expiry and
// sold-result promotion.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// Policy holds the lifecycle knobs that vary per deployment.
type Policy struct {
	// CarDelistToSold flips an active car to sold when a successful
	// scrape of its source no longer contains it.
	CarDelistToSold bool
	// PartDelistToOutOfStock does the same for parts. Off by default:
	// catalog crawls are partial too often to trust absence.
	PartDelistToOutOfStock bool
	// PromoteExpiredAuctions converts an expired auction with a known
	// sold result into a sold car.
	PromoteExpiredAuctions bool
}

// DefaultPolicy matches production behavior.
func DefaultPolicy() Policy {
	return Policy{
		CarDelistToSold:        true,
		PartDelistToOutOfStock: false,
		PromoteExpiredAuctions: true,
	}
}

// Batch is one adapter's output for one run. Err marks the whole batch
// as failed; its records are ignored and its source is exempt from
// absence processing so an outage never reads as mass delisting.
type Batch struct {
	Source   string
	Category listing.Category
	Records  []listing.RawRecord
	Err      error
}

// Transition records one listing whose status changed during a run.
type Transition struct {
	Listing listing.Listing
	From    listing.Status
	To      listing.Status
}

// Summary reports what a run did.
type Summary struct {
	Added        int
	Updated      int
	Transitioned int
	Expired      int
	Promoted     int
	Malformed    int

	NewListings     []listing.Listing
	Transitions     []Transition
	ExpiredAuctions []listing.Listing
}

// Run reconciles the batches against existing and returns the next
// collection plus a summary. The input collection is never mutated.
func Run(ctx context.Context, existing listing.Collection, batches []Batch, runAt time.Time, pol Policy) (listing.Collection, Summary, error) {
	_, span := otel.Tracer("engine/reconcile").Start(ctx, "reconcile.run")
	defer span.End()

	next := existing.Clone()
	var sum Summary

	// Track which (category, source) pairs completed successfully and
	// which listing IDs each of them reported, so absence is only
	// meaningful against a full successful scrape.
	type key struct {
		cat listing.Category
		src string
	}
	completed := map[key]bool{}
	seen := map[key]map[string]bool{}

	for _, b := range batches {
		k := key{b.Category, b.Source}
		if !listing.ValidCategories[b.Category] {
			sum.Malformed += len(b.Records)
			slog.Warn("dropping batch",
				"source", b.Source, "category", string(b.Category), "error", listing.ErrUnknownCategory)
			continue
		}
		if b.Err != nil {
			slog.Warn("batch failed, carrying listings over",
				"source", b.Source, "category", string(b.Category), "error", b.Err)
			continue
		}
		completed[k] = true
		if seen[k] == nil {
			seen[k] = map[string]bool{}
		}

		for _, rec := range b.Records {
			if rec.Source == "" {
				rec.Source = b.Source
			}
			if err := listing.ValidateRecord(rec); err != nil {
				sum.Malformed++
				slog.Warn("dropping malformed record",
					"source", b.Source, "title", rec.Title, "error", err)
				continue
			}
			id, err := listing.ResolveID(rec.Source, rec.Link)
			if err != nil {
				sum.Malformed++
				continue
			}
			seen[k][id] = true

			set := next.Set(b.Category)
			old, ok := set[id]
			if !ok {
				l := newListing(id, b.Category, rec, runAt)
				set[id] = l
				sum.Added++
				sum.NewListings = append(sum.NewListings, l)
				continue
			}
			updated := merge(old, rec, runAt)
			set[id] = updated
			sum.Updated++
			if updated.Status != old.Status {
				sum.Transitioned++
				sum.Transitions = append(sum.Transitions, Transition{
					Listing: updated, From: old.Status, To: updated.Status,
				})
			}
		}
	}

	// Absence pass. Only listings belonging to a source that completed
	// this run are eligible; everything else carries over untouched.
	for _, cat := range []listing.Category{listing.CategoryCar, listing.CategoryPart} {
		set := next.Set(cat)
		for id, l := range set {
			k := key{cat, l.Source}
			if !completed[k] || seen[k][id] {
				continue
			}
			status, changed := unobservedStatus(l, pol)
			if !changed {
				continue
			}
			from := l.Status
			l.Status = status
			l.LastSeenAt = runAt
			if status == listing.StatusSold && l.SoldDate.IsZero() {
				l.SoldDate = runAt
			}
			set[id] = l
			sum.Transitioned++
			sum.Transitions = append(sum.Transitions, Transition{Listing: l, From: from, To: status})
		}
	}

	// Auction expiry and promotion.
	kept, expired := Sweep(next.Auctions, runAt)
	next.Auctions = kept
	sum.Expired = len(expired)
	sum.ExpiredAuctions = expired
	if pol.PromoteExpiredAuctions {
		sum.Promoted = promote(&next, expired, batches, runAt, &sum)
	}

	next.LastUpdated = runAt
	return next, sum, nil
}

// promote turns expired auctions into sold cars when a completed batch
// carried a sold result for the same normalized link. The promoted car
// keeps the auction's FirstSeenAt so listing age survives the category
// change.
func promote(next *listing.Collection, expired []listing.Listing, batches []Batch, runAt time.Time, sum *Summary) int {
	results := map[string]listing.RawRecord{}
	for _, b := range batches {
		if b.Err != nil {
			continue
		}
		for _, rec := range b.Records {
			if rec.SoldPrice <= 0 {
				continue
			}
			norm, err := listing.NormalizeLink(rec.Link)
			if err != nil {
				continue
			}
			results[rec.Source+"\x00"+norm] = rec
		}
	}

	n := 0
	for _, a := range expired {
		norm, err := listing.NormalizeLink(a.Link)
		if err != nil {
			continue
		}
		rec, ok := results[a.Source+"\x00"+norm]
		if !ok {
			continue
		}
		id, err := listing.ResolveID(a.Source, a.Link)
		if err != nil {
			continue
		}
		car := newListing(id, listing.CategoryCar, rec, runAt)
		car.Status = listing.StatusSold
		car.SoldPrice = rec.SoldPrice
		car.SoldDate = rec.SoldDate
		if car.SoldDate.IsZero() {
			car.SoldDate = runAt
		}
		car.FirstSeenAt = a.FirstSeenAt
		// The results feed may have created or updated this car already.
		// FirstSeenAt only ever moves to the earliest known sighting.
		if old, ok := next.Cars[id]; ok && old.FirstSeenAt.Before(car.FirstSeenAt) {
			car.FirstSeenAt = old.FirstSeenAt
		}
		if car.Title == "" {
			car.Title = a.Title
		}
		if car.Image == "" {
			car.Image = a.Image
		}
		next.Cars[id] = car
		// The results record may already have been added as a car this
		// run; replace that entry instead of announcing it twice.
		replaced := false
		for i := range sum.NewListings {
			if sum.NewListings[i].ID == id {
				sum.NewListings[i] = car
				replaced = true
				break
			}
		}
		if !replaced {
			sum.NewListings = append(sum.NewListings, car)
		}
		n++
	}
	return n
}
