// Package events publishes collector activity to NATS so downstream
// consumers (the API cache, alerting, archival) see new and sold
// listings without polling the store.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/engine/reconcile"
	"github.com/MezgerSearch/mezger-engine/pkg/natsutil"
)

// Subjects for collector events.
const (
	SubjectListingAdded = "mezger.listings.added"
	SubjectListingSold  = "mezger.listings.sold"
	SubjectRunComplete  = "mezger.runs"
)

// ListingEvent carries one listing plus the run timestamp.
type ListingEvent struct {
	Listing listing.Listing `json:"listing"`
	RunAt   time.Time       `json:"run_at"`
}

// RunEvent summarises one completed reconciliation run.
type RunEvent struct {
	RunAt        time.Time `json:"run_at"`
	Added        int       `json:"added"`
	Updated      int       `json:"updated"`
	Transitioned int       `json:"transitioned"`
	Expired      int       `json:"expired"`
	Promoted     int       `json:"promoted"`
	Malformed    int       `json:"malformed"`
	Total        int       `json:"total"`
}

// Publisher emits collector events. A nil Publisher is a no-op, so the
// collector runs unchanged without a NATS deployment.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher wraps an established NATS connection.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// PublishRun emits the per-listing events followed by the run summary.
// Publish failures are logged and swallowed: eventing is best-effort and
// must never fail a run whose collection is already saved.
func (p *Publisher) PublishRun(ctx context.Context, sum reconcile.Summary, total int, runAt time.Time) {
	if p == nil || p.nc == nil {
		return
	}
	for _, l := range sum.NewListings {
		if err := natsutil.Publish(ctx, p.nc, SubjectListingAdded, ListingEvent{Listing: l, RunAt: runAt}); err != nil {
			slog.Warn("publish listing added failed", "listing_id", l.ID, "error", err)
		}
	}
	for _, tr := range sum.Transitions {
		if tr.To != listing.StatusSold {
			continue
		}
		if err := natsutil.Publish(ctx, p.nc, SubjectListingSold, ListingEvent{Listing: tr.Listing, RunAt: runAt}); err != nil {
			slog.Warn("publish listing sold failed", "listing_id", tr.Listing.ID, "error", err)
		}
	}
	run := RunEvent{
		RunAt:        runAt,
		Added:        sum.Added,
		Updated:      sum.Updated,
		Transitioned: sum.Transitioned,
		Expired:      sum.Expired,
		Promoted:     sum.Promoted,
		Malformed:    sum.Malformed,
		Total:        total,
	}
	if err := natsutil.Publish(ctx, p.nc, SubjectRunComplete, run); err != nil {
		slog.Warn("publish run summary failed", "error", err)
	}
}
