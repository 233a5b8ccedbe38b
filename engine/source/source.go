// Package source defines the adapter contract for listing sources and the
// fan-out that collects a batch from every adapter in parallel.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/engine/reconcile"
	"github.com/MezgerSearch/mezger-engine/pkg/fn"
)

// Adapter fetches raw records from one external source. Fetch returns
// everything the source currently shows for the adapter's category; an
// error means the scrape as a whole failed and nothing can be concluded
// from it.
type Adapter interface {
	Name() string
	Category() listing.Category
	Fetch(ctx context.Context) ([]listing.RawRecord, error)
}

// Collect runs every adapter with bounded concurrency and returns one
// batch per adapter, in adapter order. An adapter failure lands in its
// batch's Err field; it never aborts the other adapters.
func Collect(ctx context.Context, adapters []Adapter, workers int) []reconcile.Batch {
	return fn.ParMap(adapters, workers, func(a Adapter) reconcile.Batch {
		ctx, span := otel.Tracer("engine/source").Start(ctx, "source.fetch."+a.Name())
		defer span.End()

		start := time.Now()
		records, err := a.Fetch(ctx)
		b := reconcile.Batch{
			Source:   a.Name(),
			Category: a.Category(),
			Records:  records,
		}
		if err != nil {
			b.Err = fmt.Errorf("fetch %s: %w", a.Name(), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("source fetch failed",
				"source", a.Name(), "category", string(a.Category()),
				"duration", time.Since(start), "error", err)
			return b
		}
		slog.Info("source fetched",
			"source", a.Name(), "category", string(a.Category()),
			"records", len(records), "duration", time.Since(start))
		return b
	})
}
