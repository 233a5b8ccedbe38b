// Package store persists the listing collection. Two implementations
// exist: a JSON document on disk matching the public data file, and a
// Postgres table for deployments that want queryable history.
package store

import (
	"context"
	"errors"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// ErrNotFound is returned by Load when no collection has been saved yet.
// Callers start from an empty collection in that case.
var ErrNotFound = errors.New("store: no collection saved")

// Store loads and saves whole collections. Save replaces the previous
// state atomically; a reader never observes a half-written collection.
type Store interface {
	Load(ctx context.Context) (listing.Collection, error)
	Save(ctx context.Context, c listing.Collection) error
}
