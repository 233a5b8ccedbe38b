package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/engine/store"
)

// cache keeps the collection in memory so listing requests never touch
// the store on the hot path. It refreshes on TTL expiry and immediately
// when a collector run event arrives.
type cache struct {
	st  store.Store
	ttl time.Duration

	mu       sync.RWMutex
	coll     listing.Collection
	loadedAt time.Time
}

func newCache(st store.Store, ttl time.Duration) *cache {
	return &cache{st: st, ttl: ttl}
}

// get returns the cached collection, refreshing it when stale. A failed
// refresh serves the previous snapshot.
func (c *cache) get(ctx context.Context) listing.Collection {
	c.mu.RLock()
	fresh := !c.loadedAt.IsZero() && time.Since(c.loadedAt) < c.ttl
	coll := c.coll
	c.mu.RUnlock()
	if fresh {
		return coll
	}
	return c.refresh(ctx)
}

func (c *cache) refresh(ctx context.Context) listing.Collection {
	coll, err := c.st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		coll = listing.NewCollection()
	} else if err != nil {
		slog.Error("collection refresh failed", "error", err)
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.coll
	}
	c.mu.Lock()
	c.coll = coll
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return coll
}
