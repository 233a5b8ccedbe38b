package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/pkg/fn"
)

// Embedder turns text into a vector. pkg/ollama satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer keeps the vector index in step with the listing collection.
type Indexer struct {
	emb   Embedder
	index *Index
}

// NewIndexer pairs an embedder with an index.
func NewIndexer(emb Embedder, index *Index) *Indexer {
	return &Indexer{emb: emb, index: index}
}

// DocText renders the text that stands in for a listing in vector space.
func DocText(l listing.Listing) string {
	parts := []string{l.Title}
	if l.Year != 0 {
		parts = append(parts, fmt.Sprintf("%d", l.Year))
	}
	if l.PartNumber != "" {
		parts = append(parts, l.PartNumber)
	}
	if l.Location != "" {
		parts = append(parts, l.Location)
	}
	if l.Desc != "" {
		parts = append(parts, l.Desc)
	}
	return strings.TrimSpace(strings.Join(fn.Filter(parts, func(s string) bool { return s != "" }), " "))
}

// IndexListings embeds and upserts the given listings.
func (ix *Indexer) IndexListings(ctx context.Context, listings []listing.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	vectors := make([][]float32, len(listings))
	for i, l := range listings {
		v, err := ix.emb.Embed(ctx, DocText(l))
		if err != nil {
			return fmt.Errorf("embed %s: %w", l.ID, err)
		}
		vectors[i] = v
	}
	return ix.index.Upsert(ctx, listings, vectors)
}

// RemoveListings drops the points for listings that left the collection.
func (ix *Indexer) RemoveListings(ctx context.Context, ids []string) error {
	return ix.index.Remove(ctx, ids)
}

// Reindex rebuilds the index from the full collection in chunks.
func (ix *Indexer) Reindex(ctx context.Context, c listing.Collection, chunkSize int) error {
	all := c.All()
	for _, chunk := range fn.Chunk(all, chunkSize) {
		if err := ix.IndexListings(ctx, chunk); err != nil {
			return err
		}
		slog.Info("indexed chunk", "listings", len(chunk))
	}
	slog.Info("reindex complete", "listings", len(all))
	return nil
}

// Query embeds the text and searches the index.
func (ix *Indexer) Query(ctx context.Context, text string, topK int, filters map[string]string) ([]Hit, error) {
	v, err := ix.emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.index.Search(ctx, v, topK, filters)
}
