// Command reindex rebuilds the search index from the persisted listing
// collection. Run it after changing the embedding model or to heal
// index drift from failed incremental updates.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MezgerSearch/mezger-engine/engine/search"
	"github.com/MezgerSearch/mezger-engine/engine/store"
	"github.com/MezgerSearch/mezger-engine/pkg/ollama"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	chunkSize := flag.Int("chunk", 64, "listings per indexing batch")
	dims := flag.Int("dims", 768, "embedding dimensions")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *chunkSize, *dims); err != nil {
		slog.Error("reindex failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, chunkSize, dims int) error {
	var st store.Store
	var err error
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		st, err = store.NewPGStore(ctx, dbURL)
	} else {
		st, err = store.NewJSONStore(envOr("DATA_PATH", "data/listings.json"))
	}
	if err != nil {
		return err
	}

	coll, err := st.Load(ctx)
	if err != nil {
		return err
	}

	index, err := search.New(envOr("QDRANT_URL", "localhost:6334"), envOr("QDRANT_COLLECTION", "listings"))
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, dims); err != nil {
		return err
	}

	emb := ollama.NewEmbedClient(envOr("OLLAMA_URL", "http://localhost:11434"), envOr("EMBED_MODEL", "nomic-embed-text"))
	indexer := search.NewIndexer(emb, index)

	start := time.Now()
	if err := indexer.Reindex(ctx, coll, chunkSize); err != nil {
		return err
	}
	slog.Info("reindex finished", "listings", coll.Len(), "duration", time.Since(start))
	return nil
}
