// Command api serves the listing collection over HTTP: filtered listing
// queries from a cached snapshot and semantic search against the vector
// index.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/MezgerSearch/mezger-engine/engine/events"
	"github.com/MezgerSearch/mezger-engine/engine/search"
	"github.com/MezgerSearch/mezger-engine/engine/store"
	"github.com/MezgerSearch/mezger-engine/pkg/metrics"
	"github.com/MezgerSearch/mezger-engine/pkg/mid"
	"github.com/MezgerSearch/mezger-engine/pkg/natsutil"
	"github.com/MezgerSearch/mezger-engine/pkg/ollama"
)

type config struct {
	Port        string
	DataPath    string
	DatabaseURL string
	NATSURL     string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	EmbedModel  string
	CacheTTL    time.Duration
	CORSOrigin  string
	MetricsPort int
}

func loadConfig() config {
	ttl := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			ttl = d
		}
	}
	return config{
		Port:        envOr("PORT", "8080"),
		DataPath:    envOr("DATA_PATH", "data/listings.json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		QdrantURL:   os.Getenv("QDRANT_URL"),
		Collection:  envOr("QDRANT_COLLECTION", "listings"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", "nomic-embed-text"),
		CacheTTL:    ttl,
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MetricsPort: 9095,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.CollectRuntime("mezger_api", 15*time.Second)
	met.ServeAsync(cfg.MetricsPort)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	c := newCache(st, cfg.CacheTTL)
	c.refresh(ctx)

	// A collector run event invalidates the cache immediately instead of
	// waiting out the TTL.
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("mezger-api"))
		if err != nil {
			return err
		}
		defer nc.Close()
		sub, err := natsutil.Subscribe(nc, events.SubjectRunComplete, func(ctx context.Context, e events.RunEvent) {
			logger.Info("run event received, refreshing cache", "added", e.Added, "total", e.Total)
			c.refresh(ctx)
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	var indexer *search.Indexer
	if cfg.QdrantURL != "" {
		index, err := search.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return err
		}
		defer index.Close()
		indexer = search.NewIndexer(ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), index)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/listings", handleListings(c))
	mux.HandleFunc("GET /api/listings/{id}", handleListing(c))
	mux.HandleFunc("GET /api/search", handleSearch(indexer))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("mezger-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func openStore(ctx context.Context, cfg config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPGStore(ctx, cfg.DatabaseURL)
	}
	return store.NewJSONStore(cfg.DataPath)
}
