// Command collector scrapes every configured source, reconciles the
// batches into the listing collection, persists it, and fans the run
// out to NATS and the search index.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/MezgerSearch/mezger-engine/cmd/collector/bat"
	"github.com/MezgerSearch/mezger-engine/cmd/collector/pelican"
	"github.com/MezgerSearch/mezger-engine/engine/events"
	"github.com/MezgerSearch/mezger-engine/engine/listing"
	"github.com/MezgerSearch/mezger-engine/engine/reconcile"
	"github.com/MezgerSearch/mezger-engine/engine/search"
	"github.com/MezgerSearch/mezger-engine/engine/source"
	"github.com/MezgerSearch/mezger-engine/engine/store"
	"github.com/MezgerSearch/mezger-engine/pkg/fn"
	"github.com/MezgerSearch/mezger-engine/pkg/metrics"
	"github.com/MezgerSearch/mezger-engine/pkg/ollama"
)

type config struct {
	DataPath    string
	DatabaseURL string
	NATSURL     string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	EmbedModel  string
	EmbedDims   int

	BatAuctionsURL string
	BatResultsURL  string
	PelicanURL     string
}

func loadConfig() config {
	return config{
		DataPath:    envOr("DATA_PATH", "data/listings.json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		QdrantURL:   os.Getenv("QDRANT_URL"),
		Collection:  envOr("QDRANT_COLLECTION", "listings"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDims:   768,

		BatAuctionsURL: envOr("BAT_AUCTIONS_URL", "https://bringatrailer.com/porsche/911-gt3-gt2-turbo-mezger/feed/"),
		BatResultsURL:  envOr("BAT_RESULTS_URL", "https://bringatrailer.com/porsche/911-gt3-gt2-turbo-mezger/results/feed/"),
		PelicanURL:     envOr("PELICAN_URL", "https://www.pelicanparts.com/Porsche"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	interval := flag.Duration("interval", 0, "run interval (0 = one-shot)")
	workers := flag.Int("workers", 4, "concurrent source fetches")
	sources := flag.String("sources", "bat,pelican", "comma-separated sources to collect")
	metricsPort := flag.Int("metrics-port", 9094, "port for /metrics")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := loadConfig()

	if err := run(cfg, *interval, *workers, *sources, *metricsPort); err != nil {
		slog.Error("collector exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, interval time.Duration, workers int, sources string, metricsPort int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	mRuns := met.Counter("mezger_collector_runs_total", "Completed collector runs")
	mRunErrors := met.Counter("mezger_collector_run_errors_total", "Failed collector runs")
	mRunDur := met.Histogram("mezger_collector_run_duration_seconds", "Collector run duration", nil)
	mListings := met.Gauge("mezger_collector_listings", "Listings in the collection after the last run")
	mAdded := met.Counter("mezger_collector_added_total", "Listings added")
	mTransitioned := met.Counter("mezger_collector_transitions_total", "Status transitions")
	mMalformed := met.Counter("mezger_collector_malformed_total", "Malformed records dropped")
	met.CollectRuntime("mezger_collector", 15*time.Second)
	met.ServeAsync(metricsPort)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	var pub *events.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("mezger-collector"))
		if err != nil {
			return err
		}
		defer nc.Close()
		pub = events.NewPublisher(nc)
	}

	var indexer *search.Indexer
	if cfg.QdrantURL != "" {
		index, err := search.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return err
		}
		defer index.Close()
		if err := index.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
			return err
		}
		indexer = search.NewIndexer(ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), index)
	}

	adapters, err := buildAdapters(cfg, sources)
	if err != nil {
		return err
	}

	onRun := func(sum reconcile.Summary, total int) {
		mListings.Set(int64(total))
		mAdded.Add(int64(sum.Added))
		mTransitioned.Add(int64(sum.Transitioned))
		mMalformed.Add(int64(sum.Malformed))
	}
	runOnce := func() {
		start := time.Now()
		if err := collect(ctx, st, adapters, workers, pub, indexer, onRun); err != nil {
			mRunErrors.Inc()
			slog.Error("run failed", "error", err)
			return
		}
		mRuns.Inc()
		mRunDur.Since(start)
	}

	runOnce()
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

func openStore(ctx context.Context, cfg config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPGStore(ctx, cfg.DatabaseURL)
	}
	return store.NewJSONStore(cfg.DataPath)
}

func buildAdapters(cfg config, sources string) ([]source.Adapter, error) {
	var adapters []source.Adapter
	for _, name := range strings.Split(sources, ",") {
		switch strings.TrimSpace(name) {
		case "bat":
			c := bat.NewClient(cfg.BatAuctionsURL, cfg.BatResultsURL)
			adapters = append(adapters, c.NewAuctions(), c.NewResults())
		case "pelican":
			adapters = append(adapters, pelican.New(cfg.PelicanURL))
		case "":
		default:
			return nil, errors.New("unknown source: " + name)
		}
	}
	if len(adapters) == 0 {
		return nil, errors.New("no sources configured")
	}
	return adapters, nil
}

func collect(ctx context.Context, st store.Store, adapters []source.Adapter, workers int, pub *events.Publisher, indexer *search.Indexer, onRun func(reconcile.Summary, int)) error {
	existing, err := st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		existing = listing.NewCollection()
	} else if err != nil {
		return err
	}

	runAt := time.Now().UTC()
	batches := source.Collect(ctx, adapters, workers)
	next, sum, err := reconcile.Run(ctx, existing, batches, runAt, reconcile.DefaultPolicy())
	if err != nil {
		return err
	}

	if err := st.Save(ctx, next); err != nil {
		return err
	}
	slog.Info("run complete",
		"added", sum.Added, "updated", sum.Updated, "transitioned", sum.Transitioned,
		"expired", sum.Expired, "promoted", sum.Promoted, "malformed", sum.Malformed,
		"total", next.Len())
	if onRun != nil {
		onRun(sum, next.Len())
	}

	// Events and index updates are independent of each other and of the
	// saved state; neither can fail the run.
	fn.FanOut(
		func() error {
			pub.PublishRun(ctx, sum, next.Len(), runAt)
			return nil
		},
		func() error {
			if indexer == nil {
				return nil
			}
			if err := indexListings(ctx, indexer, sum); err != nil {
				// The collection is saved; index drift heals on the next
				// full reindex.
				slog.Warn("index update failed", "error", err)
			}
			return nil
		},
	)
	return nil
}

func indexListings(ctx context.Context, indexer *search.Indexer, sum reconcile.Summary) error {
	touched := make([]listing.Listing, 0, len(sum.NewListings)+len(sum.Transitions))
	touched = append(touched, sum.NewListings...)
	for _, tr := range sum.Transitions {
		touched = append(touched, tr.Listing)
	}
	if err := indexer.IndexListings(ctx, touched); err != nil {
		return err
	}
	if len(sum.ExpiredAuctions) > 0 {
		ids := make([]string, len(sum.ExpiredAuctions))
		for i, a := range sum.ExpiredAuctions {
			ids[i] = a.ID
		}
		return indexer.RemoveListings(ctx, ids)
	}
	return nil
}
