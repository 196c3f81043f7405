package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and LS_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"corpus_dir", cfg.Paths.CorpusDir,
		"index_file", cfg.Paths.IndexFile,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexer failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	opts := []indexer.Option{indexer.WithMetrics(m)}
	sources, closeSources := manifestSources(ctx, cfg, postgres.New)
	defer closeSources()
	if len(sources) > 0 {
		opts = append(opts, indexer.WithManifest(sources))
	}

	result, err := indexer.NewBuilder(indexer.OptionsFromConfig(cfg), opts...).Build(ctx)
	if err != nil {
		return fmt.Errorf("index build: %w", err)
	}
	slog.Info("index build finished",
		"documents", result.Documents,
		"lemmas", result.Lemmas,
		"postings", result.Postings,
		"malformed", result.Malformed,
		"duration", result.Duration,
	)

	if !cfg.Kafka.Enabled {
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotRebuilt)
	defer producer.Close()

	event := snapshot.RebuiltEvent{
		IndexPath:  result.IndexPath,
		WeightsDir: result.WeightsDir,
		BoltPath:   result.BoltPath,
		Documents:  result.Documents,
		Lemmas:     result.Lemmas,
		FinishedAt: result.FinishedAt,
	}
	err = resilience.Retry(ctx, "announce-rebuild", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		return producer.Publish(ctx, event.Event())
	})
	if err != nil {
		return fmt.Errorf("announcing rebuild on %s: %w", cfg.Kafka.Topics.SnapshotRebuilt, err)
	}
	slog.Info("rebuild announced", "topic", cfg.Kafka.Topics.SnapshotRebuilt)
	return nil
}

type pgConnector func(ctx context.Context, cfg config.PostgresConfig) (*postgres.Client, error)

// manifestSources resolves document sources from the manifest file and,
// when enabled, the documents table. The returned func releases the
// database pool and is never nil.
func manifestSources(ctx context.Context, cfg *config.Config, connect pgConnector) (manifest.Chain, func()) {
	var chain manifest.Chain
	if cfg.Paths.ManifestFile != "" {
		file, err := manifest.Load(cfg.Paths.ManifestFile)
		if err != nil && !apperrors.Is(err, apperrors.ErrMissingResource) {
			slog.Warn("manifest unreadable", "path", cfg.Paths.ManifestFile, "error", err)
		}
		chain = append(chain, file)
	}
	if !cfg.Postgres.Enabled {
		return chain, func() {}
	}
	pg, err := connect(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, skipping documents table", "error", err)
		return chain, func() {}
	}
	chain = append(chain, manifest.NewPGStore(pg, 0))
	return chain, func() {
		if err := pg.Close(); err != nil {
			slog.Warn("closing postgres", "error", err)
		}
	}
}
