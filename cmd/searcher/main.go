package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	holder, err := snapshot.Open(ctx, snapshot.PathsFromConfig(cfg.Paths), m)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}
	summary := holder.Current().Summary()
	slog.Info("snapshot loaded",
		"fingerprint", summary.Fingerprint,
		"lemmas", summary.Lemmas,
		"documents", summary.Documents,
	)
	if holder.Current().Incomplete() {
		slog.Warn("snapshot is incomplete, every query will come back empty", "problems", summary.Stats.Problems)
	}

	checker := health.NewChecker()
	checker.Require("snapshot", holder.Probe)

	var sources manifest.Chain
	if cfg.Paths.ManifestFile != "" {
		file, err := manifest.Load(cfg.Paths.ManifestFile)
		if err != nil && !apperrors.Is(err, apperrors.ErrMissingResource) {
			slog.Warn("manifest unreadable", "path", cfg.Paths.ManifestFile, "error", err)
		}
		sources = append(sources, file)
	}

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, manifest and analytics persistence disabled", "error", err)
		} else {
			defer pg.Close()
			store := manifest.NewPGStore(pg, 0)
			if err := store.Migrate(ctx); err != nil {
				slog.Warn("manifest migration failed", "error", err)
			}
			sources = append(sources, store)
			checker.Optional("postgres", pg.Ping)
		}
	}

	execOpts := []executor.Option{executor.WithMetrics(m)}
	if len(sources) > 0 {
		execOpts = append(execOpts, executor.WithSourceLookup(sources))
	}
	exec := executor.New(holder, cfg.Search, execOpts...)

	handlerOpts := []handler.Option{handler.WithMetrics(m)}

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache := cache.New(redisClient, cfg.Redis.CacheTTL, m)
			handlerOpts = append(handlerOpts, handler.WithCache(queryCache))
			checker.Optional("redis", redisClient.Ping)

			previous := holder.Current().Fingerprint
			holder.OnSwap(func(s *snapshot.Snapshot) {
				old := previous
				previous = s.Fingerprint
				if old == s.Fingerprint {
					return
				}
				n, err := queryCache.InvalidateSnapshot(context.Background(), old)
				if err != nil {
					slog.Warn("cache invalidation after swap failed", "error", err)
					return
				}
				slog.Info("cache entries of previous snapshot dropped", "fingerprint", old, "deleted", n)
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	trackers := analytics.Multi{aggregator}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 500, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		rebuilt := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SnapshotRebuilt,
			kafka.ConsumerOptions{Broadcast: true}, snapshot.HandleRebuilt(holder))
		go func() {
			if err := rebuilt.Run(ctx); err != nil {
				slog.Error("rebuild listener stopped", "error", err)
			}
		}()
		slog.Info("listening for index rebuilds", "topic", cfg.Kafka.Topics.SnapshotRebuilt)
	}

	var history analytics.History
	if pg != nil {
		analyticsStore := analytics.NewStore(pg)
		if err := analyticsStore.Migrate(ctx); err != nil {
			slog.Warn("analytics migration failed", "error", err)
		} else {
			// With Kafka on, cmd/analytics owns persistence of the merged stream.
			if !cfg.Kafka.Enabled {
				go analyticsStore.RunPeriodicSave(ctx, aggregator, time.Minute)
			}
			history = analyticsStore
		}
	}
	handlerOpts = append(handlerOpts, handler.WithTracker(trackers))

	go reloadOnHangup(ctx, holder)

	h := handler.New(exec, holder, handlerOpts...)

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator, history).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []middleware.Middleware{
		middleware.Recover(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Metrics(m),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.Server.CORSOrigins
		mws = append(mws, middleware.CORS(cors))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go sweepClients(ctx, limiter)
		mws = append(mws, middleware.RateLimit(limiter))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))
	chain := middleware.Chain(mux, mws...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// reloadOnHangup reloads the snapshot on every SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, holder *snapshot.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := holder.Reload(ctx, snapshot.TriggerSignal); err != nil {
				slog.Error("snapshot reload failed", "trigger", snapshot.TriggerSignal, "error", err)
			}
		}
	}
}

// sweepClients drops idle rate-limit buckets every few minutes.
func sweepClients(ctx context.Context, l *middleware.ClientLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(10 * time.Minute)
		}
	}
}
