// Command analytics aggregates the search events every searcher replica
// publishes to Kafka and serves the combined statistics.
//
// Usage:
//
//	go run ./cmd/analytics [-config config.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/postgres"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		kafka.ConsumerOptions{}, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Run(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	var history analytics.History
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store := analytics.NewStore(pg)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("analytics migration failed", "error", err)
			os.Exit(1)
		}
		go store.RunPeriodicSave(ctx, aggregator, time.Minute)
		history = store
		checker.Require("postgres", pg.Ping)
	}

	mux := http.NewServeMux()
	analytics.NewHandler(aggregator, history).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.Recover(),
			middleware.RequestID(),
			middleware.AccessLog(),
			middleware.Metrics(m),
		),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
