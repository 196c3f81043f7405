// Package metrics defines the Prometheus collectors of the search service and
// the indexer, and serves them on a dedicated port.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label of SearchQueriesTotal.
const (
	OutcomeOK         = "ok"
	OutcomeEmptyQuery = "empty_query"
	OutcomeNoResults  = "no_results"
	OutcomeError      = "error"
)

// Metrics holds every collector. Fields are safe to use concurrently.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CandidateDocs      prometheus.Histogram

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	SnapshotReloadsTotal *prometheus.CounterVec
	SnapshotLemmas       prometheus.Gauge
	SnapshotDocuments    prometheus.Gauge
	SnapshotPostings     prometheus.Gauge
	MalformedRecords     *prometheus.CounterVec

	DocsIndexedTotal    prometheus.Counter
	IndexBuildDuration  prometheus.Histogram
	PagesFetchedTotal   *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates every collector and registers it with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		SearchQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search queries by outcome (ok, empty_query, no_results, error).",
		}, []string{"outcome"}),
		SearchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "End-to-end query latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"cache_status"}),
		SearchResultsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_results_count",
			Help:    "Results returned per query.",
			Buckets: []float64{0, 1, 3, 5, 10, 25, 50, 100},
		}),
		CandidateDocs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "search_candidate_documents",
			Help:    "Size of the candidate set before ranking.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Result cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Result cache misses.",
		}),
		SnapshotReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_reloads_total",
			Help: "Snapshot reload attempts by trigger and status.",
		}, []string{"trigger", "status"}),
		SnapshotLemmas: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_lemmas",
			Help: "Distinct lemmas in the active inverted index.",
		}),
		SnapshotDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_documents",
			Help: "Documents with a weight vector in the active snapshot.",
		}),
		SnapshotPostings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snapshot_postings",
			Help: "Total postings in the active inverted index.",
		}),
		MalformedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_malformed_records_total",
			Help: "Records skipped while loading, by source.",
		}, []string{"source"}),
		DocsIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docs_indexed_total",
			Help: "Documents processed by the indexer.",
		}),
		IndexBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "index_build_duration_seconds",
			Help:    "Wall time of a full index build.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		PagesFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pages_fetched_total",
			Help: "Page downloads by status.",
		}, []string{"status"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CandidateDocs,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SnapshotReloadsTotal,
		m.SnapshotLemmas,
		m.SnapshotDocuments,
		m.SnapshotPostings,
		m.MalformedRecords,
		m.DocsIndexedTotal,
		m.IndexBuildDuration,
		m.PagesFetchedTotal,
		m.CircuitBreakerState,
	)
	return m
}

// NewNop returns collectors registered nowhere, for tests and CLI runs.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// StartServer serves g on /metrics at port until the returned shutdown
// function is called.
func StartServer(port int, g prometheus.Gatherer) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}
