// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/tracing"
)

// CacheStatusHeader reports hit, miss or disabled on search responses.
const CacheStatusHeader = "X-Cache"

// Reloader is the part of snapshot.Holder the admin endpoints use.
type Reloader interface {
	Current() *snapshot.Snapshot
	Reload(ctx context.Context, trigger string) (*snapshot.Snapshot, error)
}

type Handler struct {
	executor *executor.Executor
	snapshot Reloader
	cache    *cache.QueryCache
	tracker  analytics.Tracker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Handler)

// WithCache enables the result cache.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithTracker receives one analytics event per query.
func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(exec *executor.Executor, snap Reloader, opts ...Option) *Handler {
	h := &Handler{
		executor: exec,
		snapshot: snap,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNop()
	}
	return h
}

// Register mounts the search and admin routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/snapshot", h.SnapshotStats)
	mux.HandleFunc("POST /api/v1/snapshot/reload", h.SnapshotReload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Root(r.Context(), "search", middleware.GetRequestID(r))
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "query parameter 'q' is required")
		return
	}
	query := params.Get("q")

	limit := 0
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = n
	}
	limit = h.executor.Limit(limit)

	snap := h.executor.Current()
	compute := func() (*executor.SearchResult, error) {
		return h.executor.ExecuteOn(ctx, snap, query, limit)
	}

	var (
		result      *executor.SearchResult
		err         error
		cacheHit    bool
		cacheStatus = "disabled"
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Fingerprint, query, limit, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}

	w.Header().Set(CacheStatusHeader, cacheStatus)
	span.Set("cache", cacheStatus)
	span.End()
	span.Log(ctx, log)
	latency := time.Since(start)
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.track(r, query, result, err, cacheHit, latency, snap.Fingerprint)

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search execution failed", "query", query, "error", err)
		}
		h.writeError(w, status, apperrors.Code(err), err.Error())
		return
	}

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) track(r *http.Request, query string, result *executor.SearchResult, err error, cacheHit bool, latency time.Duration, fingerprint string) {
	if h.tracker == nil {
		return
	}
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Snapshot:  fingerprint,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r),
	}
	switch {
	case err == nil:
		event.Lemmas = result.Lemmas
		event.Unknown = result.Unknown
		event.TotalHits = result.TotalHits
		event.Returned = len(result.Results)
	case apperrors.Is(err, apperrors.ErrEmptyQuery):
		event.Type = analytics.EventEmptyQuery
	case apperrors.Is(err, apperrors.ErrNoResults):
		event.Type = analytics.EventZeroResult
	default:
		event.Type = analytics.EventError
	}
	h.tracker.Track(event)
}

func (h *Handler) SnapshotStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.snapshot.Current().Summary())
}

func (h *Handler) SnapshotReload(w http.ResponseWriter, r *http.Request) {
	s, err := h.snapshot.Reload(r.Context(), snapshot.TriggerHTTP)
	if err != nil {
		h.logger.Warn("snapshot reload failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]any{
			"error":    err.Error(),
			"code":     apperrors.Code(err),
			"snapshot": s.Summary(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, s.Summary())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "cache_disabled", "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal", "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}
