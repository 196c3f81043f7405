// Package cache keeps search results in Redis, keyed by snapshot fingerprint
// and normalised query, and collapses concurrent identical misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/resilience"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps backend. Redis calls go through a circuit breaker; while it is
// open every lookup is a miss and results are computed directly.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	if m == nil {
		m = metrics.NewNop()
	}
	c := &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewBreaker("redis", resilience.BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues("redis").Set(float64(resilience.StateClosed))
	return c
}

// Get returns the cached result for the normalised query, if any.
func (c *QueryCache) Get(ctx context.Context, fingerprint, query string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(fingerprint, query, limit)
	var data []byte
	err := c.breaker.Execute(func() error {
		b, err := c.backend.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		data = b
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHitsTotal.Inc()
	c.logger.Debug("cache hit", "query", query, "key", key)
	result.Query = query
	return &result, true
}

// Set stores result under the normalised query.
func (c *QueryCache) Set(ctx context.Context, fingerprint, query string, limit int, result *executor.SearchResult) {
	key := BuildKey(fingerprint, query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or runs compute once per key across
// concurrent callers. Errors are not cached. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint, query string,
	limit int,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, fingerprint, query, limit); ok {
		return result, true, nil
	}
	key := BuildKey(fingerprint, query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, fingerprint, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := *val.(*executor.SearchResult)
	result.Query = query
	return &result, false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	return c.invalidate(ctx, keyPrefix+"*")
}

// InvalidateSnapshot drops the results cached for one snapshot.
func (c *QueryCache) InvalidateSnapshot(ctx context.Context, fingerprint string) (int64, error) {
	return c.invalidate(ctx, keyPrefix+fingerprint+":*")
}

func (c *QueryCache) invalidate(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		n, err := c.backend.DeleteByPattern(ctx, pattern)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("invalidating cache %s: %w", pattern, err)
	}
	c.logger.Info("cache invalidate", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

// Stats is the JSON view of the cache counters.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Total:   total,
		HitRate: fmt.Sprintf("%.1f%%", rate),
		Breaker: c.breaker.State().String(),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMissesTotal.Inc()
}

// BuildKey derives the cache key. Queries that tokenize to the same words
// share a key, and the fingerprint ties the entry to one snapshot.
func BuildKey(fingerprint, query string, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d", NormalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, fingerprint, hash[:16])
}

// NormalizeQuery lower-cases query and keeps only its words.
func NormalizeQuery(query string) string {
	return strings.Join(tokenizer.Terms(query), " ")
}
