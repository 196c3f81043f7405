package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/redis"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return nil, b.fail
	}
	v, ok := b.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.data[key] = value
	return nil
}

func (b *memBackend) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func sample(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		Lemmas:    []string{"бежать"},
		TotalHits: 1,
		Results:   []executor.Hit{{DocID: 1, Score: 1}},
		Snapshot:  "fp1",
	}
}

func TestGetOrComputeCaches(t *testing.T) {
	m := metrics.NewNop()
	c := New(newMemBackend(), time.Minute, m)
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return sample("Бежал"), nil
	}

	res, hit, err := c.GetOrCompute(context.Background(), "fp1", "Бежал", 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Бежал", res.Query)

	// Same words, different case and punctuation.
	res, hit, err = c.GetOrCompute(context.Background(), "fp1", "бежал!!", 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "бежал!!", res.Query)
	assert.Equal(t, 1, calls)

	// Another snapshot or limit is another key.
	_, hit, _ = c.GetOrCompute(context.Background(), "fp2", "бежал", 10, compute)
	assert.False(t, hit)
	_, hit, _ = c.GetOrCompute(context.Background(), "fp1", "бежал", 5, compute)
	assert.False(t, hit)
	assert.Equal(t, 3, calls)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(3), st.Misses)
	assert.Equal(t, "25.0%", st.HitRate)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "fp", "q", 10, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), "fp", "q", 10)
	assert.False(t, ok)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return sample("q"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), "fp", "q", 10, compute)
			assert.NoError(t, err)
			assert.Equal(t, 1, res.TotalHits)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerOpensOnBackendFailure(t *testing.T) {
	backend := newMemBackend()
	backend.fail = errors.New("connection refused")
	m := metrics.NewNop()
	c := New(backend, time.Minute, m)

	for i := 0; i < 6; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "fp", "q", 10, func() (*executor.SearchResult, error) {
			return sample("q"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, res)
	}
	assert.Equal(t, "open", c.Stats().Breaker)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis")))
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute, nil)
	c.Set(context.Background(), "fp1", "a", 10, sample("a"))
	c.Set(context.Background(), "fp1", "b", 10, sample("b"))
	c.Set(context.Background(), "fp2", "a", 10, sample("a"))

	n, err := c.InvalidateSnapshot(context.Background(), "fp1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, ok := c.Get(context.Background(), "fp2", "a", 10)
	assert.True(t, ok)

	n, err = c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, BuildKey("fp", "Бежал, в парке!", 10), BuildKey("fp", "бежал в ПАРКЕ", 10))
	assert.NotEqual(t, BuildKey("fp", "бежал", 10), BuildKey("fp", "парке", 10))
	assert.Equal(t, "бежал в парке", NormalizeQuery("  Бежал, в парке! "))
}
