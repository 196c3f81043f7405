package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/kafka"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	start := time.Now()
	agg.startTime = start
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	agg.Track(SearchEvent{Type: EventSearch, Query: "бежал", Lemmas: []string{"бежать"}, LatencyMs: 10})
	agg.Track(SearchEvent{Type: EventSearch, Query: "бежал", Lemmas: []string{"бежать"}, LatencyMs: 20, CacheHit: true})
	agg.Track(SearchEvent{Type: EventZeroResult, Query: "лес", Lemmas: []string{"лес"}, LatencyMs: 30})
	agg.Track(SearchEvent{Type: EventEmptyQuery, Query: "qwerty", Unknown: []string{"qwerty"}, LatencyMs: 40})

	st := agg.Stats()
	assert.Equal(t, int64(4), st.TotalSearches)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(3), st.CacheMisses)
	assert.Equal(t, int64(1), st.ZeroResultCount)
	assert.Equal(t, int64(1), st.EmptyQueryCount)
	assert.Equal(t, 25.0, st.AvgLatencyMs)
	assert.Equal(t, int64(30), st.P50LatencyMs)
	assert.Equal(t, int64(40), st.P99LatencyMs)
	assert.Equal(t, 2.0, st.QueriesPerMinute)
	assert.Equal(t, []QueryCount{{"бежал", 2}, {"qwerty", 1}, {"лес", 1}}, st.TopQueries)
	assert.Equal(t, []QueryCount{{"бежать", 2}, {"лес", 1}}, st.TopLemmas)
	assert.Equal(t, []QueryCount{{"qwerty", 1}, {"лес", 1}}, st.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{"qwerty", 1}}, st.UnknownWords)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+5; i++ {
		agg.Track(SearchEvent{Type: EventSearch, LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+5), agg.Stats().TotalSearches)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	value, err := json.Marshal(SearchEvent{Type: EventSearch, Query: "парк"})
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), nil, value))
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesFullBatch(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 3; i++ {
		c.Track(SearchEvent{Type: EventSearch, Query: "q"})
	}
	require.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, 5*time.Millisecond)

	c.Track(SearchEvent{Type: EventSearch, Query: "tail"})
	cancel()
	c.Close()
	assert.Equal(t, 4, pub.count())
	assert.Equal(t, 0, c.Pending())
}

func TestCollectorRequeuesOnFailure(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	c := NewCollector(pub, 2, time.Hour)
	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	c.flush(context.Background())
	assert.Equal(t, 2, c.Pending())

	for i := 0; i < 10; i++ {
		c.Track(SearchEvent{Query: "x"})
	}
	assert.Equal(t, 6, c.Pending())
}

func TestMulti(t *testing.T) {
	a, b := NewAggregator(), NewAggregator()
	Multi{a, b}.Track(SearchEvent{Query: "q"})
	assert.Equal(t, int64(1), a.Stats().TotalSearches)
	assert.Equal(t, int64(1), b.Stats().TotalSearches)
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(SearchEvent{Type: EventSearch, Query: "q", LatencyMs: 5})

	mux := http.NewServeMux()
	NewHandler(agg, nil).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalSearches)
}

type fakeHistory struct {
	stats *AggregatedStats
	err   error
}

func (f fakeHistory) Latest(context.Context) (*AggregatedStats, error) { return f.stats, f.err }

func TestHandlerPersisted(t *testing.T) {
	cases := []struct {
		name    string
		history History
		want    int
	}{
		{"disabled", nil, http.StatusNotFound},
		{"nothing saved", fakeHistory{}, http.StatusNotFound},
		{"store error", fakeHistory{err: errors.New("down")}, http.StatusInternalServerError},
		{"saved", fakeHistory{stats: &AggregatedStats{TotalSearches: 7}}, http.StatusOK},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(NewAggregator(), tt.history).Persisted(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/persisted", nil))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"total_searches":7`)
			}
		})
	}
}
