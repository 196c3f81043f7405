package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/indexfile"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/weights"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
)

func testSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	dict, _ := lemma.Build([]lemma.Record{
		{Lemma: "бежать", Surfaces: []string{"бежал", "бежит"}},
		{Lemma: "парк", Surfaces: []string{"парке"}},
		{Lemma: "лес", Surfaces: []string{"лесу"}},
	})
	ix := index.New(map[string]index.PostingList{
		"бежать": {1, 3},
		"парк":   {3},
	})
	store := weights.NewMemoryStore(map[index.DocID]weights.Vector{
		1: weights.NewVector(map[string]float64{"бежать": 0.5}),
		3: weights.NewVector(map[string]float64{"бежать": 0.2, "парк": 0.1}),
	})
	catalog := indexfile.NewCatalog([]indexfile.DocInfo{
		{ID: 1, File: "page_1_lemmas.txt", Key: 1, Source: "https://example.org/a"},
		{ID: 3, File: "page_3_lemmas.txt", Key: 3},
	})
	return snapshot.New(dict, ix, store, catalog)
}

type fixed struct{ s *snapshot.Snapshot }

func (f fixed) Current() *snapshot.Snapshot { return f.s }

func newExecutor(t *testing.T, opts ...Option) (*Executor, *metrics.Metrics) {
	m := metrics.NewNop()
	opts = append(opts, WithMetrics(m))
	return New(fixed{testSnapshot(t)}, config.SearchConfig{DefaultLimit: 10, MaxResults: 100}, opts...), m
}

func TestExecute(t *testing.T) {
	e, m := newExecutor(t)
	res, err := e.Execute(context.Background(), "Бежал!", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"бежать"}, res.Lemmas)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Results, 2)
	assert.Equal(t, Hit{DocID: 1, Score: 1, Source: "https://example.org/a", File: "page_1_lemmas.txt"}, res.Results[0])
	assert.Equal(t, index.DocID(3), res.Results[1].DocID)
	assert.InDelta(t, 0.894, res.Results[1].Score, 1e-3)
	assert.Equal(t, e.Current().Fingerprint, res.Snapshot)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(metrics.OutcomeOK)))
}

func TestExecuteTracksUnknownWords(t *testing.T) {
	e, _ := newExecutor(t)
	res, err := e.Execute(context.Background(), "бежит бежал через парке", 0)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"бежать", "парк"}, res.Lemmas); diff != "" {
		t.Errorf("lemmas mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"через"}, res.Unknown)
	assert.Equal(t, index.DocID(3), res.Results[0].DocID)
}

func TestExecuteEmptyQuery(t *testing.T) {
	e, m := newExecutor(t)
	for _, q := range []string{"", "   ", "!!!", "совсем незнакомые слова"} {
		_, err := e.Execute(context.Background(), q, 0)
		assert.True(t, errors.Is(err, apperrors.ErrEmptyQuery), "query %q: %v", q, err)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(metrics.OutcomeEmptyQuery)))
}

func TestExecuteNoResults(t *testing.T) {
	e, _ := newExecutor(t)
	// "лес" is a known lemma without postings.
	_, err := e.Execute(context.Background(), "в лесу", 0)
	require.ErrorIs(t, err, apperrors.ErrNoResults)
}

func TestExecuteAgainstEmptySnapshot(t *testing.T) {
	dict, _ := lemma.Build([]lemma.Record{{Lemma: "бежать", Surfaces: []string{"бежал"}}})
	e := New(fixed{snapshot.New(dict, nil, nil, nil)}, config.SearchConfig{DefaultLimit: 10, MaxResults: 10})
	_, err := e.Execute(context.Background(), "бежал", 0)
	require.ErrorIs(t, err, apperrors.ErrNoResults)
}

func TestLimit(t *testing.T) {
	e, _ := newExecutor(t)
	assert.Equal(t, 10, e.Limit(0))
	assert.Equal(t, 10, e.Limit(-3))
	assert.Equal(t, 7, e.Limit(7))
	assert.Equal(t, 100, e.Limit(1000))

	res, err := e.Execute(context.Background(), "бежал", 1)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.TotalHits)
}

func TestExecuteResolvesSourcesThroughLookup(t *testing.T) {
	file := manifest.NewFile([]manifest.Entry{{Key: 3, URL: "https://example.org/c"}})
	e, _ := newExecutor(t, WithSourceLookup(file))
	res, err := e.Execute(context.Background(), "парке", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "https://example.org/c", res.Results[0].Source)
}
