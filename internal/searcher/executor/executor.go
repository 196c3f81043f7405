// Package executor runs a query end to end against one snapshot: normalise
// the text into lemmas, rank the candidates and attach document sources.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/tracing"
)

// Hit is one ranked document as served to clients.
type Hit struct {
	DocID  index.DocID `json:"doc_id"`
	Score  float64     `json:"score"`
	Source string      `json:"source,omitempty"`
	File   string      `json:"file,omitempty"`
}

// SearchResult is the outcome of a successful query.
type SearchResult struct {
	Query     string   `json:"query"`
	Lemmas    []string `json:"lemmas"`
	Unknown   []string `json:"unknown,omitempty"`
	TotalHits int      `json:"total_hits"`
	Results   []Hit    `json:"results"`
	Snapshot  string   `json:"snapshot"`
}

// SnapshotSource hands out the snapshot to query against.
type SnapshotSource interface {
	Current() *snapshot.Snapshot
}

type Executor struct {
	source  SnapshotSource
	cfg     config.SearchConfig
	sources manifest.Lookuper
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Executor)

// WithSourceLookup resolves sources the catalog does not carry.
func WithSourceLookup(l manifest.Lookuper) Option {
	return func(e *Executor) { e.sources = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(source SnapshotSource, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		source: source,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	return e
}

// Current returns the snapshot the next query would run against.
func (e *Executor) Current() *snapshot.Snapshot {
	return e.source.Current()
}

// Limit clamps a requested result count: <= 0 selects the default, and
// anything above MaxResults is cut down to it.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		requested = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && requested > e.cfg.MaxResults {
		requested = e.cfg.MaxResults
	}
	return requested
}

// Execute runs query against the current snapshot.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	return e.ExecuteOn(ctx, e.source.Current(), query, limit)
}

// ExecuteOn runs query against snap. It fails with ErrEmptyQuery when no
// word of query is in the dictionary, and with ErrNoResults when no
// candidate could be scored.
func (e *Executor) ExecuteOn(ctx context.Context, snap *snapshot.Snapshot, query string, limit int) (*SearchResult, error) {
	ctx, span := tracing.Start(ctx, "execute")
	defer span.End()
	limit = e.Limit(limit)

	_, parseSpan := tracing.Start(ctx, "normalize")
	plan := parser.Parse(query, snap.Dictionary)
	parseSpan.Set("lemmas", len(plan.Lemmas))
	parseSpan.Set("unknown", len(plan.Unknown))
	parseSpan.End()

	if plan.Empty() {
		e.metrics.SearchQueriesTotal.WithLabelValues(metrics.OutcomeEmptyQuery).Inc()
		e.logger.Debug("no lemma recognized", "query", query, "unknown", plan.Unknown)
		return nil, fmt.Errorf("%w: %q", apperrors.ErrEmptyQuery, query)
	}

	lemmas := plan.Distinct()
	_, rankSpan := tracing.Start(ctx, "rank")
	ranking := ranker.Run(lemmas, snap.Index, snap.Weights, limit)
	rankSpan.Set("candidates", ranking.Candidates)
	rankSpan.Set("scored", ranking.Scored)
	rankSpan.End()
	e.metrics.CandidateDocs.Observe(float64(ranking.Candidates))

	if len(ranking.Results) == 0 {
		e.metrics.SearchQueriesTotal.WithLabelValues(metrics.OutcomeNoResults).Inc()
		e.logger.Debug("nothing found", "query", query, "lemmas", lemmas, "candidates", ranking.Candidates)
		return nil, fmt.Errorf("%w: lemmas %v", apperrors.ErrNoResults, lemmas)
	}

	resolveCtx, resolveSpan := tracing.Start(ctx, "resolve")
	hits := make([]Hit, len(ranking.Results))
	for i, d := range ranking.Results {
		hits[i] = e.hit(resolveCtx, snap, d)
	}
	resolveSpan.End()

	e.metrics.SearchQueriesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	e.metrics.SearchResultsCount.Observe(float64(len(hits)))
	e.logger.Info("query executed",
		"query", query,
		"lemmas", lemmas,
		"candidates", ranking.Candidates,
		"results", len(hits),
		"snapshot", snap.Fingerprint,
	)
	return &SearchResult{
		Query:     query,
		Lemmas:    lemmas,
		Unknown:   plan.Unknown,
		TotalHits: ranking.Scored,
		Results:   hits,
		Snapshot:  snap.Fingerprint,
	}, nil
}

func (e *Executor) hit(ctx context.Context, snap *snapshot.Snapshot, d ranker.ScoredDoc) Hit {
	h := Hit{DocID: d.DocID, Score: d.Score}
	info, ok := snap.Catalog.Get(d.DocID)
	if !ok {
		return h
	}
	h.File = info.File
	h.Source = info.Source
	if h.Source != "" || e.sources == nil || info.Key == 0 {
		return h
	}
	entry, found, err := e.sources.Lookup(ctx, info.Key)
	if err != nil {
		e.logger.Warn("source lookup failed", "doc_id", d.DocID, "key", info.Key, "error", err)
		return h
	}
	if found {
		h.Source = entry.URL
	}
	return h
}
