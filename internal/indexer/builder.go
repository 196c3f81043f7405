// Package indexer runs the offline build: it reads the lemmatized corpus,
// numbers the documents, and writes the inverted index, the document
// catalog, the term-weight files and optionally the merged lemma source and a
// bbolt export of the weights.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/indexfile"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/weights"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/metrics"
)

// Options locate inputs and outputs of one build.
type Options struct {
	CorpusDir     string
	CorpusPattern string
	IndexPath     string
	// WeightsDir receives page_<id><WeightsExt> files; empty skips them.
	WeightsDir string
	WeightsExt string
	// LemmaSource, when set, is rewritten from the corpus records.
	LemmaSource string
	// BoltPath, when set, receives a bbolt export of the weights.
	BoltPath string
	Workers  int
}

// OptionsFromConfig maps the config file onto build options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		CorpusDir:     cfg.Paths.CorpusDir,
		CorpusPattern: cfg.Paths.CorpusPattern,
		IndexPath:     cfg.Paths.IndexFile,
		WeightsExt:    cfg.Paths.WeightsExt,
		LemmaSource:   cfg.Paths.LemmaSource,
		Workers:       cfg.Indexer.Workers,
	}
	if cfg.Indexer.BuildWeights {
		opts.WeightsDir = cfg.Paths.WeightsDir
	}
	if cfg.Indexer.ExportBolt {
		opts.BoltPath = cfg.Paths.BoltFile
	}
	return opts
}

// Result summarises a finished build.
type Result struct {
	Documents    int           `json:"documents"`
	Lemmas       int           `json:"lemmas"`
	Postings     int           `json:"postings"`
	Malformed    int           `json:"malformed"`
	Unreadable   int           `json:"unreadable"`
	SourcesFound int           `json:"sources_found"`
	IndexPath    string        `json:"index_path"`
	CatalogPath  string        `json:"catalog_path"`
	WeightsDir   string        `json:"weights_dir,omitempty"`
	LemmaSource  string        `json:"lemma_source,omitempty"`
	BoltPath     string        `json:"bolt_path,omitempty"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Builder performs full rebuilds. It holds no state between builds.
type Builder struct {
	opts     Options
	sources  manifest.Lookuper
	metrics  *metrics.Metrics
	progress func(done, total int)
	logger   *slog.Logger
}

// Option customises a Builder.
type Option func(*Builder)

// WithManifest resolves document sources while writing the catalog.
func WithManifest(l manifest.Lookuper) Option {
	return func(b *Builder) { b.sources = l }
}

// WithMetrics records document counts and build duration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithProgress is called after each document is processed. It may be called
// from several goroutines.
func WithProgress(fn func(done, total int)) Option {
	return func(b *Builder) { b.progress = fn }
}

func NewBuilder(opts Options, options ...Option) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.WeightsExt == "" {
		opts.WeightsExt = weights.DefaultExt
	}
	b := &Builder{
		opts:   opts,
		logger: slog.Default().With("component", "indexer"),
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Build rebuilds every artifact from the corpus. Outputs are replaced
// atomically, so an interrupted build leaves the previous files in place.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	docs, err := corpus.Discover(b.opts.CorpusDir, b.opts.CorpusPattern)
	if err != nil && !errors.Is(err, apperrors.ErrMissingResource) {
		return nil, err
	}
	if err != nil {
		b.logger.Warn("corpus directory missing, building an empty index", "dir", b.opts.CorpusDir)
	}
	b.logger.Info("index build started", "documents", len(docs), "workers", b.opts.Workers)

	acc := index.NewAccumulator()
	tfidf := weights.NewTFIDF()
	merger := lemma.NewMerger()
	var mergerMu sync.Mutex
	var malformed, unreadable, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lem, err := corpus.ReadLemmas(doc)
			if err != nil {
				// The document keeps its id and an empty lemma set.
				unreadable.Add(1)
				b.logger.Warn("unreadable corpus file", "file", doc.Name, "error", err)
			}
			malformed.Add(int64(lem.Malformed))
			acc.Add(doc.ID, lem.Distinct())
			tfidf.Add(doc.ID, lem.Counts())
			if b.opts.LemmaSource != "" {
				mergerMu.Lock()
				for _, r := range lem.Records {
					merger.Add(r)
				}
				mergerMu.Unlock()
			}
			n := int(done.Add(1))
			if b.metrics != nil {
				b.metrics.DocsIndexedTotal.Inc()
			}
			if b.progress != nil {
				b.progress(n, len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	ix := acc.Build()
	res := &Result{
		Documents:   len(docs),
		Lemmas:      ix.Len(),
		Postings:    ix.TotalPostings(),
		Malformed:   int(malformed.Load()),
		Unreadable:  int(unreadable.Load()),
		IndexPath:   b.opts.IndexPath,
		CatalogPath: indexfile.CatalogPath(b.opts.IndexPath),
	}

	if err := indexfile.Write(b.opts.IndexPath, ix); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}
	catalog, found := b.catalog(ctx, docs)
	res.SourcesFound = found
	if err := indexfile.WriteCatalog(res.CatalogPath, catalog); err != nil {
		return nil, fmt.Errorf("writing catalog: %w", err)
	}

	if b.opts.WeightsDir != "" {
		if err := weights.WriteDir(b.opts.WeightsDir, b.opts.WeightsExt, tfidf.Terms()); err != nil {
			return nil, fmt.Errorf("writing weights: %w", err)
		}
		res.WeightsDir = b.opts.WeightsDir
	}
	if b.opts.BoltPath != "" {
		if err := weights.ExportBolt(b.opts.BoltPath, tfidf.Store()); err != nil {
			return nil, fmt.Errorf("exporting weights: %w", err)
		}
		res.BoltPath = b.opts.BoltPath
	}
	if b.opts.LemmaSource != "" {
		if err := writeLemmaSource(b.opts.LemmaSource, merger.Records()); err != nil {
			return nil, fmt.Errorf("writing lemma source: %w", err)
		}
		res.LemmaSource = b.opts.LemmaSource
	}

	res.FinishedAt = time.Now().UTC()
	res.Duration = time.Since(start)
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.Observe(res.Duration.Seconds())
	}
	b.logger.Info("index build finished",
		"documents", res.Documents,
		"lemmas", res.Lemmas,
		"postings", res.Postings,
		"malformed", res.Malformed,
		"duration", res.Duration,
	)
	return res, nil
}

func (b *Builder) catalog(ctx context.Context, docs []corpus.Document) (*indexfile.Catalog, int) {
	infos := make([]indexfile.DocInfo, len(docs))
	found := 0
	for i, d := range docs {
		info := indexfile.DocInfo{ID: d.ID, File: d.Name, Key: d.Key()}
		if b.sources != nil && info.Key > 0 {
			e, ok, err := b.sources.Lookup(ctx, info.Key)
			if err != nil {
				b.logger.Debug("source lookup failed", "key", info.Key, "error", err)
			}
			if ok {
				info.Source = e.URL
				found++
			}
		}
		infos[i] = info
	}
	return indexfile.NewCatalog(infos), found
}

func writeLemmaSource(path string, recs []lemma.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := lemma.WriteRecords(f, recs); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
