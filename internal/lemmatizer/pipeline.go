package lemmatizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
)

// PagePattern selects fetched pages.
const PagePattern = "page_*.html"

// Pipeline lemmatizes every page of a directory on an ants worker pool and
// writes one "<page>_lemmas.txt" file per page.
type Pipeline struct {
	analyzer Analyzer
	filter   *Filter
	pool     *ants.Pool
	progress func(done, total int)
	logger   *slog.Logger
}

type Option func(*Pipeline)

// WithProgress is called after every finished page.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// NewPipeline creates the worker pool. Call Release when done.
func NewPipeline(analyzer Analyzer, filter *Filter, workers int, opts ...Option) (*Pipeline, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	p := &Pipeline{
		analyzer: analyzer,
		filter:   filter,
		pool:     pool,
		logger:   slog.Default().With("component", "lemmatize-pipeline"),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Pipeline) Release() {
	p.pool.Release()
}

// Result summarises a run.
type Result struct {
	Pages  int      `json:"pages"`
	Lemmas int      `json:"lemmas"`
	Failed []string `json:"failed,omitempty"`
}

// Run processes pagesDir into outDir. A page that cannot be processed is
// logged and listed in Result.Failed; the run carries on.
func (p *Pipeline) Run(ctx context.Context, pagesDir, outDir string) (*Result, error) {
	pages, err := corpus.Discover(pagesDir, PagePattern)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     atomic.Int32
		result   = &Result{}
		distinct = make(map[string]struct{})
	)
	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			recs, err := p.Document(ctx, page.Path)
			if err == nil {
				err = writeLemmaFile(filepath.Join(outDir, OutputName(page.Name)), recs)
			}
			mu.Lock()
			if err != nil {
				result.Failed = append(result.Failed, page.Name)
				p.logger.Warn("page skipped", "page", page.Name, "error", err)
			} else {
				result.Pages++
				for _, r := range recs {
					distinct[r.Lemma] = struct{}{}
				}
			}
			mu.Unlock()
			n := int(done.Add(1))
			if p.progress != nil {
				p.progress(n, len(pages))
			}
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("submitting %s: %w", page.Name, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Strings(result.Failed)
	result.Lemmas = len(distinct)
	p.logger.Info("lemmatization finished",
		"pages", result.Pages,
		"failed", len(result.Failed),
		"lemmas", result.Lemmas,
	)
	return result, nil
}

// Document lemmatizes one HTML file into records carrying occurrence
// counts and the distinct surfaces of each lemma.
func (p *Pipeline) Document(ctx context.Context, path string) ([]lemma.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	text, err := ExtractText(f)
	if err != nil {
		return nil, err
	}
	analyses, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}
	return Group(p.filter.Apply(analyses)), nil
}

// Group folds analyses into one record per lemma, sorted by lemma.
func Group(analyses []Analysis) []lemma.Record {
	counts := make(map[string]int)
	surfaces := make(map[string]map[string]struct{})
	for _, a := range analyses {
		counts[a.Lemma]++
		s, ok := surfaces[a.Lemma]
		if !ok {
			s = make(map[string]struct{})
			surfaces[a.Lemma] = s
		}
		s[a.Surface] = struct{}{}
	}
	recs := make([]lemma.Record, 0, len(counts))
	for l, n := range counts {
		ss := make([]string, 0, len(surfaces[l]))
		for s := range surfaces[l] {
			ss = append(ss, s)
		}
		sort.Strings(ss)
		recs = append(recs, lemma.Record{Lemma: l, Count: n, Surfaces: ss})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Lemma < recs[j].Lemma })
	return recs
}

// OutputName maps "page_3.html" to "page_3_lemmas.txt".
func OutputName(page string) string {
	base := filepath.Base(page)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_lemmas.txt"
}

func writeLemmaFile(path string, recs []lemma.Record) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lemmas-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = lemma.WriteRecords(tmp, recs); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}
