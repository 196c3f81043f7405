// Package snapshot bundles everything a query needs (lemma dictionary,
// inverted index, weight store and document catalog) into one immutable
// value, and swaps new values in atomically on reload.
package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/indexfile"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/weights"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
)

// Paths locate the artifacts a snapshot is loaded from. When BoltFile is set
// it replaces WeightsDir.
type Paths struct {
	LemmaSource string
	IndexFile   string
	WeightsDir  string
	WeightsExt  string
	BoltFile    string
}

func PathsFromConfig(p config.PathsConfig) Paths {
	return Paths{
		LemmaSource: p.LemmaSource,
		IndexFile:   p.IndexFile,
		WeightsDir:  p.WeightsDir,
		WeightsExt:  p.WeightsExt,
		BoltFile:    p.BoltFile,
	}
}

// Stats records what each loader saw.
type Stats struct {
	Lemmas    lemma.LoadStats     `json:"lemmas"`
	Index     indexfile.ReadStats `json:"index"`
	Weights   weights.LoadStats   `json:"weights"`
	Documents int                 `json:"catalog_documents"`
	Problems  []string            `json:"problems,omitempty"`
}

// Snapshot is immutable once built. Queries hold on to the pointer they
// started with.
type Snapshot struct {
	Dictionary  *lemma.Dictionary
	Index       *index.InvertedIndex
	Weights     weights.Store
	Catalog     *indexfile.Catalog
	Fingerprint string
	LoadedAt    time.Time
	Stats       Stats
}

// New assembles a snapshot from already-built parts. Nil parts are replaced
// by empty ones.
func New(dict *lemma.Dictionary, ix *index.InvertedIndex, store weights.Store, catalog *indexfile.Catalog) *Snapshot {
	if dict == nil {
		dict = lemma.Empty()
	}
	if ix == nil {
		ix = index.Empty()
	}
	if store == nil {
		store = weights.NewMemoryStore(nil)
	}
	if catalog == nil {
		catalog = indexfile.NewCatalog(nil)
	}
	s := &Snapshot{
		Dictionary: dict,
		Index:      ix,
		Weights:    store,
		Catalog:    catalog,
		LoadedAt:   time.Now().UTC(),
	}
	s.Stats.Documents = catalog.Len()
	s.Fingerprint = fingerprint(s)
	return s
}

// Load reads every artifact named by paths concurrently. It never fails:
// missing or unreadable artifacts leave the matching part empty and are
// listed in Stats.Problems. The returned error is non-nil only when ctx is
// cancelled.
func Load(ctx context.Context, paths Paths) (*Snapshot, error) {
	logger := slog.Default().With("component", "snapshot-loader")
	start := time.Now()

	var (
		dict    *lemma.Dictionary
		ix      *index.InvertedIndex
		store   weights.Store
		catalog *indexfile.Catalog
		stats   Stats
		errs    [4]error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dict, stats.Lemmas, errs[0] = lemma.Load(paths.LemmaSource)
		return gctx.Err()
	})
	g.Go(func() error {
		ix, stats.Index, errs[1] = indexfile.Load(paths.IndexFile)
		return gctx.Err()
	})
	g.Go(func() error {
		store, stats.Weights, errs[2] = loadWeights(paths)
		return gctx.Err()
	})
	g.Go(func() error {
		catalog, errs[3] = indexfile.LoadCatalog(indexfile.CatalogPath(paths.IndexFile))
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	s := New(dict, ix, store, catalog)
	for _, err := range errs {
		if err != nil {
			stats.Problems = append(stats.Problems, err.Error())
		}
	}
	stats.Documents = s.Catalog.Len()
	s.Stats = stats

	logger.Info("snapshot loaded",
		"fingerprint", s.Fingerprint,
		"lemmas", s.Index.Len(),
		"words", s.Dictionary.Len(),
		"documents", s.Weights.Len(),
		"problems", len(stats.Problems),
		"duration", time.Since(start),
	)
	return s, nil
}

func loadWeights(paths Paths) (weights.Store, weights.LoadStats, error) {
	if paths.BoltFile == "" {
		return weights.LoadDir(paths.WeightsDir, paths.WeightsExt)
	}
	store, err := weights.LoadBolt(paths.BoltFile)
	stats := weights.LoadStats{Documents: store.Len()}
	if err != nil {
		stats.Missing = true
		slog.Default().With("component", "snapshot-loader").
			Warn("bolt weight store unusable, serving with an empty store", "path", paths.BoltFile, "error", err)
	}
	return store, stats, err
}

// Incomplete reports whether the lemma source or the index could not be
// read at all.
func (s *Snapshot) Incomplete() bool {
	return s.Stats.Lemmas.Missing || s.Stats.Index.Missing
}

// Summary is the JSON view served by the admin endpoint.
type Summary struct {
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
	Lemmas      int       `json:"lemmas"`
	Words       int       `json:"words"`
	Postings    int       `json:"postings"`
	Documents   int       `json:"documents"`
	Stats       Stats     `json:"stats"`
}

func (s *Snapshot) Summary() Summary {
	return Summary{
		Fingerprint: s.Fingerprint,
		LoadedAt:    s.LoadedAt,
		Lemmas:      s.Index.Len(),
		Words:       s.Dictionary.Len(),
		Postings:    s.Index.TotalPostings(),
		Documents:   s.Weights.Len(),
		Stats:       s.Stats,
	}
}

// fingerprint hashes every part a ranking or a resolved lemma depends on:
// the word to lemma mapping, the postings, each weight and the catalog.
func fingerprint(s *Snapshot) string {
	d := xxhash.New()
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	putStr := func(v string) {
		putU64(uint64(len(v)))
		_, _ = d.WriteString(v)
	}
	putU64(uint64(s.Dictionary.Len()))
	for _, w := range s.Dictionary.Words() {
		l, _ := s.Dictionary.Lookup(w)
		putStr(w)
		putStr(l)
	}
	for _, e := range s.Index.Entries() {
		putStr(e.Lemma)
		putU64(uint64(len(e.Postings)))
		for _, id := range e.Postings {
			putU64(uint64(id))
		}
	}
	for _, id := range s.Weights.IDs() {
		v, _ := s.Weights.Vector(id)
		putU64(uint64(id))
		putU64(math.Float64bits(v.Norm))
		lemmas := make([]string, 0, len(v.Weights))
		for l := range v.Weights {
			lemmas = append(lemmas, l)
		}
		sort.Strings(lemmas)
		putU64(uint64(len(lemmas)))
		for _, l := range lemmas {
			putStr(l)
			putU64(math.Float64bits(v.Weights[l]))
		}
	}
	for _, doc := range s.Catalog.Documents() {
		putU64(uint64(doc.ID))
		putStr(doc.File)
		putU64(uint64(doc.Key))
		putStr(doc.Source)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
