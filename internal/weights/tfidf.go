package weights

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
)

// Term is one line of a weight file.
type Term struct {
	Lemma string
	IDF   float64
	TFIDF float64
}

// TFIDF accumulates lemma counts per document and derives weights:
//
//	tf    = count / total lemma occurrences in the document
//	idf   = ln(N / documents containing the lemma)
//	tfidf = tf * idf
//
// Add is safe for concurrent use.
type TFIDF struct {
	mu     sync.Mutex
	counts map[index.DocID]map[string]int
	df     map[string]int
}

func NewTFIDF() *TFIDF {
	return &TFIDF{
		counts: make(map[index.DocID]map[string]int),
		df:     make(map[string]int),
	}
}

// Add registers the lemma counts of one document. Non-positive counts are
// ignored; a document without lemmas is still counted in N.
func (t *TFIDF) Add(id index.DocID, counts map[string]int) {
	own := make(map[string]int, len(counts))
	for l, c := range counts {
		if c > 0 {
			own[l] = c
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.counts[id]; ok {
		for l := range prev {
			t.df[l]--
		}
	}
	t.counts[id] = own
	for l := range own {
		t.df[l]++
	}
}

// Terms returns every document's weights, each list sorted by lemma.
func (t *TFIDF) Terms() map[index.DocID][]Term {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := float64(len(t.counts))
	out := make(map[index.DocID][]Term, len(t.counts))
	for id, counts := range t.counts {
		lemmas := make([]string, 0, len(counts))
		total := 0
		for l, c := range counts {
			lemmas = append(lemmas, l)
			total += c
		}
		sort.Strings(lemmas)
		terms := make([]Term, len(lemmas))
		for i, l := range lemmas {
			idf := math.Log(n / float64(t.df[l]))
			tf := float64(counts[l]) / float64(total)
			terms[i] = Term{Lemma: l, IDF: idf, TFIDF: tf * idf}
		}
		out[id] = terms
	}
	return out
}

// Store returns the weights as an in-memory store.
func (t *TFIDF) Store() *MemoryStore {
	vectors := make(map[index.DocID]Vector)
	for id, terms := range t.Terms() {
		w := make(map[string]float64, len(terms))
		for _, term := range terms {
			w[term.Lemma] = term.TFIDF
		}
		vectors[id] = NewVector(w)
	}
	return NewMemoryStore(vectors)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteDir replaces dir with one file per document. The new tree is built
// next to dir and swapped in with renames, so readers never see a partial
// directory and files of vanished documents disappear.
func WriteDir(dir, ext string, terms map[index.DocID][]Term) error {
	if ext == "" {
		ext = DefaultExt
	}
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", parent, err)
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	for id, list := range terms {
		if err := writeTermsFile(filepath.Join(tmp, DocName(id, ext)), list); err != nil {
			return err
		}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}

	old := dir + ".old"
	os.RemoveAll(old)
	if err := os.Rename(dir, old); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("moving previous %s aside: %w", dir, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		os.Rename(old, dir)
		return fmt.Errorf("installing %s: %w", dir, err)
	}
	return os.RemoveAll(old)
}

func writeTermsFile(path string, terms []Term) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	for _, t := range terms {
		fmt.Fprintf(bw, "%s %s %s\n", t.Lemma, formatFloat(t.IDF), formatFloat(t.TFIDF))
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
