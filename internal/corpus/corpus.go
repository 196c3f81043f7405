// Package corpus locates the per-document lemma files produced by the
// lemmatizer and assigns document ids.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// DefaultPattern selects lemmatizer output files.
const DefaultPattern = "*_lemmas.txt"

// Document is one corpus file.
type Document struct {
	ID   index.DocID
	Name string // slash-separated, relative to the corpus root
	Path string
}

// Key returns the fetch number embedded in a "page_<k>..." file name, or 0.
func (d Document) Key() int {
	return PageKey(d.Name)
}

var pageKeyRe = regexp.MustCompile(`^page_(\d+)`)

// PageKey extracts k from a base name starting with "page_<k>".
func PageKey(name string) int {
	m := pageKeyRe.FindStringSubmatch(path.Base(filepath.ToSlash(name)))
	if m == nil {
		return 0
	}
	k, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return k
}

// Discover lists files under dir matching the doublestar pattern, sorts them
// by name and numbers them 1..N.
func Discover(dir, pattern string) ([]Document, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: corpus pattern %q", apperrors.ErrInvalidInput, pattern)
	}
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: corpus directory %s", apperrors.ErrMissingResource, dir)
		}
		return nil, fmt.Errorf("listing corpus %s: %w", dir, err)
	}
	sort.Strings(matches)
	docs := make([]Document, len(matches))
	for i, m := range matches {
		docs[i] = Document{
			ID:   index.DocID(i + 1),
			Name: m,
			Path: filepath.Join(dir, filepath.FromSlash(m)),
		}
	}
	return docs, nil
}

// Lemmas holds one document's lemma records.
type Lemmas struct {
	Records   []lemma.Record
	Malformed int
}

// Distinct returns the lemmas of the document, one entry per record.
func (l Lemmas) Distinct() []string {
	out := make([]string, 0, len(l.Records))
	seen := make(map[string]struct{}, len(l.Records))
	for _, r := range l.Records {
		if _, ok := seen[r.Lemma]; ok {
			continue
		}
		seen[r.Lemma] = struct{}{}
		out = append(out, r.Lemma)
	}
	return out
}

// Counts returns lemma to occurrence count, summing repeated records.
func (l Lemmas) Counts() map[string]int {
	out := make(map[string]int, len(l.Records))
	for _, r := range l.Records {
		out[r.Lemma] += r.Occurrences()
	}
	return out
}

// ReadLemmas parses the lemma file of d.
func ReadLemmas(d Document) (Lemmas, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return Lemmas{}, fmt.Errorf("opening %s: %w", d.Name, err)
	}
	defer f.Close()
	var out Lemmas
	stats, err := lemma.ReadRecords(f, func(r lemma.Record) {
		out.Records = append(out.Records, r)
	})
	out.Malformed = stats.Malformed
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", d.Name, err)
	}
	return out, nil
}
