package lemma

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// Dictionary maps lower-cased surface words to lemmas. It is immutable once
// built and safe for concurrent lookups.
type Dictionary struct {
	words  map[string]string
	lemmas int
}

// LoadStats describes how a dictionary was built.
type LoadStats struct {
	Missing   bool `json:"missing"`
	Records   int  `json:"records"`
	Words     int  `json:"words"`
	Malformed int  `json:"malformed"`
	// Conflicts counts surface words listed under more than one lemma. The
	// record read last wins.
	Conflicts int `json:"conflicts"`
}

// Empty returns a dictionary that resolves nothing.
func Empty() *Dictionary {
	return &Dictionary{words: map[string]string{}}
}

// Build inverts records into a dictionary.
func Build(recs []Record) (*Dictionary, LoadStats) {
	b := newBuilder()
	for _, rec := range recs {
		b.add(rec)
	}
	d, stats := b.finish()
	stats.Records = len(recs)
	return d, stats
}

// Read builds a dictionary from a record stream.
func Read(r io.Reader) (*Dictionary, LoadStats, error) {
	b := newBuilder()
	rs, err := ReadRecords(r, b.add)
	d, stats := b.finish()
	stats.Records = rs.Records
	stats.Malformed = rs.Malformed
	return d, stats, err
}

// Load reads the lemma source at path. The returned dictionary is never nil:
// a missing or unreadable source yields an empty dictionary together with an
// error wrapping ErrMissingResource, which callers log and carry on from.
func Load(path string) (*Dictionary, LoadStats, error) {
	logger := slog.Default().With("component", "lemma-dictionary", "path", path)
	f, err := os.Open(path)
	if err != nil {
		stats := LoadStats{Missing: true}
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("lemma source not found, serving with an empty dictionary")
		} else {
			logger.Warn("lemma source unreadable, serving with an empty dictionary", "error", err)
		}
		return Empty(), stats, fmt.Errorf("%w: lemma source %s: %v", apperrors.ErrMissingResource, path, err)
	}
	defer f.Close()

	d, stats, err := Read(f)
	if err != nil {
		logger.Warn("lemma source read failed part-way", "error", err, "words", stats.Words)
	}
	if stats.Malformed > 0 {
		logger.Warn("skipped malformed lemma records", "malformed", stats.Malformed)
	}
	if stats.Conflicts > 0 {
		logger.Debug("surface words listed under several lemmas, last one kept", "conflicts", stats.Conflicts)
	}
	logger.Info("lemma dictionary loaded", "lemmas", d.Lemmas(), "words", stats.Words)
	return d, stats, err
}

// Lookup returns the lemma for word. word must already be lower-cased.
func (d *Dictionary) Lookup(word string) (string, bool) {
	if d == nil {
		return "", false
	}
	l, ok := d.words[word]
	return l, ok
}

// Len is the number of surface words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.words)
}

// Lemmas is the number of distinct lemmas reachable from some surface word.
func (d *Dictionary) Lemmas() int {
	if d == nil {
		return 0
	}
	return d.lemmas
}

// Words returns every surface word in byte order.
func (d *Dictionary) Words() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.words))
	for w := range d.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

type builder struct {
	words     map[string]string
	conflicts int
}

func newBuilder() *builder {
	return &builder{words: make(map[string]string)}
}

func (b *builder) add(rec Record) {
	for _, s := range rec.Surfaces {
		s = strings.ToLower(s)
		if prev, ok := b.words[s]; ok && prev != rec.Lemma {
			b.conflicts++
		}
		b.words[s] = rec.Lemma
	}
}

func (b *builder) finish() (*Dictionary, LoadStats) {
	distinct := make(map[string]struct{})
	for _, l := range b.words {
		distinct[l] = struct{}{}
	}
	d := &Dictionary{words: b.words, lemmas: len(distinct)}
	return d, LoadStats{Words: len(b.words), Conflicts: b.conflicts}
}
