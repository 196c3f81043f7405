// Package manifest maps fetch keys (the k of page_k.html) to the URL the
// page was downloaded from. The fetcher writes it; the indexer copies
// sources into the document catalog; the searcher may fall back to it.
package manifest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// Entry is one downloaded page.
type Entry struct {
	Key       int
	URL       string
	FetchedAt time.Time
}

// Lookuper resolves a fetch key.
type Lookuper interface {
	Lookup(ctx context.Context, key int) (Entry, bool, error)
}

// File is the in-memory form of an index.txt manifest ("k: url" lines).
type File struct {
	entries map[int]Entry
}

func NewFile(entries []Entry) *File {
	f := &File{entries: make(map[int]Entry, len(entries))}
	for _, e := range entries {
		f.entries[e.Key] = e
	}
	return f
}

// Lookup never fails.
func (f *File) Lookup(_ context.Context, key int) (Entry, bool, error) {
	e, ok := f.entries[key]
	return e, ok, nil
}

// Entries returns all entries ordered by key.
func (f *File) Entries() []Entry {
	out := make([]Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (f *File) Len() int { return len(f.entries) }

// ParseLine decodes "k: url".
func ParseLine(line string) (Entry, error) {
	key, url, ok := strings.Cut(line, ":")
	if !ok {
		return Entry{}, fmt.Errorf("%w: missing colon", apperrors.ErrMalformedRecord)
	}
	k, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || k <= 0 {
		return Entry{}, fmt.Errorf("%w: key %q", apperrors.ErrMalformedRecord, key)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Entry{}, fmt.Errorf("%w: empty url for key %d", apperrors.ErrMalformedRecord, k)
	}
	return Entry{Key: k, URL: url}, nil
}

// Read parses a manifest stream, skipping malformed lines.
func Read(r io.Reader) (*File, int, error) {
	var (
		entries   []Entry
		malformed int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		e, err := ParseLine(sc.Text())
		if err != nil {
			malformed++
			continue
		}
		entries = append(entries, e)
	}
	return NewFile(entries), malformed, sc.Err()
}

// Load reads the manifest at path; a missing file wraps ErrMissingResource
// and yields an empty manifest.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewFile(nil), fmt.Errorf("%w: manifest %s", apperrors.ErrMissingResource, path)
		}
		return NewFile(nil), fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer fh.Close()
	f, _, err := Read(fh)
	if err != nil {
		return f, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return f, nil
}

// Write stores entries as "k: url" lines ordered by key, replacing path
// atomically.
func Write(path string, entries []Entry) error {
	sorted := NewFile(entries).Entries()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	bw := bufio.NewWriter(fh)
	for _, e := range sorted {
		fmt.Fprintf(bw, "%d: %s\n", e.Key, e.URL)
	}
	if err := bw.Flush(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
