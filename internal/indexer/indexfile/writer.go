// Package indexfile persists the inverted index as JSON lines, one record per
// lemma, sorted by lemma:
//
//	{"v":1,"word":"бежать","count":2,"inverted_array":[1,3]}
//
// A path ending in ".zst" is zstd-compressed on write and decompressed on
// read. Files are replaced atomically through a temp file and rename.
package indexfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
)

// SchemaVersion is written into every record.
const SchemaVersion = 1

type record struct {
	V        int     `json:"v"`
	Word     string  `json:"word"`
	Count    int     `json:"count"`
	Postings []int64 `json:"inverted_array"`
}

// Compressed reports whether path selects zstd framing.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Encode writes ix to w in lemma order.
func Encode(w io.Writer, ix *index.InvertedIndex) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, e := range ix.Entries() {
		ids := make([]int64, len(e.Postings))
		for i, id := range e.Postings {
			ids[i] = int64(id)
		}
		if err := enc.Encode(record{V: SchemaVersion, Word: e.Lemma, Count: len(ids), Postings: ids}); err != nil {
			return fmt.Errorf("encoding lemma %q: %w", e.Lemma, err)
		}
	}
	return bw.Flush()
}

// Write atomically replaces the file at path with ix.
func Write(path string, ix *index.InvertedIndex) error {
	return writeAtomic(path, func(w io.Writer) error {
		if !Compressed(path) {
			return Encode(w, ix)
		}
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		if err := Encode(zw, ix); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
