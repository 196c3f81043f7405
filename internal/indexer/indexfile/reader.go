package indexfile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// ReadStats describes one load.
type ReadStats struct {
	Missing    bool `json:"missing"`
	Records    int  `json:"records"`
	Malformed  int  `json:"malformed"`
	Duplicates int  `json:"duplicates"`
}

// Decode parses JSON-lines records from r. Malformed lines are skipped and
// counted; a lemma seen twice keeps its last record. Records without a "v"
// field are read as version 1. The error is only set for I/O failures, in
// which case the index holds what was read before the failure.
func Decode(r io.Reader) (*index.InvertedIndex, ReadStats, error) {
	logger := slog.Default().With("component", "index-reader")
	var stats ReadStats
	postings := make(map[string]index.PostingList)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		lemma, pl, err := parseRecord(raw)
		if err != nil {
			stats.Malformed++
			logger.Debug("skipping index record", "line", line, "error", err)
			continue
		}
		if _, dup := postings[lemma]; dup {
			stats.Duplicates++
		}
		postings[lemma] = pl
		stats.Records++
	}
	ix := index.New(postings)
	if err := sc.Err(); err != nil {
		return ix, stats, fmt.Errorf("reading index records: %w", err)
	}
	return ix, stats, nil
}

func parseRecord(raw []byte) (string, index.PostingList, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, err)
	}
	if rec.V != 0 && rec.V != SchemaVersion {
		return "", nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrMalformedRecord, rec.V)
	}
	if rec.Word == "" {
		return "", nil, fmt.Errorf("%w: empty word", apperrors.ErrMalformedRecord)
	}
	if rec.Count != len(rec.Postings) {
		return "", nil, fmt.Errorf("%w: count %d != %d postings", apperrors.ErrMalformedRecord, rec.Count, len(rec.Postings))
	}
	pl := make(index.PostingList, len(rec.Postings))
	for i, id := range rec.Postings {
		if id <= 0 || id > math.MaxUint32 {
			return "", nil, fmt.Errorf("%w: document id %d out of range", apperrors.ErrMalformedRecord, id)
		}
		pl[i] = index.DocID(id)
	}
	if !pl.Valid() {
		return "", nil, fmt.Errorf("%w: postings of %q not strictly ascending", apperrors.ErrMalformedRecord, rec.Word)
	}
	return rec.Word, pl, nil
}

// Load reads the index at path. The returned index is never nil: a missing
// file yields an empty index and an error wrapping ErrMissingResource.
func Load(path string) (*index.InvertedIndex, ReadStats, error) {
	logger := slog.Default().With("component", "index-reader", "path", path)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("index file not found, serving with an empty index")
		} else {
			logger.Warn("index file unreadable, serving with an empty index", "error", err)
		}
		return index.Empty(), ReadStats{Missing: true},
			fmt.Errorf("%w: index file %s: %v", apperrors.ErrMissingResource, path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if Compressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			logger.Warn("index file is not valid zstd", "error", err)
			return index.Empty(), ReadStats{Missing: true},
				fmt.Errorf("%w: opening zstd stream %s: %v", apperrors.ErrMissingResource, path, err)
		}
		defer zr.Close()
		src = zr
	}

	ix, stats, err := Decode(src)
	if err != nil {
		logger.Warn("index file read failed part-way", "error", err, "records", stats.Records)
	}
	if stats.Malformed > 0 || stats.Duplicates > 0 {
		logger.Warn("index file had unusable records",
			"malformed", stats.Malformed,
			"duplicates", stats.Duplicates,
		)
	}
	logger.Info("inverted index loaded", "lemmas", ix.Len(), "postings", ix.TotalPostings())
	return ix, stats, err
}
