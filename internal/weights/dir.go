package weights

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// DefaultExt is the extension of weight files.
const DefaultExt = ".txt"

const docPrefix = "page_"

// DocName returns the weight-file name of id, e.g. "page_3.txt".
func DocName(id index.DocID, ext string) string {
	return docPrefix + id.String() + ext
}

// ParseDocName is the inverse of DocName.
func ParseDocName(name, ext string) (index.DocID, bool) {
	if !strings.HasPrefix(name, docPrefix) || !strings.HasSuffix(name, ext) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, docPrefix), ext)
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return index.DocID(n), true
}

// ParseLine decodes "lemma field2 weight [...]". Only fields 1 and 3 are
// used.
func ParseLine(line string) (string, float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", 0, fmt.Errorf("%w: %d fields", apperrors.ErrMalformedRecord, len(fields))
	}
	w, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: weight %q", apperrors.ErrMalformedRecord, fields[2])
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return "", 0, fmt.Errorf("%w: weight %v out of range", apperrors.ErrMalformedRecord, w)
	}
	return fields[0], w, nil
}

// ReadVector decodes one weight file. Malformed lines are skipped and
// counted. A lemma listed twice keeps its last weight.
func ReadVector(r io.Reader) (Vector, int, error) {
	weights := make(map[string]float64)
	malformed := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lemma, w, err := ParseLine(line)
		if err != nil {
			malformed++
			continue
		}
		weights[lemma] = w
	}
	return NewVector(weights), malformed, sc.Err()
}

// LoadStats describes a directory load.
type LoadStats struct {
	Missing   bool `json:"missing"`
	Documents int  `json:"documents"`
	Skipped   int  `json:"skipped_files"`
	Malformed int  `json:"malformed"`
}

// LoadDir reads every page_<id><ext> file in dir. The returned store is
// never nil: a missing directory yields an empty store and an error wrapping
// ErrMissingResource. Files that do not follow the naming convention, or
// cannot be read, are skipped.
func LoadDir(dir, ext string) (*MemoryStore, LoadStats, error) {
	if ext == "" {
		ext = DefaultExt
	}
	logger := slog.Default().With("component", "weight-store", "dir", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("weight directory not found, serving with an empty store")
		} else {
			logger.Warn("weight directory unreadable, serving with an empty store", "error", err)
		}
		return NewMemoryStore(nil), LoadStats{Missing: true},
			fmt.Errorf("%w: weight directory %s: %v", apperrors.ErrMissingResource, dir, err)
	}

	var stats LoadStats
	vectors := make(map[index.DocID]Vector, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		id, ok := ParseDocName(e.Name(), ext)
		if !ok {
			stats.Skipped++
			logger.Debug("weight file name does not carry a document id", "file", e.Name())
			continue
		}
		v, malformed, err := readVectorFile(filepath.Join(dir, e.Name()))
		stats.Malformed += malformed
		if err != nil {
			stats.Skipped++
			logger.Warn("skipping weight file", "file", e.Name(), "error", err)
			continue
		}
		vectors[id] = v
	}
	stats.Documents = len(vectors)
	if stats.Malformed > 0 || stats.Skipped > 0 {
		logger.Warn("weight directory had unusable entries",
			"malformed_lines", stats.Malformed,
			"skipped_files", stats.Skipped,
		)
	}
	logger.Info("weight vectors loaded", "documents", stats.Documents)
	return NewMemoryStore(vectors), stats, nil
}

func readVectorFile(path string) (Vector, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vector{}, 0, err
	}
	defer f.Close()
	return ReadVector(f)
}
