// Package lemma reads and writes lemma-group records and builds the
// surface-word to lemma Dictionary used by query normalisation.
//
// A record is one line:
//
//	lemma: surface1 surface2 ...
//	lemma 7: surface1 surface2 ...
//
// The optional integer before the colon is the number of occurrences of the
// lemma in one document; per-document corpus files carry it, the global
// lemma source does not. A record without any colon ("lemma s1 s2") is
// accepted as well.
package lemma

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// Record is one lemma group.
type Record struct {
	Lemma    string
	Count    int
	Surfaces []string
}

// Occurrences returns Count, or 1 when the record carries none.
func (r Record) Occurrences() int {
	if r.Count > 0 {
		return r.Count
	}
	return 1
}

// String renders the record in its line form without the trailing newline.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.Lemma)
	if r.Count > 0 {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(r.Count))
	}
	b.WriteByte(':')
	for _, s := range r.Surfaces {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	return b.String()
}

// ParseRecord decodes one non-blank line. Errors wrap ErrMalformedRecord.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("%w: blank line", apperrors.ErrMalformedRecord)
	}

	var rec Record
	rest := fields[1:]
	switch {
	case strings.HasSuffix(fields[0], ":"):
		rec.Lemma = strings.TrimRight(fields[0], ":")
	case len(fields) > 1 && strings.HasSuffix(fields[1], ":"):
		n, err := strconv.Atoi(strings.TrimSuffix(fields[1], ":"))
		if err != nil || n <= 0 {
			return Record{}, fmt.Errorf("%w: bad occurrence count %q", apperrors.ErrMalformedRecord, fields[1])
		}
		rec.Lemma = fields[0]
		rec.Count = n
		rest = fields[2:]
	default:
		rec.Lemma = fields[0]
	}
	if rec.Lemma == "" {
		return Record{}, fmt.Errorf("%w: empty lemma", apperrors.ErrMalformedRecord)
	}
	if len(rest) > 0 {
		rec.Surfaces = rest
	}
	return rec, nil
}

// ReadStats summarises one pass over a record stream.
type ReadStats struct {
	Records   int
	Malformed int
}

// ReadRecords decodes every line of r, skipping blank and malformed lines.
// The returned error is only set for I/O failures.
func ReadRecords(r io.Reader, fn func(Record)) (ReadStats, error) {
	var stats ReadStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			stats.Malformed++
			continue
		}
		stats.Records++
		fn(rec)
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("reading lemma records: %w", err)
	}
	return stats, nil
}

// WriteRecords writes recs sorted by lemma, one per line.
func WriteRecords(w io.Writer, recs []Record) error {
	sorted := make([]Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Lemma < sorted[j].Lemma
	})
	bw := bufio.NewWriter(w)
	for _, rec := range sorted {
		if _, err := bw.WriteString(rec.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
