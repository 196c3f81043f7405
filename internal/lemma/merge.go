package lemma

import (
	"fmt"
	"os"
	"sort"
)

// Merger folds per-document lemma records into one global lemma source:
// one record per lemma, surfaces deduplicated and sorted, no counts.
type Merger struct {
	groups    map[string]map[string]struct{}
	Malformed int
}

func NewMerger() *Merger {
	return &Merger{groups: make(map[string]map[string]struct{})}
}

// Add merges one record.
func (m *Merger) Add(rec Record) {
	g, ok := m.groups[rec.Lemma]
	if !ok {
		g = make(map[string]struct{})
		m.groups[rec.Lemma] = g
	}
	for _, s := range rec.Surfaces {
		g[s] = struct{}{}
	}
}

// AddFile merges every record of the file at path.
func (m *Merger) AddFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	stats, err := ReadRecords(f, m.Add)
	m.Malformed += stats.Malformed
	return err
}

// Records returns the merged groups sorted by lemma.
func (m *Merger) Records() []Record {
	out := make([]Record, 0, len(m.groups))
	for l, g := range m.groups {
		surfaces := make([]string, 0, len(g))
		for s := range g {
			surfaces = append(surfaces, s)
		}
		sort.Strings(surfaces)
		out = append(out, Record{Lemma: l, Surfaces: surfaces})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lemma < out[j].Lemma })
	return out
}
