package index

import (
	"slices"
	"sync"
)

// Accumulator collects per-document lemma sets from concurrent workers.
// Documents may arrive in any order; Build re-sorts every list by id.
type Accumulator struct {
	mu       sync.Mutex
	postings map[string]PostingList
	seen     map[DocID]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		postings: make(map[string]PostingList),
		seen:     make(map[DocID]struct{}),
	}
}

// Add records that doc contains each of lemmas. Repeated lemmas count once.
// Adding the same doc twice is a no-op the second time and returns false.
func (a *Accumulator) Add(doc DocID, lemmas []string) bool {
	distinct := make(map[string]struct{}, len(lemmas))
	for _, l := range lemmas {
		distinct[l] = struct{}{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.seen[doc]; dup {
		return false
	}
	a.seen[doc] = struct{}{}
	for l := range distinct {
		a.postings[l] = append(a.postings[l], doc)
	}
	return true
}

// DocCount is the number of documents added.
func (a *Accumulator) DocCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// Build sorts every posting list and returns the index. The accumulator must
// not be used afterwards.
func (a *Accumulator) Build() *InvertedIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, pl := range a.postings {
		slices.Sort(pl)
	}
	ix := New(a.postings)
	a.postings = nil
	return ix
}
