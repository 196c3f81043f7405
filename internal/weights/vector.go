// Package weights is the term-weight store: one lemma to weight vector per
// document together with its Euclidean norm. Vectors are reached through the
// Store interface; a directory of per-document files and a bbolt database are
// the two persisted layouts.
package weights

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
)

// Vector is the weight vector of one document.
type Vector struct {
	Weights map[string]float64
	// Norm is sqrt(sum of squared weights), or exactly 1.0 when that sum is
	// zero or the vector is empty.
	Norm float64
}

// NewVector takes ownership of w and computes the norm.
func NewVector(w map[string]float64) Vector {
	if w == nil {
		w = map[string]float64{}
	}
	return Vector{Weights: w, Norm: Norm(w)}
}

// Norm returns the floored Euclidean norm of w.
func Norm(w map[string]float64) float64 {
	// Key order makes the sum reproducible bit for bit.
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += w[k] * w[k]
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return 1.0
	}
	return n
}

// Weight returns the weight of lemma, 0 when absent.
func (v Vector) Weight(lemma string) float64 {
	return v.Weights[lemma]
}

// Store resolves document ids to vectors. Implementations are safe for
// concurrent readers.
type Store interface {
	Vector(id index.DocID) (Vector, bool)
	Len() int
	IDs() []index.DocID
}

// MemoryStore is an immutable in-memory Store.
type MemoryStore struct {
	vectors map[index.DocID]Vector
}

// NewMemoryStore takes ownership of vectors.
func NewMemoryStore(vectors map[index.DocID]Vector) *MemoryStore {
	if vectors == nil {
		vectors = map[index.DocID]Vector{}
	}
	return &MemoryStore{vectors: vectors}
}

func (s *MemoryStore) Vector(id index.DocID) (Vector, bool) {
	v, ok := s.vectors[id]
	return v, ok
}

func (s *MemoryStore) Len() int { return len(s.vectors) }

// IDs returns the stored ids in ascending order.
func (s *MemoryStore) IDs() []index.DocID {
	ids := make([]index.DocID, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
