// Package index holds the in-memory inverted index: lemma to ascending,
// duplicate-free posting list of document ids.
package index

import (
	"strconv"
)

// DocID is a 1-based document identifier assigned in sorted-filename order.
type DocID uint32

func (d DocID) String() string {
	return strconv.FormatUint(uint64(d), 10)
}

// PostingList is an ascending, duplicate-free list of document ids.
type PostingList []DocID

// Valid reports whether p is non-empty, strictly ascending and free of the
// zero id.
func (p PostingList) Valid() bool {
	if len(p) == 0 {
		return false
	}
	prev := DocID(0)
	for _, id := range p {
		if id <= prev {
			return false
		}
		prev = id
	}
	return true
}

// Entry pairs a lemma with its postings.
type Entry struct {
	Lemma    string
	Postings PostingList
}
