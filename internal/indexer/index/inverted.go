package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedIndex is immutable after construction. Every posting list is
// mirrored by a roaring bitmap so that candidate generation is a single
// FastOr over the query lemmas.
type InvertedIndex struct {
	postings map[string]PostingList
	bitmaps  map[string]*roaring.Bitmap
	total    int
	maxDoc   DocID
}

// New takes ownership of postings. Lists must be Valid.
func New(postings map[string]PostingList) *InvertedIndex {
	ix := &InvertedIndex{
		postings: postings,
		bitmaps:  make(map[string]*roaring.Bitmap, len(postings)),
	}
	for lemma, pl := range postings {
		bm := roaring.New()
		ids := make([]uint32, len(pl))
		for i, id := range pl {
			ids[i] = uint32(id)
		}
		bm.AddMany(ids)
		bm.RunOptimize()
		ix.bitmaps[lemma] = bm
		ix.total += len(pl)
		if n := len(pl); n > 0 && pl[n-1] > ix.maxDoc {
			ix.maxDoc = pl[n-1]
		}
	}
	return ix
}

// Empty returns an index with no lemmas.
func Empty() *InvertedIndex {
	return New(map[string]PostingList{})
}

// Postings returns the list for lemma, or nil. The slice must not be
// modified.
func (ix *InvertedIndex) Postings(lemma string) PostingList {
	return ix.postings[lemma]
}

// Candidates returns the union of the posting lists of lemmas. Unknown
// lemmas contribute nothing.
func (ix *InvertedIndex) Candidates(lemmas []string) *roaring.Bitmap {
	bms := make([]*roaring.Bitmap, 0, len(lemmas))
	for _, l := range lemmas {
		if bm, ok := ix.bitmaps[l]; ok {
			bms = append(bms, bm)
		}
	}
	switch len(bms) {
	case 0:
		return roaring.New()
	case 1:
		return bms[0].Clone()
	default:
		return roaring.FastOr(bms...)
	}
}

// Len is the number of lemmas.
func (ix *InvertedIndex) Len() int { return len(ix.postings) }

// TotalPostings is the sum of all posting-list lengths.
func (ix *InvertedIndex) TotalPostings() int { return ix.total }

// MaxDocID is the largest id referenced by any posting list.
func (ix *InvertedIndex) MaxDocID() DocID { return ix.maxDoc }

// Entries returns every lemma with its postings, sorted by lemma.
func (ix *InvertedIndex) Entries() []Entry {
	out := make([]Entry, 0, len(ix.postings))
	for l, pl := range ix.postings {
		out = append(out, Entry{Lemma: l, Postings: pl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lemma < out[j].Lemma })
	return out
}
