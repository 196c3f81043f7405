// Package ranker scores candidate documents against a lemma query by cosine
// similarity between a binary query vector and the documents' TF-IDF
// vectors.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/weights"
)

// ScoredDoc is one ranked document.
type ScoredDoc struct {
	DocID index.DocID `json:"doc_id"`
	Score float64     `json:"score"`
}

// Ranking is the outcome of one Run.
type Ranking struct {
	Results []ScoredDoc
	// Candidates is the size of the posting-list union.
	Candidates int
	// Scored counts candidates that received a score, before truncation.
	Scored int
}

// Rank returns at most limit documents (all when limit <= 0) ordered by
// descending score, ties broken by ascending id.
func Rank(lemmas []string, ix *index.InvertedIndex, store weights.Store, limit int) []ScoredDoc {
	return Run(lemmas, ix, store, limit).Results
}

// Run is Rank with candidate statistics.
//
// Repeated lemmas count once. A document is a candidate when it contains any
// query lemma. Candidates missing from store are dropped, as are those whose
// denominator is zero.
func Run(lemmas []string, ix *index.InvertedIndex, store weights.Store, limit int) Ranking {
	distinct := dedupe(lemmas)
	if len(distinct) == 0 {
		return Ranking{}
	}
	candidates := ix.Candidates(distinct)
	queryNorm := math.Sqrt(float64(len(distinct)))

	results := make([]ScoredDoc, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		id := index.DocID(it.Next())
		vec, ok := store.Vector(id)
		if !ok {
			continue
		}
		denom := queryNorm * vec.Norm
		if denom == 0 {
			continue
		}
		var dot float64
		for _, l := range distinct {
			dot += vec.Weight(l)
		}
		results = append(results, ScoredDoc{DocID: id, Score: math.Min(dot/denom, 1)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	r := Ranking{Candidates: int(candidates.GetCardinality()), Scored: len(results)}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	r.Results = results
	return r
}

func dedupe(lemmas []string) []string {
	seen := make(map[string]struct{}, len(lemmas))
	out := make([]string, 0, len(lemmas))
	for _, l := range lemmas {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
