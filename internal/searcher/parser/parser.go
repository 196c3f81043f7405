// Package parser normalises a free-text query into lemmas.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/tokenizer"
)

// Dictionary resolves a lower-cased surface word to its lemma.
type Dictionary interface {
	Lookup(word string) (string, bool)
}

// QueryPlan is a normalised query.
type QueryPlan struct {
	RawQuery string
	// Lemmas holds one entry per resolved token, in query order, duplicates
	// included.
	Lemmas []string
	// Unknown lists the tokens that had no dictionary entry.
	Unknown []string
}

// Parse lower-cases query, splits it into words and maps each word through
// dict. Words without a lemma are dropped into Unknown.
func Parse(query string, dict Dictionary) *QueryPlan {
	plan := &QueryPlan{RawQuery: query}
	for _, term := range tokenizer.Terms(query) {
		if l, ok := dict.Lookup(term); ok {
			plan.Lemmas = append(plan.Lemmas, l)
			continue
		}
		plan.Unknown = append(plan.Unknown, term)
	}
	return plan
}

// Empty reports whether no token resolved to a lemma.
func (p *QueryPlan) Empty() bool {
	return len(p.Lemmas) == 0
}

// Distinct returns the lemma set in first-seen order.
func (p *QueryPlan) Distinct() []string {
	seen := make(map[string]struct{}, len(p.Lemmas))
	out := make([]string, 0, len(p.Lemmas))
	for _, l := range p.Lemmas {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
