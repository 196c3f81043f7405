// Package lemmatizer turns fetched pages into per-document lemma files. The
// morphology itself sits behind the Analyzer interface; the package ships a
// snowball-stemmer adapter, an HTML text extractor and a worker-pool
// pipeline.
package lemmatizer

import (
	"context"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
)

// Analysis is one analyzed token.
type Analysis struct {
	Surface    string
	Lemma      string
	Tag        string
	Confidence float64
}

// Analyzer maps text to analyzed tokens. Surfaces are lower-cased.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]Analysis, error)
}

// Filter drops analyses with a blacklisted tag, stop-word surfaces and
// analyses below MinConfidence.
type Filter struct {
	blacklist     map[string]struct{}
	stop          *tokenizer.Filter
	MinConfidence float64
}

func NewFilter(blacklistTags, stopWords []string, minConfidence float64) *Filter {
	f := &Filter{
		blacklist:     make(map[string]struct{}, len(blacklistTags)),
		stop:          tokenizer.NewFilter(stopWords),
		MinConfidence: minConfidence,
	}
	for _, t := range blacklistTags {
		f.blacklist[t] = struct{}{}
	}
	return f
}

// FilterFromConfig builds the configured filter. Without a stop-word file
// the built-in Russian list is used.
func FilterFromConfig(cfg config.LemmatizerConfig) (*Filter, error) {
	stop := tokenizer.RussianStopWords
	if cfg.StopWordsFile != "" {
		f, err := os.Open(cfg.StopWordsFile)
		if err != nil {
			return nil, fmt.Errorf("opening stop-words %s: %w", cfg.StopWordsFile, err)
		}
		defer f.Close()
		if stop, err = tokenizer.ReadStopWords(f); err != nil {
			return nil, fmt.Errorf("reading stop-words %s: %w", cfg.StopWordsFile, err)
		}
	}
	return NewFilter(cfg.BlacklistTags, stop, cfg.MinConfidence), nil
}

func (f *Filter) Keep(a Analysis) bool {
	if _, bad := f.blacklist[a.Tag]; bad {
		return false
	}
	if !f.stop.Keep(a.Surface) {
		return false
	}
	return a.Confidence >= f.MinConfidence
}

// Apply returns the analyses that survive, in order.
func (f *Filter) Apply(as []Analysis) []Analysis {
	out := as[:0:0]
	for _, a := range as {
		if f.Keep(a) {
			out = append(out, a)
		}
	}
	return out
}
