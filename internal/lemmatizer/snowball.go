package lemmatizer

import (
	"context"
	"fmt"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/tokenizer"
)

// Tags assigned by the snowball adapter. They reuse the names of the
// default blacklist so that numbers and foreign words are filtered out.
const (
	TagWord    = "WORD"
	TagNumber  = "NUMB"
	TagLatin   = "LATN"
	TagUnknown = "UNKN"
)

// SnowballAnalyzer uses the snowball stem of a word as its lemma. Words
// written in a script other than the analyzer's get the LATN or UNKN tag
// and are passed through unstemmed.
type SnowballAnalyzer struct {
	Language string
}

func NewSnowballAnalyzer(language string) (*SnowballAnalyzer, error) {
	if _, err := snowball.Stem("test", language, true); err != nil {
		return nil, fmt.Errorf("snowball language %q: %w", language, err)
	}
	return &SnowballAnalyzer{Language: language}, nil
}

func (a *SnowballAnalyzer) Analyze(ctx context.Context, text string) ([]Analysis, error) {
	terms := tokenizer.Terms(text)
	out := make([]Analysis, 0, len(terms))
	for i, term := range terms {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tag := a.classify(term)
		an := Analysis{Surface: term, Lemma: term, Tag: tag, Confidence: 1}
		if tag == TagWord {
			stem, err := snowball.Stem(term, a.Language, true)
			if err != nil {
				return nil, fmt.Errorf("stemming %q: %w", term, err)
			}
			if stem != "" {
				an.Lemma = stem
			}
		} else {
			an.Confidence = 0
		}
		out = append(out, an)
	}
	return out, nil
}

func (a *SnowballAnalyzer) classify(term string) string {
	var letters, digits, latin int
	for _, r := range term {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.In(r, unicode.Latin):
			latin++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	switch {
	case letters == 0 && digits > 0:
		return TagNumber
	case letters == 0:
		return TagUnknown
	case a.latinScript():
		return TagWord
	case latin > 0:
		return TagLatin
	default:
		return TagWord
	}
}

func (a *SnowballAnalyzer) latinScript() bool {
	return a.Language != "russian"
}
