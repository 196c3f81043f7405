// Package tokenizer splits text into lower-cased word tokens. A word is a
// maximal run of Unicode letters, numbers and underscores; everything else
// separates words. Query normalisation uses the raw tokens, the lemmatizer
// additionally drops stop-words through a Filter.
package tokenizer

import (
	"bufio"
	"io"
	"strings"
	"unicode"
)

// Token is one word and its ordinal position in the text.
type Token struct {
	Term     string
	Position int
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Tokenize lower-cases text and returns its words in order.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = Token{Term: w, Position: i}
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// Filter drops stop-words and tokens shorter than MinRunes.
type Filter struct {
	stop     map[string]struct{}
	MinRunes int
}

// NewFilter builds a filter over the given stop-words (compared lower-cased).
func NewFilter(stopWords []string) *Filter {
	f := &Filter{stop: make(map[string]struct{}, len(stopWords)), MinRunes: 1}
	for _, w := range stopWords {
		f.stop[strings.ToLower(w)] = struct{}{}
	}
	return f
}

// IsStopWord reports whether term is filtered out as a stop-word.
func (f *Filter) IsStopWord(term string) bool {
	_, ok := f.stop[term]
	return ok
}

// Keep reports whether term survives the filter.
func (f *Filter) Keep(term string) bool {
	if f.IsStopWord(term) {
		return false
	}
	return len([]rune(term)) >= f.MinRunes
}

// Apply returns the tokens that survive, preserving order and positions.
func (f *Filter) Apply(tokens []Token) []Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if f.Keep(t.Term) {
			out = append(out, t)
		}
	}
	return out
}

// ReadStopWords reads one word per line; blank lines and lines starting with
// '#' are ignored.
func ReadStopWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, strings.ToLower(w))
	}
	return words, sc.Err()
}

// RussianStopWords is the stock Russian stop-word list.
var RussianStopWords = strings.Fields(`
и в во не что он на я с со как а то все она так его но да ты к у же вы за бы
по только ее мне было вот от меня еще нет о из ему теперь когда даже ну вдруг
ли если уже или ни быть был него до вас нибудь опять уж вам ведь там потом
себя ничего ей может они тут где есть надо ней для мы тебя их чем была сам
чтоб без будто чего раз тоже себе под будет ж тогда кто этот того потому
этого какой совсем ним здесь этом один почти мой тем чтобы нее сейчас были
куда зачем всех никогда можно при наконец два об другой хоть после над
больше тот через эти нас про всего них какая много разве три эту моя
впрочем хорошо свою этой перед иногда лучше чуть том нельзя такой им более
всегда конечно всю между
`)
