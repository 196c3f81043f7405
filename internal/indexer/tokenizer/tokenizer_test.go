package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerms(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Бежал!", []string{"бежал"}},
		{"мама мыла раму, 2 раза.", []string{"мама", "мыла", "раму", "2", "раза"}},
		{"snake_case and-dash", []string{"snake_case", "and", "dash"}},
		{"  \t\n ", nil},
		{"ЁЖИК/в тумане...", []string{"ёжик", "в", "тумане"}},
	}
	for _, tt := range cases {
		got := Terms(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("Кошка, собака")
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "собака", Position: 1}, tokens[1])
}

func TestFilter(t *testing.T) {
	f := NewFilter(RussianStopWords)
	f.MinRunes = 2
	got := f.Apply(Tokenize("и кошка в парке я"))
	assert.Equal(t, []Token{{Term: "кошка", Position: 1}, {Term: "парке", Position: 3}}, got)
	assert.True(t, f.IsStopWord("между"))
}

func TestReadStopWords(t *testing.T) {
	words, err := ReadStopWords(strings.NewReader("# comment\nИ\n\nв\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"и", "в"}, words)
}

var sampleTexts = map[string]string{
	"short": "Мальчик быстро бежал по парку, а собака бежала за ним.",
	"medium": `Поисковая система разбивает запрос на слова, приводит каждое слово
        к начальной форме и ищет документы, в которых встречаются эти леммы.
        Документы ранжируются по косинусной близости векторов TF-IDF.`,
	"long": strings.Repeat(`Инвертированный индекс сопоставляет каждой лемме
        упорядоченный список документов. Веса TF-IDF вычисляются заранее и
        хранятся отдельно для каждой страницы. `, 40),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTermsParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Terms(text)
		}
	})
}
