package lemmatizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
)

func TestExtractText(t *testing.T) {
	doc := `<html><head><title>Заголовок</title><style>body{color:red}</style></head>
<body><p>Он   бежал
 в парке.</p><script>var x = "скрипт";</script><noscript>нет</noscript><div>Конец</div></body></html>`
	got, err := ExtractText(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Заголовок Он бежал в парке. Конец", got)
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{"NUMB", "LATN"}, []string{"и", "в"}, 0.5)
	in := []Analysis{
		{Surface: "бежал", Lemma: "бежать", Tag: TagWord, Confidence: 0.9},
		{Surface: "в", Lemma: "в", Tag: TagWord, Confidence: 1},
		{Surface: "42", Lemma: "42", Tag: TagNumber, Confidence: 1},
		{Surface: "park", Lemma: "park", Tag: TagLatin, Confidence: 1},
		{Surface: "парке", Lemma: "парк", Tag: TagWord, Confidence: 0.4},
		{Surface: "лесу", Lemma: "лес", Tag: TagWord, Confidence: 0.5},
	}
	got := f.Apply(in)
	want := []Analysis{in[0], in[5]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterFromConfigDefaults(t *testing.T) {
	cfg := config.Default().Lemmatizer
	f, err := FilterFromConfig(cfg)
	require.NoError(t, err)
	assert.False(t, f.Keep(Analysis{Surface: "и", Lemma: "и", Tag: TagWord, Confidence: 1}))
	assert.False(t, f.Keep(Analysis{Surface: "12", Lemma: "12", Tag: TagNumber, Confidence: 1}))
	assert.True(t, f.Keep(Analysis{Surface: "парк", Lemma: "парк", Tag: TagWord, Confidence: 1}))
}

func TestFilterFromConfigStopWordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("# custom\nпарк\n"), 0o644))
	f, err := FilterFromConfig(config.LemmatizerConfig{StopWordsFile: path, MinConfidence: 0.5})
	require.NoError(t, err)
	assert.False(t, f.Keep(Analysis{Surface: "парк", Tag: TagWord, Confidence: 1}))
	assert.True(t, f.Keep(Analysis{Surface: "и", Tag: TagWord, Confidence: 1}))

	_, err = FilterFromConfig(config.LemmatizerConfig{StopWordsFile: filepath.Join(t.TempDir(), "none")})
	assert.Error(t, err)
}

func TestSnowballAnalyzer(t *testing.T) {
	a, err := NewSnowballAnalyzer("russian")
	require.NoError(t, err)
	got, err := a.Analyze(context.Background(), "Бегущие бегущий, 2024 Python")
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "бегущие", got[0].Surface)
	assert.Equal(t, TagWord, got[0].Tag)
	assert.Equal(t, got[0].Lemma, got[1].Lemma, "inflections share a stem")
	assert.Equal(t, TagNumber, got[2].Tag)
	assert.Equal(t, TagLatin, got[3].Tag)
	assert.Equal(t, "python", got[3].Lemma)

	_, err = NewSnowballAnalyzer("klingon")
	assert.Error(t, err)
}

func TestSnowballAnalyzerCancelled(t *testing.T) {
	a, err := NewSnowballAnalyzer("russian")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, "слово")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroup(t *testing.T) {
	got := Group([]Analysis{
		{Surface: "парке", Lemma: "парк"},
		{Surface: "бежал", Lemma: "бежать"},
		{Surface: "парк", Lemma: "парк"},
		{Surface: "парке", Lemma: "парк"},
	})
	want := []lemma.Record{
		{Lemma: "бежать", Count: 1, Surfaces: []string{"бежал"}},
		{Lemma: "парк", Count: 3, Surfaces: []string{"парк", "парке"}},
	}
	assert.Equal(t, want, got)
}

// stubAnalyzer maps every word to itself, except entries of lemmas.
type stubAnalyzer map[string]string

func (s stubAnalyzer) Analyze(_ context.Context, text string) ([]Analysis, error) {
	var out []Analysis
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!")
		l, ok := s[w]
		if !ok {
			l = w
		}
		out = append(out, Analysis{Surface: w, Lemma: l, Tag: TagWord, Confidence: 1})
	}
	return out, nil
}

func TestPipelineRun(t *testing.T) {
	pages := t.TempDir()
	out := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(filepath.Join(pages, "page_1.html"), []byte("<p>Он бежал в парке.</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "page_2.html"), []byte("<p>Бежит, бежал!</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "index.txt"), []byte("1: http://a\n"), 0o644))

	analyzer := stubAnalyzer{"бежал": "бежать", "бежит": "бежать", "парке": "парк"}
	var calls atomic.Int32
	p, err := NewPipeline(analyzer, NewFilter(nil, []string{"он", "в"}, 0.5), 2,
		WithProgress(func(done, total int) { calls.Add(1) }))
	require.NoError(t, err)
	defer p.Release()

	res, err := p.Run(context.Background(), pages, out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Lemmas)
	assert.Empty(t, res.Failed)
	assert.Equal(t, int32(2), calls.Load())

	data, err := os.ReadFile(filepath.Join(out, "page_2_lemmas.txt"))
	require.NoError(t, err)
	assert.Equal(t, "бежать 2: бежал бежит\n", string(data))

	// The output is what the indexer reads.
	docs, err := corpus.Discover(out, corpus.DefaultPattern)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	l, err := corpus.ReadLemmas(docs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"бежать", "парк"}, l.Distinct())
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "page_3_lemmas.txt", OutputName("page_3.html"))
	assert.Equal(t, "page_3_lemmas.txt", OutputName("sub/page_3.html"))
}
