package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/indexfile"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/weights"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/config"
)

func testExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	dict, _ := lemma.Build([]lemma.Record{
		{Lemma: "бежать", Surfaces: []string{"бежал", "бежит"}},
		{Lemma: "парк", Surfaces: []string{"парке"}},
		{Lemma: "лес", Surfaces: []string{"лесу"}},
	})
	ix := index.New(map[string]index.PostingList{
		"бежать": {1, 3},
		"парк":   {3},
	})
	store := weights.NewMemoryStore(map[index.DocID]weights.Vector{
		1: weights.NewVector(map[string]float64{"бежать": 0.5}),
		3: weights.NewVector(map[string]float64{"бежать": 0.2, "парк": 0.1}),
	})
	catalog := indexfile.NewCatalog([]indexfile.DocInfo{
		{ID: 1, File: "page_1_lemmas.txt", Key: 1, Source: "https://example.org/a"},
	})
	snap := snapshot.New(dict, ix, store, catalog)
	return executor.New(staticSource{snap}, config.SearchConfig{DefaultLimit: 10, MaxResults: 100})
}

func TestAnswer(t *testing.T) {
	exec := testExecutor(t)
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "ranked",
			query: "бежит",
			want: []string{
				"Results (document: relevance):",
				"Document 1: 1.000000  https://example.org/a",
				"Document 3: 0.894427",
			},
		},
		{name: "unknown words", query: "котики", want: []string{"No known lemmas in the query."}},
		{name: "known lemma without postings", query: "лесу", want: []string{"Nothing found."}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, answer(context.Background(), &out, exec, tt.query, 10))
			assert.Equal(t, tt.want, nonEmptyLines(out.String()))
		})
	}
}

func TestREPLStopsOnQuit(t *testing.T) {
	exec := testExecutor(t)
	in := strings.NewReader("\nпарке\nq\nбежит\n")
	var out bytes.Buffer

	require.NoError(t, repl(context.Background(), in, &out, exec, 10))

	assert.Equal(t, 3, strings.Count(out.String(), "Query (or 'q' to quit):"))
	assert.Contains(t, out.String(), "Document 3: 0.447214")
	assert.NotContains(t, out.String(), "Document 1:")
}

func TestREPLStopsOnEOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), strings.NewReader("бежал"), &out, testExecutor(t), 1))
	assert.Contains(t, out.String(), "Document 1: 1.000000")
	assert.NotContains(t, out.String(), "Document 3:")
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lemmas.txt"), []byte("парк парке\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.txt"), []byte(`{"v":1,"word":"парк","count":1,"inverted_array":[1]}`+"\n"), 0o644))
	t.Setenv("LS_LEMMA_SOURCE", filepath.Join(dir, "lemmas.txt"))
	t.Setenv("LS_INDEX_FILE", filepath.Join(dir, "index.txt"))
	t.Setenv("LS_WEIGHTS_DIR", filepath.Join(dir, "weights"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"lemmas": 1`)
	assert.Contains(t, out.String(), `"fingerprint"`)
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimRight(l, " "); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
