package indexfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

func sampleIndex() *index.InvertedIndex {
	return index.New(map[string]index.PostingList{
		"бежать": {1, 3},
		"парк":   {3},
		"<&>":    {2, 4, 9},
	})
}

func TestEncodeFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, index.New(map[string]index.PostingList{"бежать": {1, 3}})))
	assert.Equal(t, `{"v":1,"word":"бежать","count":2,"inverted_array":[1,3]}`+"\n", buf.String())
}

func TestWriteLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"inverted_index.txt", "inverted_index.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			orig := sampleIndex()
			require.NoError(t, Write(path, orig))

			got, stats, err := Load(path)
			require.NoError(t, err)
			assert.Zero(t, stats.Malformed)
			assert.Equal(t, orig.Entries(), got.Entries())
		})
	}
}

func TestWriteIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "a.zst"} {
		first := filepath.Join(dir, "1-"+name)
		second := filepath.Join(dir, "2-"+name)
		require.NoError(t, Write(first, sampleIndex()))
		require.NoError(t, Write(second, sampleIndex()))
		a, err := os.ReadFile(first)
		require.NoError(t, err)
		b, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestDecodeSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{"v":1,"word":"ok","count":2,"inverted_array":[1,2]}`,
		`{"word":"legacy","count":1,"inverted_array":[5]}`,
		`not json`,
		`{"v":2,"word":"future","count":1,"inverted_array":[1]}`,
		`{"v":1,"word":"","count":1,"inverted_array":[1]}`,
		`{"v":1,"word":"badcount","count":3,"inverted_array":[1]}`,
		`{"v":1,"word":"zero","count":1,"inverted_array":[0]}`,
		`{"v":1,"word":"desc","count":2,"inverted_array":[3,1]}`,
		`{"v":1,"word":"dup","count":2,"inverted_array":[2,2]}`,
		``,
		`{"v":1,"word":"ok","count":1,"inverted_array":[7]}`,
	}, "\n")

	ix, stats, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 7, stats.Malformed)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, index.PostingList{7}, ix.Postings("ok"))
	assert.Equal(t, index.PostingList{5}, ix.Postings("legacy"))
	assert.Nil(t, ix.Postings("future"))
}

func TestLoadMissingFile(t *testing.T) {
	ix, stats, err := Load(filepath.Join(t.TempDir(), "inverted_index.txt"))
	require.ErrorIs(t, err, apperrors.ErrMissingResource)
	require.NotNil(t, ix)
	assert.True(t, stats.Missing)
	assert.Zero(t, ix.Len())
	assert.True(t, ix.Candidates([]string{"бежать"}).IsEmpty())
}

func TestCatalogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), CatalogFile)
	c := NewCatalog([]DocInfo{
		{ID: 2, File: "page_10_lemmas.txt", Key: 10, Source: "https://example.org/10"},
		{ID: 1, File: "page_1_lemmas.txt", Key: 1},
	})
	require.NoError(t, WriteCatalog(path, c))

	got, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, c.Documents(), got.Documents())
	d, ok := got.Get(2)
	require.True(t, ok)
	assert.Equal(t, "https://example.org/10", d.Source)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "none.json"))
	assert.ErrorIs(t, err, apperrors.ErrMissingResource)
}
