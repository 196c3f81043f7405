package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDiscoverSortsAndNumbers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page_2_lemmas.txt"), "")
	writeFile(t, filepath.Join(dir, "page_10_lemmas.txt"), "")
	writeFile(t, filepath.Join(dir, "page_1_lemmas.txt"), "")
	writeFile(t, filepath.Join(dir, "page_1_tokens.txt"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x_lemmas.txt.d"), 0o755))

	docs, err := Discover(dir, "")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	// Byte order: '0' sorts before '_'.
	assert.Equal(t, "page_10_lemmas.txt", docs[0].Name)
	assert.Equal(t, index.DocID(1), docs[0].ID)
	assert.Equal(t, 10, docs[0].Key())
	assert.Equal(t, "page_1_lemmas.txt", docs[1].Name)
	assert.Equal(t, index.DocID(2), docs[1].ID)
	assert.Equal(t, 1, docs[1].Key())
	assert.Equal(t, "page_2_lemmas.txt", docs[2].Name)
	assert.Equal(t, index.DocID(3), docs[2].ID)
}

func TestDiscoverRecursivePattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "page_3_lemmas.txt"), "")
	writeFile(t, filepath.Join(dir, "a", "page_4_lemmas.txt"), "")

	docs, err := Discover(dir, "**/*_lemmas.txt")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a/page_4_lemmas.txt", docs[0].Name)
	assert.Equal(t, 4, docs[0].Key())
}

func TestDiscoverMissingDir(t *testing.T) {
	docs, err := Discover(filepath.Join(t.TempDir(), "nope"), "")
	assert.ErrorIs(t, err, apperrors.ErrMissingResource)
	assert.Empty(t, docs)
}

func TestReadLemmas(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page_1_lemmas.txt"), "бежать 2: бежал бежит\nпарк парке\nбежать 1: бегу\n: bad\n")
	docs, err := Discover(dir, "")
	require.NoError(t, err)

	l, err := ReadLemmas(docs[0])
	require.NoError(t, err)
	assert.Equal(t, 1, l.Malformed)
	assert.Equal(t, []string{"бежать", "парк"}, l.Distinct())
	assert.Equal(t, map[string]int{"бежать": 3, "парк": 1}, l.Counts())
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, 7, PageKey("sub/page_7.html"))
	assert.Equal(t, 0, PageKey("doc.txt"))
}
