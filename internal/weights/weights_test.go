package weights

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

func TestNormFloor(t *testing.T) {
	assert.Equal(t, 1.0, NewVector(nil).Norm)
	assert.Equal(t, 1.0, NewVector(map[string]float64{}).Norm)
	assert.Equal(t, 1.0, NewVector(map[string]float64{"a": 0, "b": 0}).Norm)
	assert.Equal(t, 0.5, NewVector(map[string]float64{"бежать": 0.5}).Norm)
	assert.InDelta(t, math.Sqrt(0.05), NewVector(map[string]float64{"бежать": 0.2, "парк": 0.1}).Norm, 1e-12)
}

func TestDocName(t *testing.T) {
	assert.Equal(t, "page_3.txt", DocName(3, ".txt"))
	for name, want := range map[string]index.DocID{"page_3.txt": 3, "page_0012.txt": 12} {
		id, ok := ParseDocName(name, ".txt")
		require.True(t, ok, name)
		assert.Equal(t, want, id)
	}
	for _, name := range []string{"page_.txt", "page_0.txt", "page_x.txt", "doc_1.txt", "page_1.csv", "page_-1.txt", "page_99999999999.txt"} {
		_, ok := ParseDocName(name, ".txt")
		assert.False(t, ok, name)
	}
}

func TestReadVectorSkipsMalformed(t *testing.T) {
	in := strings.Join([]string{
		"бежать 0.4 0.5",
		"short 1",
		"парк 1 abc",
		"нан 1 NaN",
		"инф 1 +Inf",
		"минус 1 -0.3",
		"",
		"лес 2.0 0.25 extra fields",
	}, "\n")
	v, malformed, err := ReadVector(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 5, malformed)
	assert.Equal(t, map[string]float64{"бежать": 0.5, "лес": 0.25}, v.Weights)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestLoadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lemmas_tf_idf")
	writeFiles(t, dir, map[string]string{
		"page_1.txt":  "бежать 1 0.5\n",
		"page_3.txt":  "бежать 1 0.2\nпарк 1 0.1\nbad\n",
		"page_4.txt":  "",
		"notes.txt":   "x 1 1\n",
		"page_5.json": "x 1 1\n",
	})

	store, stats, err := LoadDir(dir, ".txt")
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, []index.DocID{1, 3, 4}, store.IDs())
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.Skipped)

	empty, ok := store.Vector(4)
	require.True(t, ok)
	assert.Equal(t, 1.0, empty.Norm)

	_, ok = store.Vector(2)
	assert.False(t, ok)
}

func TestLoadDirMissing(t *testing.T) {
	store, stats, err := LoadDir(filepath.Join(t.TempDir(), "none"), "")
	require.ErrorIs(t, err, apperrors.ErrMissingResource)
	assert.True(t, stats.Missing)
	assert.Zero(t, store.Len())
}

func TestTFIDF(t *testing.T) {
	b := NewTFIDF()
	b.Add(1, map[string]int{"бежать": 3, "парк": 1})
	b.Add(2, map[string]int{"бежать": 1})
	b.Add(3, nil)

	terms := b.Terms()
	require.Len(t, terms, 3)
	assert.Empty(t, terms[3])

	doc1 := terms[1]
	require.Len(t, doc1, 2)
	assert.Equal(t, "бежать", doc1[0].Lemma)
	assert.InDelta(t, math.Log(3.0/2.0), doc1[0].IDF, 1e-12)
	assert.InDelta(t, 0.75*math.Log(3.0/2.0), doc1[0].TFIDF, 1e-12)
	assert.InDelta(t, 0.25*math.Log(3.0), doc1[1].TFIDF, 1e-12)

	store := b.Store()
	v, ok := store.Vector(3)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Norm)
}

func TestTFIDFReAddReplaces(t *testing.T) {
	b := NewTFIDF()
	b.Add(1, map[string]int{"a": 1})
	b.Add(2, map[string]int{"b": 1})
	b.Add(1, map[string]int{"b": 2})
	terms := b.Terms()
	assert.Equal(t, 0.0, terms[1][0].IDF)
}

func TestWriteDirThenLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "weights")
	writeFiles(t, dir, map[string]string{"page_99.txt": "stale 1 1\n"})

	b := NewTFIDF()
	b.Add(1, map[string]int{"бежать": 1, "парк": 1})
	b.Add(2, map[string]int{"бежать": 2})
	require.NoError(t, WriteDir(dir, ".txt", b.Terms()))

	raw, err := os.ReadFile(filepath.Join(dir, "page_2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "бежать 0 0\n", string(raw))

	store, _, err := LoadDir(dir, ".txt")
	require.NoError(t, err)
	assert.Equal(t, []index.DocID{1, 2}, store.IDs())

	want := b.Store()
	for _, id := range want.IDs() {
		w, _ := want.Vector(id)
		got, _ := store.Vector(id)
		assert.InDeltaMapValues(t, w.Weights, got.Weights, 0)
		assert.Equal(t, w.Norm, got.Norm)
	}
}

func TestBoltRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.db")
	src := NewMemoryStore(map[index.DocID]Vector{
		1:   NewVector(map[string]float64{"бежать": 0.5}),
		3:   NewVector(map[string]float64{"бежать": 0.2, "парк": 0.1}),
		300: NewVector(nil),
	})
	require.NoError(t, ExportBolt(path, src))

	loaded, err := LoadBolt(path)
	require.NoError(t, err)
	assert.Equal(t, src.IDs(), loaded.IDs())

	bs, err := OpenBolt(path)
	require.NoError(t, err)
	defer bs.Close()
	assert.Equal(t, 3, bs.Len())
	assert.Equal(t, []index.DocID{1, 3, 300}, bs.IDs())
	v, ok := bs.Vector(3)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(0.05), v.Norm, 1e-12)
	_, ok = bs.Vector(2)
	assert.False(t, ok)

	_, err = OpenBolt(filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, apperrors.ErrMissingResource)
}

func TestBoltCorruptVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.db")
	require.NoError(t, ExportBolt(path, NewMemoryStore(map[index.DocID]Vector{
		1: NewVector(map[string]float64{"бежать": 0.5}),
	})))
	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Put(boltKey(2), []byte("{not json"))
	}))
	require.NoError(t, db.Close())

	bs, err := OpenBolt(path)
	require.NoError(t, err)
	defer bs.Close()

	_, ok, err := bs.Lookup(2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	_, ok = bs.Vector(2)
	assert.False(t, ok)
	v, ok := bs.Vector(1)
	require.True(t, ok)
	assert.Equal(t, 0.5, v.Norm)
	assert.Equal(t, []index.DocID{1, 2}, bs.IDs())

	seen := 0
	err = bs.ForEach(func(index.DocID, Vector) error { seen++; return nil })
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	assert.Equal(t, 1, seen)

	loaded, err := LoadBolt(path)
	assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
	assert.Equal(t, 0, loaded.Len())
}
