package weights

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

var bucketVectors = []byte("vectors")

// BoltStore is a Store backed by a bbolt file. Vectors are decoded on every
// lookup; LoadBolt pulls everything into memory through ForEach instead.
type BoltStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

type boltValue struct {
	Weights map[string]float64 `json:"w"`
}

func boltKey(id index.DocID) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(id))
	return k[:]
}

func decodeBolt(k, raw []byte) (Vector, error) {
	var bv boltValue
	if err := json.Unmarshal(raw, &bv); err != nil {
		return Vector{}, fmt.Errorf("%w: vector %x: %v", apperrors.ErrMalformedRecord, k, err)
	}
	return NewVector(bv.Weights), nil
}

// OpenBolt opens path read-only. A missing file wraps ErrMissingResource.
func OpenBolt(path string) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: bolt store %s", apperrors.ErrMissingResource, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt store %s: %w", path, err)
	}
	return &BoltStore{
		db:     db,
		logger: slog.Default().With("component", "bolt-weights", "path", path),
	}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Lookup returns the vector for id. A value that does not decode is an
// error wrapping ErrMalformedRecord.
func (s *BoltStore) Lookup(id index.DocID) (Vector, bool, error) {
	var (
		v  Vector
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		k := boltKey(id)
		raw := b.Get(k)
		if raw == nil {
			return nil
		}
		dv, err := decodeBolt(k, raw)
		if err != nil {
			return err
		}
		v, ok = dv, true
		return nil
	})
	if err != nil {
		return Vector{}, false, err
	}
	return v, ok, nil
}

// Vector treats an undecodable value as absent and logs it.
func (s *BoltStore) Vector(id index.DocID) (Vector, bool) {
	v, ok, err := s.Lookup(id)
	if err != nil {
		s.logger.Warn("bolt vector unreadable", "doc_id", id, "error", err)
		return Vector{}, false
	}
	return v, ok
}

func (s *BoltStore) Len() int {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketVectors); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("bolt store unreadable", "error", err)
	}
	return n
}

// IDs returns stored ids ascending; big-endian keys iterate in id order.
func (s *BoltStore) IDs() []index.DocID {
	var ids []index.DocID
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if len(k) == 4 {
				ids = append(ids, index.DocID(binary.BigEndian.Uint32(k)))
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("bolt store unreadable", "error", err)
	}
	return ids
}

// ForEach decodes every vector in id order and stops at the first error,
// either a decode failure or one returned by fn.
func (s *BoltStore) ForEach(fn func(id index.DocID, v Vector) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, raw []byte) error {
			if len(k) != 4 {
				return nil
			}
			v, err := decodeBolt(k, raw)
			if err != nil {
				return err
			}
			return fn(index.DocID(binary.BigEndian.Uint32(k)), v)
		})
	})
}

// ExportBolt writes every vector of src into a new bbolt file at path,
// replacing any previous file atomically.
func ExportBolt(path string, src Store) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	os.Remove(tmp)
	db, err := bbolt.Open(tmp, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("creating bolt store %s: %w", tmp, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		for _, id := range src.IDs() {
			v, _ := src.Vector(id)
			raw, err := json.Marshal(boltValue{Weights: v.Weights})
			if err != nil {
				return fmt.Errorf("encoding vector %d: %w", id, err)
			}
			if err := b.Put(boltKey(id), raw); err != nil {
				return fmt.Errorf("storing vector %d: %w", id, err)
			}
		}
		return nil
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadBolt reads a whole bbolt export into memory.
func LoadBolt(path string) (*MemoryStore, error) {
	bs, err := OpenBolt(path)
	if err != nil {
		return NewMemoryStore(nil), err
	}
	defer bs.Close()
	vectors := make(map[index.DocID]Vector)
	err = bs.ForEach(func(id index.DocID, v Vector) error {
		vectors[id] = v
		return nil
	})
	if err != nil {
		return NewMemoryStore(nil), fmt.Errorf("loading bolt store %s: %w", path, err)
	}
	return NewMemoryStore(vectors), nil
}
