package indexfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// CatalogFile is the name of the document catalog written next to the index.
const CatalogFile = "docs.json"

// DocInfo describes one indexed document.
type DocInfo struct {
	ID     index.DocID `json:"id"`
	File   string      `json:"file"`
	Key    int         `json:"key,omitempty"`
	Source string      `json:"source,omitempty"`
}

// Catalog maps document ids to their origin.
type Catalog struct {
	docs map[index.DocID]DocInfo
}

type catalogFile struct {
	V         int       `json:"v"`
	Documents []DocInfo `json:"documents"`
}

func NewCatalog(docs []DocInfo) *Catalog {
	c := &Catalog{docs: make(map[index.DocID]DocInfo, len(docs))}
	for _, d := range docs {
		c.docs[d.ID] = d
	}
	return c
}

// Get returns the entry for id.
func (c *Catalog) Get(id index.DocID) (DocInfo, bool) {
	if c == nil {
		return DocInfo{}, false
	}
	d, ok := c.docs[id]
	return d, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

// Documents returns all entries sorted by id.
func (c *Catalog) Documents() []DocInfo {
	if c == nil {
		return nil
	}
	out := make([]DocInfo, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CatalogPath returns the catalog location for an index file.
func CatalogPath(indexPath string) string {
	return filepath.Join(filepath.Dir(indexPath), CatalogFile)
}

// WriteCatalog atomically writes c to path.
func WriteCatalog(path string, c *Catalog) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(catalogFile{V: SchemaVersion, Documents: c.Documents()})
	})
}

// LoadCatalog reads the catalog at path. A missing file yields an empty
// catalog and an error wrapping ErrMissingResource.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewCatalog(nil), fmt.Errorf("%w: catalog %s", apperrors.ErrMissingResource, path)
		}
		return NewCatalog(nil), fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return NewCatalog(nil), fmt.Errorf("%w: catalog %s: %v", apperrors.ErrMalformedRecord, path, err)
	}
	return NewCatalog(cf.Documents), nil
}
