package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkoes-labs/pharmsearch/internal/triplet"
)

// Index is a shard's set of per-point-type-triple tables, opened lazily from
// a directory on first use and cached for the lifetime of the Index.
type Index struct {
	dir string

	mu     sync.Mutex
	tables map[triplet.TypeKey]*Table
	absent map[triplet.TypeKey]bool
}

// Open returns an Index rooted at dir. dir must contain one file per
// point-type-triple table, named by TableFileName; tables are opened lazily.
func Open(dir string) *Index {
	return &Index{
		dir:    dir,
		tables: make(map[triplet.TypeKey]*Table),
		absent: make(map[triplet.TypeKey]bool),
	}
}

// TableFileName returns the on-disk file name for a point-type-triple table.
func TableFileName(key triplet.TypeKey) string {
	return fmt.Sprintf("triplet_%d_%d_%d.phidx", key[0], key[1], key[2])
}

// Close unmaps every table opened so far.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var firstErr error
	for _, t := range ix.tables {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// table returns the opened Table for key, or nil if the table is absent.
// A missing table is not an error (§4.1): the slot simply has zero matches.
func (ix *Index) table(key triplet.TypeKey) (*Table, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.absent[key] {
		return nil, nil
	}
	if t, ok := ix.tables[key]; ok {
		return t, nil
	}

	path := filepath.Join(ix.dir, TableFileName(key))
	t, err := OpenTable(path)
	if err != nil {
		if os.IsNotExist(err) {
			ix.absent[key] = true
			return nil, nil
		}
		return nil, err
	}
	ix.tables[key] = t
	return t, nil
}

// Query walks the table for a QueryTriplet's point-type key and returns
// every record within tolerance delta of its canonical distances. Returns
// (nil, nil) — zero matches, not an error — when the table is absent.
func (ix *Index) Query(key triplet.TypeKey, d12, d13, d23 uint16, delta uint16) ([]Record, error) {
	t, err := ix.table(key)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return t.RangeQuery(d12, d13, d23, delta)
}
