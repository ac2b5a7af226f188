// Package catalog tracks built vector indexes by dataset and version so
// queries can target an explicit handle. It replaces any notion of a single
// process-wide "current index": multiple datasets and versions coexist.
package catalog

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/shirabe/internal/vector"
)

// Catalog is an in-process registry of built indexes. Safe for concurrent
// use; registering a new version for a dataset does not disturb readers of
// other versions.
type Catalog struct {
	mu      sync.RWMutex
	indexes map[key]*vector.Index
}

type key struct {
	dataset string
	version string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{indexes: make(map[key]*vector.Index)}
}

// Put registers the index for a dataset version, replacing any previous handle.
func (c *Catalog) Put(dataset, version string, idx *vector.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[key{dataset, version}] = idx
}

// Get returns the index for a dataset version, or false when none is built.
func (c *Catalog) Get(dataset, version string) (*vector.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[key{dataset, version}]
	return idx, ok
}

// Remove drops the handle for a dataset version. The index itself stays
// valid for anyone still holding it.
func (c *Catalog) Remove(dataset, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.indexes, key{dataset, version})
}

// Len returns the number of registered handles.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indexes)
}

// LoadSnapshots registers every index snapshot found under root, laid out as
// <root>/<dataset>/<version>/index.bin. Unreadable snapshots are skipped and
// reported through onError (which may be nil). Returns the number loaded.
func (c *Catalog) LoadSnapshots(root string, onError func(path string, err error)) int {
	loaded := 0
	datasets, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	for _, ds := range datasets {
		if !ds.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(root, ds.Name()))
		if err != nil {
			continue
		}
		for _, ver := range versions {
			if !ver.IsDir() {
				continue
			}
			path := filepath.Join(root, ds.Name(), ver.Name(), "index.bin")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			idx, err := vector.LoadIndex(path)
			if err != nil {
				if onError != nil {
					onError(path, err)
				}
				continue
			}
			c.Put(ds.Name(), ver.Name(), idx)
			loaded++
		}
	}
	return loaded
}
