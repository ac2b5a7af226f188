// Package manifest tracks dataset ingestions: a durable per-dataset manifest
// of versioned entries and the service that drives each entry through the
// PENDING -> INDEXED | FAILED lifecycle.
package manifest

import (
	"context"
	"errors"

	"github.com/hyperjump/shirabe/internal/models"
)

// ErrNotFound is returned by Store.Get when a dataset has no manifest yet.
var ErrNotFound = errors.New("manifest not found")

// Store persists dataset manifests wholesale. There is no field-level update:
// callers read the manifest, modify it, and write it back. Backend selection
// (filesystem vs. object storage) is a deployment choice invisible to the
// manifest logic.
type Store interface {
	// Get returns the manifest for a dataset, or ErrNotFound.
	Get(ctx context.Context, datasetID string) (*models.DatasetManifest, error)
	// Put overwrites the manifest for a dataset.
	Put(ctx context.Context, datasetID string, m *models.DatasetManifest) error
}

// Locker is an optional Store capability: backends that can serialize a
// read-modify-write across processes (e.g. a file lock) implement it. The
// returned function releases the lock.
type Locker interface {
	LockDataset(ctx context.Context, datasetID string) (func(), error)
}
