package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hyperjump/shirabe/internal/models"
)

// FSStore keeps manifests on the local filesystem as
// <root>/<dataset>/manifest.json. It implements Locker with a per-dataset
// lock file so two processes sharing a data directory serialize their
// read-modify-write cycles.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at the given directory.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) manifestPath(datasetID string) string {
	return filepath.Join(s.root, datasetID, "manifest.json")
}

// Get reads the manifest for a dataset. Returns ErrNotFound when the file
// does not exist.
func (s *FSStore) Get(_ context.Context, datasetID string) (*models.DatasetManifest, error) {
	data, err := os.ReadFile(s.manifestPath(datasetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, datasetID)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.DatasetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest for %q: %w", datasetID, err)
	}
	return &m, nil
}

// Put writes the manifest atomically: to a temp file in the dataset
// directory, then renamed over manifest.json.
func (s *FSStore) Put(_ context.Context, datasetID string, m *models.DatasetManifest) error {
	dir := filepath.Join(s.root, datasetID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.manifestPath(datasetID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// LockDataset takes an exclusive flock on <root>/<dataset>/.manifest.lock,
// blocking until acquired or ctx is done.
func (s *FSStore) LockDataset(ctx context.Context, datasetID string) (func(), error) {
	dir := filepath.Join(s.root, datasetID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, ".manifest.lock"))
	ok, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock dataset %q: %w", datasetID, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock dataset %q: not acquired", datasetID)
	}
	return func() { _ = fl.Unlock() }, nil
}
