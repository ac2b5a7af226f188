package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hyperjump/shirabe/internal/models"
)

// MemoryStore is an in-memory Store for tests. Manifests round-trip through
// JSON so stored state is decoupled from caller-held pointers, like the real
// backends.
type MemoryStore struct {
	mu        sync.Mutex
	manifests map[string][]byte

	// FailPuts makes every Put fail; used to test write-error propagation.
	FailPuts bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{manifests: make(map[string][]byte)}
}

// Get returns the manifest for a dataset, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, datasetID string) (*models.DatasetManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.manifests[datasetID]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, datasetID)
	}
	var m models.DatasetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Put stores the manifest for a dataset.
func (s *MemoryStore) Put(_ context.Context, datasetID string, m *models.DatasetManifest) error {
	if s.FailPuts {
		return fmt.Errorf("put manifest %q: store unavailable", datasetID)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[datasetID] = data
	return nil
}
