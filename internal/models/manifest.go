package models

import "time"

// Status is the lifecycle state of an ingestion attempt.
type Status string

// Ingestion statuses. PENDING transitions exactly once to either INDEXED or
// FAILED; both are terminal. A failed version is never retried in place, only
// superseded by resubmitting with upsert.
const (
	StatusPending Status = "PENDING"
	StatusIndexed Status = "INDEXED"
	StatusFailed  Status = "FAILED"
)

// ManifestEntry records one ingestion attempt for a dataset version.
// Entries are created PENDING by Submit and mutated exactly once by the
// background worker, matched on the (Version, ID) pair so a stale worker from
// a superseded version cannot touch the replacement entry.
type ManifestEntry struct {
	Version       string     `json:"version"`
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Source        string     `json:"source"`
	Status        Status     `json:"status"`
	ChunksIndexed int        `json:"chunks_indexed"`
	IndexPath     string     `json:"index_path,omitempty"`
	IndexedAt     *time.Time `json:"indexed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// DatasetManifest is the durable record of every ingestion attempt for a
// dataset, keyed by version label. Versions keeps submission order.
type DatasetManifest struct {
	DatasetID string          `json:"dataset_id"`
	Versions  []ManifestEntry `json:"versions"`
}

// FindEntry returns the entry matching both version and id, or nil.
func (m *DatasetManifest) FindEntry(version, id string) *ManifestEntry {
	for i := range m.Versions {
		if m.Versions[i].Version == version && m.Versions[i].ID == id {
			return &m.Versions[i]
		}
	}
	return nil
}

// HasVersion reports whether any entry carries the given version label.
func (m *DatasetManifest) HasVersion(version string) bool {
	for i := range m.Versions {
		if m.Versions[i].Version == version {
			return true
		}
	}
	return false
}

// RemoveVersion deletes every entry with the given version label, preserving
// the order of the remaining entries. Used by upsert before appending the
// replacement entry.
func (m *DatasetManifest) RemoveVersion(version string) {
	kept := m.Versions[:0]
	for i := range m.Versions {
		if m.Versions[i].Version != version {
			kept = append(kept, m.Versions[i])
		}
	}
	m.Versions = kept
}
