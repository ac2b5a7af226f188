package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shirabe/internal/catalog"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/loader"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrDuplicateVersion is returned by Submit when the version label already
// exists for the dataset and upsert was not requested.
var ErrDuplicateVersion = errors.New("version exists; set upsert=true to overwrite")

// versionLabelFormat sorts lexicographically in creation order.
const versionLabelFormat = "v20060102T150405"

// ServiceConfig holds the tunables for the ingestion service.
type ServiceConfig struct {
	// IndexRoot is where built index snapshots are written:
	// <IndexRoot>/<dataset>/<version>/index.bin.
	IndexRoot string
	// MaxConcurrent bounds the number of ingestion workers running at once.
	MaxConcurrent int64
}

// Service accepts ingestion submissions and drives each manifest entry
// through PENDING -> INDEXED | FAILED. Submissions return immediately; the
// load/split/embed/build pipeline runs on a background worker bounded by a
// semaphore.
//
// Each read-modify-write of a manifest holds a per-dataset mutex, so two
// concurrent ingestions into the same dataset cannot lose each other's
// update. When the store also implements Locker, its lock is held too,
// extending the guarantee to other processes sharing the backend.
type Service struct {
	store    Store
	loaders  *loader.Registry
	embedder embedding.Embedder
	catalog  *catalog.Catalog
	config   ServiceConfig
	logger   *zap.Logger
	workers  *semaphore.Weighted
	wg       sync.WaitGroup

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates an ingestion service.
func NewService(
	store Store,
	loaders *loader.Registry,
	embedder embedding.Embedder,
	cat *catalog.Catalog,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Service{
		store:    store,
		loaders:  loaders,
		embedder: embedder,
		catalog:  cat,
		config:   cfg,
		logger:   logger,
		workers:  semaphore.NewWeighted(cfg.MaxConcurrent),
		locks:    make(map[string]*sync.Mutex),
	}
}

// datasetLock returns the mutex serializing manifest read-modify-writes for
// a dataset, creating it on first use.
func (s *Service) datasetLock(datasetID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[datasetID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[datasetID] = l
	}
	return l
}

// lockDataset acquires the in-process dataset mutex and, when the store
// supports it, the store's cross-process lock. The returned function
// releases both.
func (s *Service) lockDataset(ctx context.Context, datasetID string) (func(), error) {
	l := s.datasetLock(datasetID)
	l.Lock()
	if locker, ok := s.store.(Locker); ok {
		unlock, err := locker.LockDataset(ctx, datasetID)
		if err != nil {
			l.Unlock()
			return nil, err
		}
		return func() {
			unlock()
			l.Unlock()
		}, nil
	}
	return l.Unlock, nil
}

// getOrEmpty reads the dataset manifest, treating a missing manifest or any
// read failure as an empty one. A transient storage outage is
// indistinguishable from a dataset that has never been ingested.
func (s *Service) getOrEmpty(ctx context.Context, datasetID string) *models.DatasetManifest {
	m, err := s.store.Get(ctx, datasetID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("manifest read failed, treating as empty",
				zap.String("dataset", datasetID), zap.Error(err))
		}
		return &models.DatasetManifest{DatasetID: datasetID, Versions: []models.ManifestEntry{}}
	}
	return m
}

// Submit records a PENDING entry for the request and schedules background
// processing. The manifest write is synchronous: once Submit returns, the
// PENDING record is durable. The returned entry is a copy; the caller does
// not wait for indexing.
func (s *Service) Submit(ctx context.Context, req *models.IngestRequest) (*models.ManifestEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	version := req.Version
	if version == "" {
		version = time.Now().UTC().Format(versionLabelFormat)
	}

	unlock, err := s.lockDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m := s.getOrEmpty(ctx, req.DatasetID)
	if m.HasVersion(version) {
		if !req.Upsert {
			return nil, fmt.Errorf("%w: dataset %q version %q", ErrDuplicateVersion, req.DatasetID, version)
		}
		// Upsert replaces: the prior entry is dropped, not retained as history.
		m.RemoveVersion(version)
	}

	entry := models.ManifestEntry{
		Version:   version,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    req.Source,
		Status:    models.StatusPending,
	}
	m.Versions = append(m.Versions, entry)
	if err := s.store.Put(ctx, req.DatasetID, m); err != nil {
		return nil, fmt.Errorf("persist manifest: %w", err)
	}

	s.logger.Info("ingestion submitted",
		zap.String("dataset", req.DatasetID),
		zap.String("version", version),
		zap.String("task_id", entry.ID),
		zap.String("source", req.Source))

	s.wg.Add(1)
	go s.process(req.DatasetID, version, entry.ID, req.Source)

	return &entry, nil
}

// process runs one ingestion to completion and records the outcome in the
// manifest. It never returns an error: failure becomes a FAILED entry, and a
// worker whose entry was superseded by an upsert drops its result silently.
// The snapshot write and catalog registration happen only after the entry is
// confirmed current, so a stale worker cannot overwrite the live index for
// its (dataset, version) pair.
func (s *Service) process(datasetID, version, entryID, source string) {
	defer s.wg.Done()

	// Submissions outlive the request that created them.
	ctx := context.Background()
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.workers.Release(1)

	idx, err := s.buildIndex(ctx, source)

	unlock, lockErr := s.lockDataset(ctx, datasetID)
	if lockErr != nil {
		s.logger.Error("cannot lock dataset to record outcome",
			zap.String("dataset", datasetID), zap.Error(lockErr))
		return
	}
	defer unlock()

	// Re-read: the manifest may have changed while the worker ran.
	m := s.getOrEmpty(ctx, datasetID)
	entry := m.FindEntry(version, entryID)
	if entry == nil {
		s.logger.Info("entry superseded during processing, dropping result",
			zap.String("dataset", datasetID),
			zap.String("version", version),
			zap.String("task_id", entryID))
		return
	}

	if err == nil {
		indexPath := filepath.Join(s.config.IndexRoot, datasetID, version, "index.bin")
		if err = idx.Save(indexPath); err == nil {
			s.catalog.Put(datasetID, version, idx)
			entry.IndexPath = indexPath
		}
	}

	now := time.Now().UTC()
	if err != nil {
		entry.Status = models.StatusFailed
		entry.Error = err.Error()
		s.logger.Warn("ingestion failed",
			zap.String("dataset", datasetID),
			zap.String("version", version),
			zap.Error(err))
	} else {
		entry.Status = models.StatusIndexed
		entry.ChunksIndexed = idx.Size()
		entry.IndexedAt = &now
		s.logger.Info("ingestion indexed",
			zap.String("dataset", datasetID),
			zap.String("version", version),
			zap.Int("chunks", idx.Size()))
	}

	if putErr := s.store.Put(ctx, datasetID, m); putErr != nil {
		// Losing a status update silently would be worse than noise.
		s.logger.Error("failed to persist ingestion outcome",
			zap.String("dataset", datasetID),
			zap.String("version", version),
			zap.Error(putErr))
	}
}

// buildIndex runs the pipeline up to the built index: load and split the
// source, embed, build. It does not publish anything; process snapshots and
// registers only after confirming the entry is still current. Panics become
// errors so the worker always terminates normally.
func (s *Service) buildIndex(ctx context.Context, source string) (idx *vector.Index, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panic: %v", r)
		}
	}()

	chunkSeq, err := s.loaders.LoadAndSplit(ctx, source)
	if err != nil {
		return nil, err
	}
	return vector.Build(ctx, chunkSeq, s.embedder)
}

// GetManifest returns the manifest for a dataset. It never fails: unknown
// datasets and storage read errors yield an empty manifest.
func (s *Service) GetManifest(ctx context.Context, datasetID string) *models.DatasetManifest {
	return s.getOrEmpty(ctx, datasetID)
}

// Wait blocks until every scheduled worker has finished. Used on shutdown
// and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
