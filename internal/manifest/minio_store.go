package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/minio/minio-go/v7"
)

// MinioStore keeps manifests in S3-compatible object storage under
// datasets/<dataset>/manifest.json. It does not implement Locker: object
// stores have no cheap advisory lock, so cross-process serialization relies
// on running a single ingestion service per bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a store writing to the given bucket.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

func manifestKey(datasetID string) string {
	return path.Join("datasets", datasetID, "manifest.json")
}

// Get reads the manifest object. A missing key maps to ErrNotFound.
func (s *MinioStore) Get(ctx context.Context, datasetID string) (*models.DatasetManifest, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, manifestKey(datasetID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get manifest object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, datasetID)
		}
		return nil, fmt.Errorf("read manifest object: %w", err)
	}
	var m models.DatasetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest for %q: %w", datasetID, err)
	}
	return &m, nil
}

// Put writes the manifest object.
func (s *MinioStore) Put(ctx context.Context, datasetID string, m *models.DatasetManifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, manifestKey(datasetID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put manifest object: %w", err)
	}
	return nil
}
