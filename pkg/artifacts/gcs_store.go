//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore keeps blobs in a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore uses application default credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) object(raw string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(blobName(s.prefix, raw))
}

func (s *GCSStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := Hash(data)
	obj := s.object(hash[len(hashPrefix):])

	if _, err := obj.Attrs(ctx); err == nil {
		return hash, nil
	}

	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return hash, nil
}

func (s *GCSStore) Get(ctx context.Context, hash string) ([]byte, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return nil, err
	}

	r, err := s.object(raw).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", hash, err)
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}

func (s *GCSStore) Exists(ctx context.Context, hash string) (bool, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return false, err
	}

	if _, err := s.object(raw).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs error: %w", err)
	}
	return true, nil
}

func (s *GCSStore) Delete(ctx context.Context, hash string) error {
	raw, err := rawHash(hash)
	if err != nil {
		return err
	}

	if err := s.object(raw).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", hash, err)
	}
	return nil
}

// Close releases the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
