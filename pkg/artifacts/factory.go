package artifacts

import (
	"context"
	"fmt"
	"path/filepath"
)

// StoreType selects a storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string
}

// Config selects and configures a backend.
type Config struct {
	Type    StoreType
	DataDir string
	S3      S3StoreConfig
	GCS     GCSStoreConfig
}

// NewStore builds the backend named by cfg.Type. An empty type means fs.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", StoreTypeFS:
		dir := cfg.DataDir
		if dir == "" {
			dir = "data"
		}
		return NewFileStore(filepath.Join(dir, "artifacts"))
	case StoreTypeS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3 bucket is required for s3 storage")
		}
		if cfg.S3.Region == "" {
			cfg.S3.Region = "us-east-1"
		}
		return NewS3Store(ctx, cfg.S3)
	case StoreTypeGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("GCS bucket is required for gcs storage")
		}
		return newGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", cfg.Type)
	}
}
