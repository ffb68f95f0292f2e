package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps blobs in an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3StoreConfig holds configuration for S3Store.
type S3StoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // MinIO, LocalStack
	Prefix   string
}

// NewS3Store loads the default AWS credential chain for cfg.Region.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) key(raw string) *string {
	return aws.String(blobName(s.prefix, raw))
}

func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	hash := Hash(data)
	raw := hash[len(hashPrefix):]

	if ok, err := s.Exists(ctx, hash); err == nil && ok {
		return hash, nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.key(raw),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed: %w", err)
	}
	return hash, nil
}

func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(raw),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("s3 get failed for %s: %w", hash, err)
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}

func (s *S3Store) Exists(ctx context.Context, hash string) (bool, error) {
	raw, err := rawHash(hash)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(raw),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head failed for %s: %w", hash, err)
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, hash string) error {
	raw, err := rawHash(hash)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(raw),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed for %s: %w", hash, err)
	}
	return nil
}
