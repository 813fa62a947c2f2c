package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docindex/docindex/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage keeps the uploaded original in a bucket for the duration of
// its ingest, next to a local spool copy the decoders read from.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	spool  *LocalStore
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig, spool *LocalStore) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	if spool == nil {
		return nil, fmt.Errorf("minio storage needs a local spool")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket, spool: spool}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Put spools r to local disk, then uploads the spooled file to the bucket.
func (s *MinIOStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	p, err := s.spool.Put(ctx, key, r, size, contentType)
	if err != nil {
		return "", err
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, p, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		_ = s.spool.Delete(ctx, key)
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return p, nil
}

// Delete removes the object and the spool copy. Both are attempted even if
// the first fails.
func (s *MinIOStorage) Delete(ctx context.Context, key string) error {
	objErr := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	spoolErr := s.spool.Delete(ctx, key)
	if objErr != nil {
		return fmt.Errorf("minio remove %s: %w", key, objErr)
	}
	return spoolErr
}
