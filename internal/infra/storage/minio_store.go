package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"qa-explainer-video/internal/config"
	"qa-explainer-video/internal/domain"
	"qa-explainer-video/internal/domain/ports/adapter"
)

var _ adapter.MediaStore = (*MinioStore)(nil)

// MinioStore keeps artifacts in S3-compatible object storage. URLs are
// presigned GETs so the bucket can stay private.
type MinioStore struct {
	cli    *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStore(ctx context.Context, cfg *config.S3Config) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}

	return &MinioStore{cli: cli, bucket: cfg.Bucket, expiry: cfg.URLExpiry}, nil
}

func (s *MinioStore) PutFile(ctx context.Context, key, localPath, contentType string) (string, error) {
	_, err := s.cli.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return s.URL(ctx, key)
}

func (s *MinioStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.cli.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return s.URL(ctx, key)
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinioStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *MinioStore) URL(ctx context.Context, key string) (string, error) {
	u, err := s.cli.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
