package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"BookMentions/internal/domain"
	"BookMentions/internal/metrics"
	"BookMentions/internal/ports"
)

// MinioConfig addresses an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps datasets in an S3-compatible bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	metrics *metrics.Metrics
}

var _ ports.ObjectStore = (*MinioStore)(nil)

// NewMinioStore connects to the bucket, creating it when missing.
func NewMinioStore(ctx context.Context, cfg MinioConfig, m *metrics.Metrics) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, metrics: m}, nil
}

// Put uploads body under key.
func (s *MinioStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	s.metrics.StorageOp("put", err)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Get streams the object at key.
func (s *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	s.metrics.StorageOp("get", err)
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// Stat returns the object's metadata, domain.ErrNoSnapshot when missing.
func (s *MinioStore) Stat(ctx context.Context, key string) (ports.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	s.metrics.StorageOp("stat", err)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ports.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, domain.ErrNoSnapshot)
		}
		return ports.ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	return ports.ObjectInfo{Key: info.Key, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// List returns every object under prefix, recursively.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			s.metrics.StorageOp("list", obj.Err)
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		out = append(out, ports.ObjectInfo{Key: obj.Key, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	s.metrics.StorageOp("list", nil)
	return out, nil
}

// DeletePrefix removes every object under prefix.
func (s *MinioStore) DeletePrefix(ctx context.Context, prefix string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
	}
	err := errors.Join(errs...)
	s.metrics.StorageOp("delete", err)
	return err
}
