// Package minio provides the MinIO/S3 implementation of storage.ObjectStore.
package minio

import (
	"context"
	"strings"
	"time"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/server/storage"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is a MinIO implementation of storage.ObjectStore.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	client *miniogo.Client
}

// New creates a Store from the given connection config. The client is
// lazy; use Ping to verify reachability.
func New(cfg storage.Config) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(storage.ErrClientSetupFailed, err, "failed to create minio client")
	}
	return &Store{client: client}, nil
}

// Ping verifies the backend is reachable by listing buckets
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// List returns all objects under prefix, skipping directory markers
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	listOpts := miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	var results []storage.ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		results = append(results, storage.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}

	return results, nil
}

// Stat returns metadata for the object at key without downloading it
func (s *Store) Stat(ctx context.Context, bucket, key string) (*storage.ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &storage.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// Presign returns a time-limited download URL for the object
func (s *Store) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// mapError translates minio SDK errors into coded storage errors so the
// retry layer can tell transient failures from permanent ones
func mapError(err error, message string) error {
	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(storage.ErrNotFound, err, message)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.Wrap(storage.ErrDenied, err, message)
	}
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return errors.Wrap(storage.ErrDenied, err, message)
	}
	if resp.StatusCode == 404 {
		return errors.Wrap(storage.ErrNotFound, err, message)
	}
	return errors.Wrap(storage.ErrUnavailable, err, message)
}
