package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a single object in the backing store
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore is the narrow storage capability the sharing server depends
// on. Implementations are injected once at startup and must be safe for
// concurrent use.
type ObjectStore interface {
	// List returns all objects under prefix in stable key order
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// Stat returns metadata for a single object without reading it
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// Presign mints a time-limited, credential-free GET URL for one object
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Config is the connection configuration for an object storage backend
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}
