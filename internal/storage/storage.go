// Package storage keeps job attachments in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"Fixer-backend/internal/config"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store is an object storage bucket.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// URL returns a time limited download link for key.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	// Ping checks that the bucket is reachable.
	Ping(ctx context.Context) error
}

// New builds the backend named by cfg.Backend. An empty backend disables
// attachments and returns a nil Store.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "s3":
		return NewMinioStore(cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
