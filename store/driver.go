package store

import (
	"context"
)

// Driver is an interface for store driver.
// It persists opaque values under string keys.
type Driver interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Usage returns the total number of bytes currently stored.
	Usage(ctx context.Context) (int64, error)

	Close() error
}
