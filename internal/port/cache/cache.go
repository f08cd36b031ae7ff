// Package cache defines the port for short-lived byte caching, used to
// keep rendered section content hot between documentation requests.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value cache with per-entry TTL. Get reports whether the
// key was present; a miss is not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
