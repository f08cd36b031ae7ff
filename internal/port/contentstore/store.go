// Package contentstore defines the port interface for markdown content blobs.
package contentstore

import "context"

// Store is the port interface for reading and writing section content.
// Paths are forward-slash relative keys; implementations map them onto
// their backing medium.
type Store interface {
	// Get returns the content at path. Returns domain.ErrNotFound (wrapped)
	// when no content exists there.
	Get(ctx context.Context, path string) ([]byte, error)
	// Put writes content at path, creating parents as needed.
	Put(ctx context.Context, path string, content []byte) error
}
