// Package fsstore implements the content store port on the local filesystem.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adocshq/adocs/internal/domain"
)

// Store reads and writes section content files under a root directory.
// Keys are forward-slash relative paths; escaping the root is rejected.
type Store struct {
	root string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Get returns the content at path. A missing file maps to domain.ErrNotFound.
func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full) //nolint:gosec // G304: path validated by resolve
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	return data, nil
}

// Put writes content at path, creating parent directories as needed.
func (s *Store) Put(_ context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o600); err != nil {
		return fmt.Errorf("write content %s: %w", path, err)
	}
	return nil
}

// resolve maps a relative key onto the root, rejecting traversal outside it.
func (s *Store) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("content path is empty: %w", domain.ErrValidation)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("content path %q escapes store root: %w", path, domain.ErrValidation)
	}
	return filepath.Join(s.root, clean), nil
}
