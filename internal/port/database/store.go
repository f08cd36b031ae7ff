// Package database defines the port interface for structure persistence.
package database

import (
	"context"

	"github.com/adocshq/adocs/internal/domain/docs"
)

// Store persists generated documentation structures and the accepted
// (known-good) structures that seed the knowledge base.
type Store interface {
	// SaveStructure upserts the generated structure for a repository,
	// recording which model produced it.
	SaveStructure(ctx context.Context, repoID string, s docs.Structure, model string) error
	// GetStructure returns the latest generated structure for a repository.
	// Returns domain.ErrNotFound (wrapped) when none exists.
	GetStructure(ctx context.Context, repoID string) (*docs.Structure, error)

	// UpsertAcceptedStructure stores an operator-approved structure.
	UpsertAcceptedStructure(ctx context.Context, repoID string, s docs.Structure) error
	// ListAcceptedStructures returns all accepted structures keyed by
	// repository identifier.
	ListAcceptedStructures(ctx context.Context) (map[string]docs.Structure, error)
}
