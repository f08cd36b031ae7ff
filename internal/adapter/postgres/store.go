package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adocshq/adocs/internal/domain"
	"github.com/adocshq/adocs/internal/domain/docs"
)

// Store implements the database port on PostgreSQL. Structures are stored
// as JSONB in their canonical wire form.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveStructure upserts the generated structure for a repository, recording
// which model produced it.
func (s *Store) SaveStructure(ctx context.Context, repoID string, structure docs.Structure, model string) error {
	payload, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO generated_structures (repo_id, structure, model)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (repo_id)
		 DO UPDATE SET structure = EXCLUDED.structure, model = EXCLUDED.model, updated_at = now()`,
		repoID, payload, model)
	if err != nil {
		return fmt.Errorf("save structure %s: %w", repoID, err)
	}
	return nil
}

// GetStructure returns the latest generated structure for a repository.
func (s *Store) GetStructure(ctx context.Context, repoID string) (*docs.Structure, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT structure FROM generated_structures WHERE repo_id = $1`, repoID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get structure %s: %w", repoID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get structure %s: %w", repoID, err)
	}

	var structure docs.Structure
	if err := json.Unmarshal(payload, &structure); err != nil {
		return nil, fmt.Errorf("unmarshal structure %s: %w", repoID, err)
	}
	return &structure, nil
}

// UpsertAcceptedStructure stores an operator-approved structure.
func (s *Store) UpsertAcceptedStructure(ctx context.Context, repoID string, structure docs.Structure) error {
	payload, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("marshal accepted structure: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO accepted_structures (repo_id, structure)
		 VALUES ($1, $2)
		 ON CONFLICT (repo_id)
		 DO UPDATE SET structure = EXCLUDED.structure, updated_at = now()`,
		repoID, payload)
	if err != nil {
		return fmt.Errorf("upsert accepted structure %s: %w", repoID, err)
	}
	return nil
}

// ListAcceptedStructures returns all accepted structures keyed by repository
// identifier.
func (s *Store) ListAcceptedStructures(ctx context.Context) (map[string]docs.Structure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT repo_id, structure FROM accepted_structures ORDER BY repo_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accepted structures: %w", err)
	}
	defer rows.Close()

	out := make(map[string]docs.Structure)
	for rows.Next() {
		var (
			repoID  string
			payload []byte
		)
		if err := rows.Scan(&repoID, &payload); err != nil {
			return nil, fmt.Errorf("scan accepted structure: %w", err)
		}

		var structure docs.Structure
		if err := json.Unmarshal(payload, &structure); err != nil {
			return nil, fmt.Errorf("unmarshal accepted structure %s: %w", repoID, err)
		}
		out[repoID] = structure
	}
	return out, rows.Err()
}
