package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/port/llm"
)

// ErrNoEntries indicates a build produced zero usable entries.
var ErrNoEntries = errors.New("knowledge base build produced no entries")

// Builder constructs a knowledge base from metadata records and accepted
// documentation structures. Individual malformed or unembeddable records are
// skipped with a log line; only an empty result is fatal.
type Builder struct {
	embedder llm.Embedder
	model    string
	log      *slog.Logger
}

// NewBuilder returns a Builder that embeds corpus text with the given model.
func NewBuilder(embedder llm.Embedder, model string, log *slog.Logger) *Builder {
	return &Builder{embedder: embedder, model: model, log: log}
}

// Build reads every *.json metadata record under metadataDir, pairs each with
// its accepted structure, embeds the corpus text, and assembles the Base.
// Records are processed in sorted filename order so rebuilds from the same
// inputs produce the same entry order.
func (b *Builder) Build(ctx context.Context, metadataDir fs.FS, accepted map[string]docs.Structure) (*Base, error) {
	names, err := fs.Glob(metadataDir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("list metadata records: %w", err)
	}
	sort.Strings(names)

	var (
		entries []Entry
		skipped int
		dim     int
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := b.buildEntry(ctx, metadataDir, name, accepted)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.log.Warn("skipping metadata record", "record", name, "error", err)
			skipped++
			continue
		}

		if dim == 0 {
			dim = len(entry.Embedding)
		} else if len(entry.Embedding) != dim {
			b.log.Warn("skipping metadata record",
				"record", name, "error",
				fmt.Sprintf("embedding dimension %d does not match base dimension %d", len(entry.Embedding), dim))
			skipped++
			continue
		}

		entries = append(entries, *entry)
	}

	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	b.log.Info("knowledge base built", "entries", len(entries), "skipped", skipped)
	return NewBase(entries), nil
}

func (b *Builder) buildEntry(ctx context.Context, dir fs.FS, name string, accepted map[string]docs.Structure) (*Entry, error) {
	data, err := fs.ReadFile(dir, name)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	var meta metadata.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}

	repoID := meta.ResolveID()
	if repoID == "" {
		return nil, errors.New("record has no repository identifier")
	}

	structure, ok := accepted[repoID]
	if !ok {
		return nil, fmt.Errorf("no accepted structure for %s", repoID)
	}

	corpus := meta.CorpusText()
	if corpus == "" {
		return nil, errors.New("record yields empty corpus text")
	}

	embedding, err := b.embedder.Embed(ctx, b.model, corpus)
	if err != nil {
		return nil, fmt.Errorf("embed corpus text: %w", err)
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedder returned empty vector")
	}

	return &Entry{
		RepoID:       repoID,
		Metadata:     meta,
		DocStructure: structure,
		Embedding:    embedding,
		CorpusText:   corpus,
	}, nil
}

// acceptedRecord is one element of the list-form accepted structures file.
type acceptedRecord struct {
	RepoID    string          `json:"repo_id"`
	GitHubURL string          `json:"github_url"`
	Structure *docs.Structure `json:"documentation_structure"`
}

// ParseAcceptedStructures decodes an accepted-structures document. Two shapes
// are supported: a JSON array of records carrying repo_id or github_url plus
// documentation_structure, and a JSON object mapping identifiers directly to
// structures. Records without an identifier or structure are dropped.
func ParseAcceptedStructures(data []byte) (map[string]docs.Structure, error) {
	out := make(map[string]docs.Structure)

	var records []acceptedRecord
	if err := json.Unmarshal(data, &records); err == nil {
		for _, r := range records {
			id := r.RepoID
			if id == "" {
				id = r.GitHubURL
			}
			if id == "" || r.Structure == nil {
				continue
			}
			out[id] = *r.Structure
		}
		return out, nil
	}

	var byID map[string]docs.Structure
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parse accepted structures: %w", err)
	}
	for id, s := range byID {
		if id == "" {
			continue
		}
		out[id] = s
	}
	return out, nil
}
