package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adocshq/adocs/internal/adapter/otel"
	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/knowledge"
	"github.com/adocshq/adocs/internal/port/database"
	"github.com/adocshq/adocs/internal/port/llm"
)

// ErrAllModelsFailed indicates every configured model was tried and none
// produced a usable response.
var ErrAllModelsFailed = errors.New("all models failed")

// InvalidOutputError reports a model response that could not be parsed into
// a valid documentation structure. It carries the raw and cleaned payloads
// for diagnosis.
type InvalidOutputError struct {
	Model   string
	Raw     string
	Cleaned string
	Err     error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("model %s produced invalid structure: %v", e.Model, e.Err)
}

func (e *InvalidOutputError) Unwrap() error {
	return e.Err
}

// GenerationResult is the outcome of one structure generation.
type GenerationResult struct {
	RepoID    string         `json:"repo_id"`
	Structure docs.Structure `json:"structure"`
	Model     string         `json:"model"`
	Examples  []ExampleRef   `json:"examples"`
}

// ExampleRef identifies one retrieved example that grounded the generation.
type ExampleRef struct {
	RepoID string  `json:"repo_id"`
	Score  float64 `json:"similarity_score"`
}

// Generator produces documentation structures grounded on knowledge base
// retrieval, falling back through the configured model list in order.
type Generator struct {
	base      *knowledge.Base
	embedder  llm.Embedder
	completer llm.Completer
	db        database.Store
	cfg       config.Generator
	embModel  string
	topK      int
	log       *slog.Logger
	metrics   *otel.Metrics
}

// NewGenerator wires a Generator. db and metrics may be nil; persistence and
// instrumentation are then skipped.
func NewGenerator(base *knowledge.Base, embedder llm.Embedder, completer llm.Completer, db database.Store, cfg config.Config, log *slog.Logger, metrics *otel.Metrics) *Generator {
	return &Generator{
		base:      base,
		embedder:  embedder,
		completer: completer,
		db:        db,
		cfg:       cfg.Generator,
		embModel:  cfg.Knowledge.EmbeddingModel,
		topK:      cfg.Knowledge.TopK,
		log:       log,
		metrics:   metrics,
	}
}

// Generate produces a documentation structure for the repository described
// by meta. The corpus text is embedded, the top-k most similar knowledge
// base entries retrieved, and each configured model tried in order until
// one returns a schema-valid structure.
func (g *Generator) Generate(ctx context.Context, meta metadata.Metadata) (*GenerationResult, error) {
	repoID := meta.ResolveID()
	if repoID == "" {
		return nil, errors.New("metadata has no repository identifier")
	}

	ctx, span := otel.StartGenerationSpan(ctx, repoID)
	defer span.End()

	if g.metrics != nil {
		g.metrics.GenerationsStarted.Add(ctx, 1)
	}
	start := time.Now()

	corpus := meta.CorpusText()
	if corpus == "" {
		return nil, errors.New("metadata yields empty corpus text")
	}

	matches, err := g.retrieve(ctx, corpus)
	if err != nil {
		return nil, err
	}

	prompt, err := BuildStructurePrompt(meta, matches)
	if err != nil {
		return nil, err
	}

	structure, model, err := g.complete(ctx, repoID, prompt)
	if err != nil {
		if g.metrics != nil {
			g.metrics.GenerationsFailed.Add(ctx, 1)
		}
		return nil, err
	}

	if g.db != nil {
		if err := g.db.SaveStructure(ctx, repoID, *structure, model); err != nil {
			g.log.Warn("failed to persist generated structure", "repo_id", repoID, "error", err)
		}
	}

	if g.metrics != nil {
		g.metrics.GenerationsCompleted.Add(ctx, 1)
		g.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	}

	refs := make([]ExampleRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ExampleRef{RepoID: m.RepoID, Score: m.Score})
	}

	return &GenerationResult{
		RepoID:    repoID,
		Structure: *structure,
		Model:     model,
		Examples:  refs,
	}, nil
}

// Stats exposes knowledge base statistics.
func (g *Generator) Stats() knowledge.Stats {
	return g.base.Stats()
}

func (g *Generator) retrieve(ctx context.Context, corpus string) ([]knowledge.Match, error) {
	ctx, span := otel.StartRetrievalSpan(ctx, g.topK)
	defer span.End()

	start := time.Now()
	query, err := g.embedder.Embed(ctx, g.embModel, corpus)
	if err != nil {
		return nil, fmt.Errorf("embed corpus text: %w", err)
	}

	matches, err := g.base.TopK(query, g.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve similar repositories: %w", err)
	}

	if g.metrics != nil {
		g.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	}
	return matches, nil
}

// complete tries each configured model in order. Transport errors and
// invalid outputs both advance to the next model; the last error is carried
// when all fail.
func (g *Generator) complete(ctx context.Context, repoID, prompt string) (*docs.Structure, string, error) {
	var lastErr error
	for i, model := range g.cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if i > 0 && g.metrics != nil {
			g.metrics.ModelFallbacks.Add(ctx, 1)
		}

		g.log.Info("trying model", "repo_id", repoID, "model", model)
		raw, err := g.completer.Complete(ctx, llm.CompletionRequest{
			Model:       model,
			Prompt:      prompt,
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: g.cfg.Temperature,
		})
		if err != nil {
			g.log.Warn("model failed", "repo_id", repoID, "model", model, "error", err)
			lastErr = err
			continue
		}

		structure, err := parseStructure(model, raw)
		if err != nil {
			g.log.Warn("model produced invalid structure", "repo_id", repoID, "model", model, "error", err)
			lastErr = err
			continue
		}

		g.log.Info("structure generated", "repo_id", repoID, "model", model,
			"sections", len(structure.Sections))
		return structure, model, nil
	}
	return nil, "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

// parseStructure strips markdown fences from a model response and parses it
// into a schema-valid structure.
func parseStructure(model, raw string) (*docs.Structure, error) {
	cleaned := stripFences(raw)

	var structure docs.Structure
	if err := json.Unmarshal([]byte(cleaned), &structure); err != nil {
		return nil, &InvalidOutputError{Model: model, Raw: raw, Cleaned: cleaned, Err: err}
	}
	if err := structure.Validate(); err != nil {
		return nil, &InvalidOutputError{Model: model, Raw: raw, Cleaned: cleaned, Err: err}
	}
	return &structure, nil
}

// stripFences extracts the payload from a ```json fenced block, falling back
// to a bare ``` fence, then to the trimmed response.
func stripFences(s string) string {
	if start := strings.Index(s, "```json"); start != -1 {
		rest := s[start+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	} else if start := strings.Index(s, "```"); start != -1 {
		rest := s[start+len("```"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return strings.TrimSpace(s)
}
