package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/port/contentstore"
	"github.com/adocshq/adocs/internal/port/llm"
)

//go:embed templates/content_prompt.tmpl
var contentPromptTmpl string

var contentTmpl = template.Must(template.New("content_prompt").Parse(contentPromptTmpl))

type contentPromptData struct {
	MetadataJSON string
	SectionTitle string
}

// SectionResult records the outcome for one section of a batch job.
type SectionResult struct {
	Section string `json:"section"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ContentJob summarizes one batch content generation run.
type ContentJob struct {
	JobID     string          `json:"job_id"`
	RepoID    string          `json:"repo_id"`
	Generated int             `json:"generated"`
	Failed    int             `json:"failed"`
	Results   []SectionResult `json:"results"`
}

// ContentGenerator produces markdown content for every section of a
// structure and writes it to the content store. Calls to the model are
// spaced by the configured delay.
type ContentGenerator struct {
	completer llm.Completer
	store     contentstore.Store
	cfg       config.Generator
	log       *slog.Logger
}

// NewContentGenerator wires a ContentGenerator.
func NewContentGenerator(completer llm.Completer, store contentstore.Store, cfg config.Generator, log *slog.Logger) *ContentGenerator {
	return &ContentGenerator{completer: completer, store: store, cfg: cfg, log: log}
}

// GenerateAll walks the structure depth-first and generates one markdown
// file per section, named after the sanitized display title. Per-section
// failures are recorded without aborting the batch; context cancellation
// stops scheduling new sections but keeps the results gathered so far.
func (c *ContentGenerator) GenerateAll(ctx context.Context, repoID string, meta metadata.Metadata, structure docs.Structure) (*ContentJob, error) {
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	job := &ContentJob{
		JobID:  uuid.NewString(),
		RepoID: repoID,
	}

	var titles []string
	structure.Walk(func(displayTitle string, _ *docs.Section) {
		titles = append(titles, displayTitle)
	})

	c.log.Info("content generation started", "job_id", job.JobID, "repo_id", repoID,
		"sections", len(titles))

	for i, title := range titles {
		if ctx.Err() != nil {
			c.log.Warn("content generation cancelled", "job_id", job.JobID,
				"completed", i, "total", len(titles))
			break
		}
		if i > 0 && c.cfg.ContentDelay > 0 {
			select {
			case <-time.After(c.cfg.ContentDelay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				continue
			}
		}

		result := c.generateSection(ctx, repoID, string(metaJSON), title)
		if result.Error == "" {
			job.Generated++
		} else {
			job.Failed++
		}
		job.Results = append(job.Results, result)
	}

	c.log.Info("content generation finished", "job_id", job.JobID,
		"generated", job.Generated, "failed", job.Failed)
	return job, nil
}

func (c *ContentGenerator) generateSection(ctx context.Context, repoID, metaJSON, displayTitle string) SectionResult {
	result := SectionResult{Section: displayTitle}

	var prompt strings.Builder
	if err := contentTmpl.Execute(&prompt, contentPromptData{
		MetadataJSON: metaJSON,
		SectionTitle: displayTitle,
	}); err != nil {
		result.Error = fmt.Sprintf("render prompt: %v", err)
		return result
	}

	content, err := c.completer.Complete(ctx, llm.CompletionRequest{
		Model:       c.cfg.Models[0],
		Prompt:      prompt.String(),
		MaxTokens:   c.cfg.ContentMaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.log.Warn("section content failed", "repo_id", repoID, "section", displayTitle, "error", err)
		result.Error = err.Error()
		return result
	}

	p := contentFilePath(repoID, displayTitle)
	if err := c.store.Put(ctx, p, []byte(content)); err != nil {
		c.log.Warn("section content write failed", "repo_id", repoID, "section", displayTitle, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Path = p
	return result
}

// contentFilePath maps a repository and section display title onto a
// markdown file path under the repository's directory.
func contentFilePath(repoID, displayTitle string) string {
	return path.Join(docs.SanitizeTitle(repoID), docs.SanitizeTitle(displayTitle)+".md")
}
