// Package service contains the orchestration layer: prompt synthesis,
// structure generation with model fallback, repository configuration,
// section injection, and batch content generation.
package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/knowledge"
)

//go:embed templates/structure_prompt.tmpl
var structurePromptTmpl string

// structureTmpl is the parsed generation prompt template.
var structureTmpl = template.Must(
	template.New("structure_prompt").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(structurePromptTmpl))

// promptExample carries one retrieved knowledge base match into the template.
type promptExample struct {
	RepoID        string
	Score         float64
	StructureJSON string
}

// promptData carries the new repository metadata and retrieved examples.
type promptData struct {
	MetadataJSON string
	Examples     []promptExample
}

// BuildStructurePrompt renders the generation prompt from the repository
// metadata and its nearest knowledge base matches. Matches must already be
// in descending similarity order.
func BuildStructurePrompt(meta metadata.Metadata, matches []knowledge.Match) (string, error) {
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	examples := make([]promptExample, 0, len(matches))
	for _, m := range matches {
		structureJSON, err := json.MarshalIndent(m.DocStructure, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal example structure %s: %w", m.RepoID, err)
		}
		examples = append(examples, promptExample{
			RepoID:        m.RepoID,
			Score:         m.Score,
			StructureJSON: string(structureJSON),
		})
	}

	var buf strings.Builder
	if err := structureTmpl.Execute(&buf, promptData{
		MetadataJSON: string(metaJSON),
		Examples:     examples,
	}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
