package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adocshq/adocs/internal/config"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/knowledge"
)

const validStructureJSON = `{"sections":[{"title":"Overview","children":[]},{"title":"API Reference","children":[{"title":"Endpoints","children":[]}]}]}`

func testKnowledgeBase() *knowledge.Base {
	return knowledge.NewBase([]knowledge.Entry{
		{
			RepoID:    "org/near",
			Embedding: []float32{1, 0, 0},
			Metadata:  metadata.Metadata{RepoID: "org/near"},
			DocStructure: docs.Structure{Sections: []docs.Section{
				{Title: "Overview", Children: []docs.Section{}},
			}},
		},
		{
			RepoID:    "org/far",
			Embedding: []float32{0, 1, 0},
			Metadata:  metadata.Metadata{RepoID: "org/far"},
		},
	})
}

func testGeneratorConfig() config.Config {
	cfg := config.Defaults()
	cfg.Generator.Models = []string{"model-a", "model-b"}
	cfg.Knowledge.TopK = 2
	return cfg
}

func testMetadata() metadata.Metadata {
	return metadata.Metadata{
		RepoID:         "org/new",
		Overview:       "A payment gateway",
		BusinessDomain: "Fintech",
	}
}

func TestGenerateFirstModelSucceeds(t *testing.T) {
	completer := &mockCompleter{responses: map[string]string{"model-a": validStructureJSON}}
	db := newMockDatabase()
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		completer, db, testGeneratorConfig(), testLogger(), nil)

	result, err := gen.Generate(context.Background(), testMetadata())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-a" {
		t.Errorf("model = %s, want model-a", result.Model)
	}
	if len(result.Structure.Sections) != 2 {
		t.Errorf("sections = %d, want 2", len(result.Structure.Sections))
	}
	if len(result.Examples) != 2 {
		t.Fatalf("examples = %d, want 2", len(result.Examples))
	}
	if result.Examples[0].RepoID != "org/near" {
		t.Errorf("best example = %s, want org/near", result.Examples[0].RepoID)
	}
	if len(completer.calls) != 1 {
		t.Errorf("completer called %d times, want 1", len(completer.calls))
	}
	if _, err := db.GetStructure(context.Background(), "org/new"); err != nil {
		t.Errorf("generated structure not persisted: %v", err)
	}
}

func TestGenerateFallsBackOnTransportError(t *testing.T) {
	completer := &mockCompleter{
		errs:      map[string]error{"model-a": errors.New("503")},
		responses: map[string]string{"model-b": validStructureJSON},
	}
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		completer, nil, testGeneratorConfig(), testLogger(), nil)

	result, err := gen.Generate(context.Background(), testMetadata())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-b" {
		t.Errorf("model = %s, want model-b", result.Model)
	}
	if len(completer.calls) != 2 {
		t.Errorf("completer called %d times, want 2", len(completer.calls))
	}
}

func TestGenerateFallsBackOnInvalidOutput(t *testing.T) {
	completer := &mockCompleter{responses: map[string]string{
		"model-a": `{"sections":["not an object"]}`,
		"model-b": validStructureJSON,
	}}
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		completer, nil, testGeneratorConfig(), testLogger(), nil)

	result, err := gen.Generate(context.Background(), testMetadata())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Model != "model-b" {
		t.Errorf("model = %s, want model-b", result.Model)
	}
}

func TestGenerateAllModelsFail(t *testing.T) {
	completer := &mockCompleter{errs: map[string]error{
		"model-a": errors.New("503"),
		"model-b": errors.New("429"),
	}}
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		completer, nil, testGeneratorConfig(), testLogger(), nil)

	_, err := gen.Generate(context.Background(), testMetadata())
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Fatalf("expected ErrAllModelsFailed, got %v", err)
	}
}

func TestGenerateInvalidOutputCarriesPayloads(t *testing.T) {
	completer := &mockCompleter{responses: map[string]string{
		"model-a": "```json\n{\"sections\": \"oops\"}\n```",
	}}
	cfg := testGeneratorConfig()
	cfg.Generator.Models = []string{"model-a"}
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		completer, nil, cfg, testLogger(), nil)

	_, err := gen.Generate(context.Background(), testMetadata())
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Fatalf("expected ErrAllModelsFailed, got %v", err)
	}

	var invalid *InvalidOutputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOutputError in chain, got %v", err)
	}
	if invalid.Model != "model-a" {
		t.Errorf("Model = %s", invalid.Model)
	}
	if !strings.Contains(invalid.Raw, "```json") {
		t.Error("Raw should keep the fenced response")
	}
	if strings.Contains(invalid.Cleaned, "```") {
		t.Error("Cleaned should have fences stripped")
	}
}

func TestGenerateNoIdentifier(t *testing.T) {
	gen := NewGenerator(testKnowledgeBase(), &mockEmbedder{vector: []float32{1, 0, 0}},
		&mockCompleter{}, nil, testGeneratorConfig(), testLogger(), nil)

	if _, err := gen.Generate(context.Background(), metadata.Metadata{Overview: "x"}); err == nil {
		t.Fatal("expected error for metadata without identifier")
	}
}

func TestGenerateEmptyKnowledgeBase(t *testing.T) {
	gen := NewGenerator(knowledge.NewBase(nil), &mockEmbedder{vector: []float32{1, 0, 0}},
		&mockCompleter{}, nil, testGeneratorConfig(), testLogger(), nil)

	_, err := gen.Generate(context.Background(), testMetadata())
	if !errors.Is(err, knowledge.ErrEmptyBase) {
		t.Fatalf("expected ErrEmptyBase, got %v", err)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
		{"prose around fence", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy!", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", "```json\n{\"a\":1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
