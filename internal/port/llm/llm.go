// Package llm defines the port interfaces for generative and embedding models.
package llm

import "context"

// CompletionRequest is a single-turn generation request.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is the port interface for text generation. Implementations
// return the raw textual payload of the model response; callers own parsing
// and schema validation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder is the port interface for computing embedding vectors. The
// vector length is fixed by the underlying model and must be uniform
// across all calls with the same model.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}
