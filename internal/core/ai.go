package core

import "context"

// EmbeddingProvider maps texts to fixed-dimension vectors. Implementations
// must be deterministic: the same text always yields the same vector.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMProvider is the text-generation service. GenerateStream invokes emit for
// every incremental fragment as it arrives; returning an error from emit
// aborts the stream. Implementations must honor ctx cancellation between
// fragments.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string, emit func(token string) error) error
}
