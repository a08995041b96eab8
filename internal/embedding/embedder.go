package embedding

import (
	"context"
	"strings"
)

// Embedder turns text into a vector. Implementations must be
// deterministic for a given input so the similarity index can be
// rebuilt from stored tasks at startup.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder returns the OpenAI embedder when an API key is
// configured, otherwise the local hashing embedder.
func NewEmbedder(apiKey string, dim int) Embedder {
	if strings.TrimSpace(apiKey) == "" {
		return NewLocalEmbedder(dim)
	}
	return NewOpenAIEmbedder(apiKey)
}
