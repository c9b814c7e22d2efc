// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, domain.Usage, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// The returned vectors are in the same order as texts.
	EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// This is determined by the model and must match VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingBatch is the result of an EmbedBatch call.
type EmbeddingBatch struct {
	// Vectors holds one embedding per input text, in input order.
	Vectors [][]float32

	// Usage is the token count reported for the request.
	Usage domain.Usage
}
