package driven

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// VectorIndex stores embedded chunks in a named collection and ranks them
// by cosine similarity to a query vector.
//
// Rankings are ordered by similarity descending; equal scores keep the
// order in which chunks were added. Repeated identical queries against an
// unchanged collection return identical rankings.
type VectorIndex interface {
	// Reset drops the collection if it exists and creates an empty one
	// for vectors of the given size.
	Reset(ctx context.Context, dimensions int) error

	// Add inserts chunks in order. Every chunk must carry an embedding
	// of the collection's size.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// QueryNearest returns the k most similar chunks.
	QueryNearest(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// QueryAll returns every chunk in the collection with its score.
	QueryAll(ctx context.Context, query []float32) ([]VectorHit, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk without its embedding.
	Chunk domain.Chunk

	// Similarity is the cosine similarity score (higher = more similar).
	Similarity float64
}
