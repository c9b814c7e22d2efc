package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory brute-force implementation of driven.VectorIndex.
// The collection lives only as long as the process.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []domain.Chunk
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Reset drops all chunks and fixes the vector size.
func (v *VectorIndex) Reset(_ context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.dimensions = dimensions
	v.chunks = nil
	return nil
}

// Add appends chunks in order. All chunks are checked before any is added.
func (v *VectorIndex) Add(_ context.Context, chunks []domain.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dimensions == 0 {
		return fmt.Errorf("collection not created: call Reset first")
	}
	for _, c := range chunks {
		if len(c.Embedding) != v.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, c.Label(), len(c.Embedding), v.dimensions)
		}
	}

	for _, c := range chunks {
		stored := c.WithScore(0, domain.SimilarityNone)
		v.chunks = append(v.chunks, stored)
	}
	return nil
}

// QueryNearest returns the k most similar chunks.
func (v *VectorIndex) QueryNearest(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}
	hits, err := v.QueryAll(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// QueryAll scores every chunk against query, most similar first.
// Ties keep insertion order.
func (v *VectorIndex) QueryAll(_ context.Context, query []float32) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.chunks) > 0 && len(query) != v.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(query), v.dimensions)
	}

	hits := make([]driven.VectorHit, len(v.chunks))
	for i, c := range v.chunks {
		hit := c.WithEmbedding(nil)
		hits[i] = driven.VectorHit{
			Chunk:      hit,
			Similarity: domain.CosineSimilarity(query, c.Embedding),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	return hits, nil
}

// Count returns the number of chunks in the collection.
func (v *VectorIndex) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chunks), nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}
