package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// RetrievalStep finds the indexed passages most and least similar to a query.
type RetrievalStep struct {
	gateway *EmbeddingGateway
	index   driven.VectorIndex
}

// NewRetrievalStep creates a retrieval step.
func NewRetrievalStep(gateway *EmbeddingGateway, index driven.VectorIndex) *RetrievalStep {
	return &RetrievalStep{
		gateway: gateway,
		index:   index,
	}
}

// FindRelated returns up to k chunks tagged similar, by descending score,
// followed by up to k chunks tagged dissimilar, by ascending score.
// Equal scores keep index insertion order. When the index holds fewer than
// 2k chunks the groups may overlap or come up short. An empty index yields
// an empty result.
func (r *RetrievalStep) FindRelated(ctx context.Context, queryText string, k int) ([]domain.Chunk, domain.Usage, error) {
	usage := domain.Usage{Kind: domain.UsageEmbedding}
	if k <= 0 {
		return nil, usage, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if r.index == nil {
		return nil, usage, domain.ErrVectorIndexUnavailable
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, usage, fmt.Errorf("count indexed chunks: %w", err)
	}
	if count == 0 {
		logger.Debug("Vector index is empty, nothing to retrieve")
		return []domain.Chunk{}, usage, nil
	}

	vec, usage, err := r.gateway.EmbedOne(ctx, queryText)
	if err != nil {
		logger.Error("Embedding query %q failed: %v", preview(queryText), err)
		return nil, usage, err
	}

	nearest, err := r.index.QueryNearest(ctx, vec, k)
	if err != nil {
		return nil, usage, fmt.Errorf("query nearest: %w", err)
	}

	ranked, err := r.index.QueryAll(ctx, vec)
	if err != nil {
		return nil, usage, fmt.Errorf("query all: %w", err)
	}

	// Ascending by score; the stable sort keeps insertion order among ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity < ranked[j].Similarity
	})
	tail := ranked[:min(k, len(ranked))]

	related := make([]domain.Chunk, 0, len(nearest)+len(tail))
	for _, hit := range nearest {
		related = append(related, hit.Chunk.WithScore(hit.Similarity, domain.SimilaritySimilar))
	}
	for _, hit := range tail {
		related = append(related, hit.Chunk.WithScore(hit.Similarity, domain.SimilarityDissimilar))
	}

	logger.Debug("Retrieved %d similar and %d dissimilar passages", len(nearest), len(tail))
	return related, usage, nil
}

// preview shortens text for log lines.
func preview(text string) string {
	return domain.Chunk{Content: text}.Preview(60)
}
