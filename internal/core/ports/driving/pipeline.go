package driving

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// PipelineService is the single entry point to the index, retrieval and
// analysis steps.
type PipelineService interface {
	// Execute dispatches a request to the step its variant names.
	Execute(ctx context.Context, req domain.PipelineRequest) (domain.PipelineResponse, error)

	// Index embeds chunks lacking embeddings and rebuilds the vector collection.
	Index(ctx context.Context, req domain.IndexRequest) (*domain.IndexResponse, error)

	// FindRelated returns the k most similar then the k least similar chunks.
	FindRelated(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error)

	// Analyze asks the LLM for a structured judgment about one pair.
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)

	// IndexedCount returns how many chunks the collection holds.
	IndexedCount(ctx context.Context) (int, error)
}
