package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineService = (*Pipeline)(nil)

// Pipeline is the facade over the indexing, retrieval and analysis steps.
// Callers only see PipelineService; the steps stay private.
type Pipeline struct {
	gateway   *EmbeddingGateway
	index     driven.VectorIndex
	retrieval *RetrievalStep
	analysis  *AnalysisStep
	topK      int
}

// NewPipeline wires the steps from explicit settings.
// Any collaborator may be nil; requests needing it fail with the matching
// unavailable error.
func NewPipeline(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	llm driven.LLMService,
	prompts driven.PromptStore,
	settings domain.AppSettings,
) *Pipeline {
	gateway := NewEmbeddingGateway(embedder, EmbeddingGatewayConfig{
		BatchSize:         settings.Embedding.BatchSize,
		RequestsPerMinute: settings.Embedding.RequestsPerMinute,
	})

	topK := settings.Retrieval.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	return &Pipeline{
		gateway:   gateway,
		index:     index,
		retrieval: NewRetrievalStep(gateway, index),
		analysis: NewAnalysisStep(llm, prompts, AnalysisStepConfig{
			SystemPrompt:      settings.Analysis.SystemPrompt,
			Temperature:       settings.LLM.Temperature,
			MaxTokens:         settings.LLM.MaxTokens,
			RequestsPerMinute: settings.LLM.RequestsPerMinute,
		}),
		topK: topK,
	}
}

// Execute dispatches a request to the step its variant names.
// On a step failure the response is still returned when usage was incurred.
func (p *Pipeline) Execute(ctx context.Context, req domain.PipelineRequest) (domain.PipelineResponse, error) {
	switch r := req.(type) {
	case domain.IndexRequest:
		resp, err := p.Index(ctx, r)
		if resp == nil {
			return nil, err
		}
		return resp, err
	case domain.RetrievalRequest:
		resp, err := p.FindRelated(ctx, r)
		if resp == nil {
			return nil, err
		}
		return resp, err
	case domain.AnalysisRequest:
		resp, err := p.Analyze(ctx, r)
		if resp == nil {
			return nil, err
		}
		return resp, err
	case nil:
		return nil, fmt.Errorf("%w: request is nil", domain.ErrInvalidPipelineInput)
	default:
		return nil, fmt.Errorf("%w: unsupported request type %T", domain.ErrInvalidPipelineInput, req)
	}
}

// Index embeds chunks lacking embeddings, replaces the vector collection
// with them and returns the embedded chunks in input order.
func (p *Pipeline) Index(ctx context.Context, req domain.IndexRequest) (*domain.IndexResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	logger.Section("Indexing")

	chunks, usage, err := p.gateway.EmbedMany(ctx, req.Chunks)
	if err != nil {
		return &domain.IndexResponse{Usage: usage}, err
	}

	dims := len(chunks[0].Embedding)
	for _, c := range chunks {
		if len(c.Embedding) != dims {
			return &domain.IndexResponse{Usage: usage}, fmt.Errorf(
				"%w: chunk %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, c.Label(), len(c.Embedding), dims)
		}
	}

	if err := p.index.Reset(ctx, dims); err != nil {
		return &domain.IndexResponse{Usage: usage}, fmt.Errorf("reset collection: %w", err)
	}
	if err := p.index.Add(ctx, chunks); err != nil {
		return &domain.IndexResponse{Usage: usage}, fmt.Errorf("add chunks: %w", err)
	}

	logger.Info("Indexed %d chunks (%d dimensions)", len(chunks), dims)
	return &domain.IndexResponse{Chunks: chunks, Usage: usage}, nil
}

// FindRelated returns the TopK most similar then the TopK least similar chunks.
// A zero TopK uses the configured default.
func (p *Pipeline) FindRelated(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
	if req.TopK == 0 {
		req.TopK = p.topK
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chunks, usage, err := p.retrieval.FindRelated(ctx, req.QueryText, req.TopK)
	if err != nil {
		return &domain.RetrievalResponse{Usage: usage}, err
	}
	return &domain.RetrievalResponse{Chunks: chunks, Usage: usage}, nil
}

// Analyze asks the LLM for a structured judgment about one pair.
func (p *Pipeline) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp := &domain.AnalysisResponse{
		PromptTemplate: p.analysis.SystemPromptName(req.PromptTemplate),
		Model:          p.analysis.ModelName(),
	}

	result, usage, err := p.analysis.Analyze(ctx, req.QueryText, req.Chunk, req.PromptTemplate)
	resp.Usage = usage
	if err != nil {
		return resp, err
	}
	resp.Result = result
	return resp, nil
}

// IndexedCount returns how many chunks the collection holds.
func (p *Pipeline) IndexedCount(ctx context.Context) (int, error) {
	if p.index == nil {
		return 0, domain.ErrVectorIndexUnavailable
	}
	return p.index.Count(ctx)
}
