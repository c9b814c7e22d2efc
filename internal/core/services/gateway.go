package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// EmbeddingGatewayConfig configures batching and pacing of embedding calls.
type EmbeddingGatewayConfig struct {
	// BatchSize is the number of texts per request. Defaults to domain.DefaultBatchSize.
	BatchSize int

	// RequestsPerMinute paces requests. Zero disables pacing.
	RequestsPerMinute int
}

// EmbeddingGateway converts chunks and query text into vectors.
// It caches nothing: chunks that already carry an embedding are passed through.
type EmbeddingGateway struct {
	embedder  driven.EmbeddingService
	batchSize int
	limiter   *rate.Limiter
}

// NewEmbeddingGateway creates a gateway over an embedding service.
// A nil embedder is allowed; every call then fails with ErrEmbeddingUnavailable.
func NewEmbeddingGateway(embedder driven.EmbeddingService, cfg EmbeddingGatewayConfig) *EmbeddingGateway {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	return &EmbeddingGateway{
		embedder:  embedder,
		batchSize: batchSize,
		limiter:   newPacer(cfg.RequestsPerMinute),
	}
}

// EmbedMany returns chunks in input order, each carrying an embedding.
// Chunks without one are embedded in batches; the first failing batch aborts the call.
func (g *EmbeddingGateway) EmbedMany(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, domain.Usage, error) {
	usage := domain.Usage{Kind: domain.UsageEmbedding}
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)

	var pending []int
	for i, c := range out {
		if !c.HasEmbedding() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		logger.Debug("All %d chunks already embedded", len(chunks))
		return out, usage, nil
	}
	if g.embedder == nil {
		return nil, usage, domain.ErrEmbeddingUnavailable
	}
	usage.Model = g.embedder.ModelName()

	logger.Info("Embedding %d of %d chunks in batches of %d", len(pending), len(chunks), g.batchSize)

	for start := 0; start < len(pending); start += g.batchSize {
		end := min(start+g.batchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = out[idx].Content
		}

		if err := pace(ctx, g.limiter); err != nil {
			return nil, usage, err
		}
		result, err := g.embedder.EmbedBatch(ctx, texts)
		usage = usage.Add(result.Usage)
		if err != nil {
			logger.Error("Embedding batch %d-%d failed (first chunk %s): %v",
				start, end-1, out[batch[0]].Label(), err)
			return nil, usage, fmt.Errorf("embed batch %d-%d: %w", start, end-1, err)
		}
		if len(result.Vectors) != len(batch) {
			return nil, usage, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts",
				start, end-1, len(result.Vectors), len(batch))
		}

		for i, idx := range batch {
			out[idx] = out[idx].WithEmbedding(result.Vectors[i])
		}
		logger.Debug("Embedded batch %d-%d", start, end-1)
	}

	return out, usage, nil
}

// EmbedOne embeds ad-hoc query text. The result is never cached.
func (g *EmbeddingGateway) EmbedOne(ctx context.Context, text string) ([]float32, domain.Usage, error) {
	usage := domain.Usage{Kind: domain.UsageEmbedding}
	if g.embedder == nil {
		return nil, usage, domain.ErrEmbeddingUnavailable
	}
	usage.Model = g.embedder.ModelName()

	if err := pace(ctx, g.limiter); err != nil {
		return nil, usage, err
	}
	vec, delta, err := g.embedder.Embed(ctx, text)
	usage = usage.Add(delta)
	if err != nil {
		return nil, usage, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, usage, fmt.Errorf("embed query: empty embedding returned")
	}
	return vec, usage, nil
}

// Available returns true if an embedding service is configured.
func (g *EmbeddingGateway) Available() bool {
	return g.embedder != nil
}

// newPacer returns a limiter allowing rpm requests per minute, or nil for no pacing.
func newPacer(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

// pace blocks until the limiter admits one request. A nil limiter never blocks.
func pace(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
