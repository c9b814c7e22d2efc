package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// indexedRetrieval builds a retrieval step over a memory index holding chunks
// whose vectors are looked up by content in embedder.
func indexedRetrieval(t *testing.T, embedder *fakeEmbedder, chunks []domain.Chunk) *RetrievalStep {
	t.Helper()
	gateway := NewEmbeddingGateway(embedder, EmbeddingGatewayConfig{})
	index := memory.NewVectorIndex()

	if len(chunks) > 0 {
		embedded, _, err := gateway.EmbedMany(context.Background(), chunks)
		require.NoError(t, err)
		require.NoError(t, index.Reset(context.Background(), len(embedded[0].Embedding)))
		require.NoError(t, index.Add(context.Background(), embedded))
	}
	return NewRetrievalStep(gateway, index)
}

func TestRetrievalStep_FindRelated_Ordering(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.vectors["query"] = []float32{1, 0, 0}

	// Similarity to the query decreases with i.
	var chunks []domain.Chunk
	for i := 0; i < 6; i++ {
		text := fmt.Sprintf("passage %d", i)
		embedder.vectors[text] = []float32{float32(6 - i), float32(i), 0}
		chunks = append(chunks, domain.Chunk{ID: text, Content: text})
	}

	step := indexedRetrieval(t, embedder, chunks)

	related, usage, err := step.FindRelated(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, related, 4)

	assert.Equal(t, "passage 0", related[0].ID)
	assert.Equal(t, "passage 1", related[1].ID)
	assert.Equal(t, "passage 5", related[2].ID, "least similar comes first in the dissimilar group")
	assert.Equal(t, "passage 4", related[3].ID)

	for _, c := range related[:2] {
		assert.Equal(t, domain.SimilaritySimilar, c.SimilarityType)
	}
	for _, c := range related[2:] {
		assert.Equal(t, domain.SimilarityDissimilar, c.SimilarityType)
	}
	assert.GreaterOrEqual(t, related[0].Score, related[1].Score)
	assert.LessOrEqual(t, related[2].Score, related[3].Score)

	assert.Equal(t, 1, usage.Calls)
	assert.Equal(t, domain.UsageEmbedding, usage.Kind)
}

func TestRetrievalStep_FindRelated_AtMostTwoK(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.vectors["query"] = []float32{1, 1, 0}

	for n := 1; n <= 5; n++ {
		for k := 1; k <= 3; k++ {
			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				var chunks []domain.Chunk
				for i := 0; i < n; i++ {
					text := fmt.Sprintf("n%d-%d", n, i)
					embedder.vectors[text] = []float32{float32(i + 1), float32(n - i), 1}
					chunks = append(chunks, domain.Chunk{ID: text, Content: text})
				}
				step := indexedRetrieval(t, embedder, chunks)

				related, _, err := step.FindRelated(context.Background(), "query", k)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(related), 2*k)

				var similar, dissimilar []float64
				for _, c := range related {
					switch c.SimilarityType {
					case domain.SimilaritySimilar:
						similar = append(similar, c.Score)
					case domain.SimilarityDissimilar:
						dissimilar = append(dissimilar, c.Score)
					}
				}
				for i := 1; i < len(similar); i++ {
					assert.GreaterOrEqual(t, similar[i-1], similar[i])
				}
				for i := 1; i < len(dissimilar); i++ {
					assert.LessOrEqual(t, dissimilar[i-1], dissimilar[i])
				}
			})
		}
	}
}

func TestRetrievalStep_FindRelated_SmallIndexOverlaps(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.vectors["query"] = []float32{1, 0, 0}
	embedder.vectors["near"] = []float32{1, 0.2, 0}
	embedder.vectors["far"] = []float32{0, 1, 0}
	chunks := []domain.Chunk{{ID: "near", Content: "near"}, {ID: "far", Content: "far"}}

	step := indexedRetrieval(t, embedder, chunks)

	related, _, err := step.FindRelated(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, related, 4, "both groups hold every indexed chunk")

	assert.Equal(t, []string{"near", "far", "far", "near"},
		[]string{related[0].ID, related[1].ID, related[2].ID, related[3].ID})
	assert.Equal(t, domain.SimilaritySimilar, related[0].SimilarityType)
	assert.Equal(t, domain.SimilaritySimilar, related[1].SimilarityType)
	assert.Equal(t, domain.SimilarityDissimilar, related[2].SimilarityType)
	assert.Equal(t, domain.SimilarityDissimilar, related[3].SimilarityType)
	assert.Equal(t, related[1].Score, related[2].Score)
}

func TestRetrievalStep_FindRelated_EmptyIndex(t *testing.T) {
	embedder := newFakeEmbedder()
	step := indexedRetrieval(t, embedder, nil)

	related, usage, err := step.FindRelated(context.Background(), "anything", 2)

	require.NoError(t, err)
	assert.NotNil(t, related)
	assert.Empty(t, related)
	assert.True(t, usage.IsZero())
	assert.Empty(t, embedder.singles, "no embedding call against an empty index")
}

func TestRetrievalStep_FindRelated_TiesKeepInsertionOrder(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.vectors["query"] = []float32{1, 0, 0}
	chunks := []domain.Chunk{
		{ID: "first", Content: "first"},
		{ID: "second", Content: "second"},
		{ID: "third", Content: "third"},
	}
	for _, c := range chunks {
		embedder.vectors[c.Content] = []float32{1, 0, 0}
	}

	step := indexedRetrieval(t, embedder, chunks)
	related, _, err := step.FindRelated(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, related, 4)

	assert.Equal(t, "first", related[0].ID)
	assert.Equal(t, "second", related[1].ID)
	assert.Equal(t, "first", related[2].ID)
	assert.Equal(t, "second", related[3].ID)
}

func TestRetrievalStep_FindRelated_InvalidK(t *testing.T) {
	step := indexedRetrieval(t, newFakeEmbedder(), nil)

	for _, k := range []int{0, -1} {
		_, _, err := step.FindRelated(context.Background(), "query", k)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestRetrievalStep_FindRelated_NoIndex(t *testing.T) {
	step := NewRetrievalStep(NewEmbeddingGateway(newFakeEmbedder(), EmbeddingGatewayConfig{}), nil)

	_, _, err := step.FindRelated(context.Background(), "query", 1)
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}
