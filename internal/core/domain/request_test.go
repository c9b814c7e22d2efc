package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineRequest_Validate tests validation for every request variant
func TestPipelineRequest_Validate(t *testing.T) {
	passage := Chunk{ID: "c-1", Content: "Tell me, O Muse, of the man of many devices."}

	tests := []struct {
		name        string
		request     PipelineRequest
		wantErr     bool
		errContains string
	}{
		{
			name:    "index with chunks",
			request: IndexRequest{Chunks: []Chunk{passage}},
		},
		{
			name:        "index without chunks",
			request:     IndexRequest{},
			wantErr:     true,
			errContains: "index request is missing chunks",
		},
		{
			name:    "retrieval with query",
			request: RetrievalRequest{QueryText: "flowers", TopK: 2},
		},
		{
			name:        "retrieval without query or k",
			request:     RetrievalRequest{QueryText: "  "},
			wantErr:     true,
			errContains: "missing query_text, top_k",
		},
		{
			name:    "analysis with query and chunk",
			request: AnalysisRequest{QueryText: "flowers", Chunk: passage},
		},
		{
			name:        "analysis without chunk",
			request:     AnalysisRequest{QueryText: "flowers"},
			wantErr:     true,
			errContains: "analysis request is missing chunk.content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPipelineInput)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestPipelineRequest_Kind tests variant names
func TestPipelineRequest_Kind(t *testing.T) {
	assert.Equal(t, "index", IndexRequest{}.Kind())
	assert.Equal(t, "retrieval", RetrievalRequest{}.Kind())
	assert.Equal(t, "analysis", AnalysisRequest{}.Kind())
}

// TestPipelineResponse_TokenUsage tests that every response exposes its usage
func TestPipelineResponse_TokenUsage(t *testing.T) {
	usage := Usage{Kind: UsageEmbedding, Model: "m", InputTokens: 10, Calls: 1}

	responses := []PipelineResponse{
		IndexResponse{Usage: usage},
		RetrievalResponse{Usage: usage},
		AnalysisResponse{Usage: usage},
	}
	for _, resp := range responses {
		assert.Equal(t, usage, resp.TokenUsage())
	}
}
