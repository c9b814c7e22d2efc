package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	var got embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"model": "nomic-embed-text",
			"embeddings": [[0.1, 0.2], [0.3, 0.4]],
			"prompt_eval_count": 12
		}`))
	}))
	defer server.Close()

	svc := NewEmbeddingService(Config{BaseURL: server.URL})
	batch, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, got.Input)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, batch.Vectors)
	assert.Equal(t, 12, batch.Usage.InputTokens)
	assert.Equal(t, 1, batch.Usage.Calls)
}

func TestEmbeddingService_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": []}`))
	}))
	defer server.Close()

	_, _, err := NewEmbeddingService(Config{BaseURL: server.URL}).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "got 0 embeddings for 1 inputs")
}

func TestEmbeddingService_Embed_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	_, _, err := NewEmbeddingService(Config{BaseURL: server.URL}).Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "status 404")
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())

	batch, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Vectors)
}
