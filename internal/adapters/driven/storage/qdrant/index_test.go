package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// fakeQdrant serves the subset of the REST API the index uses.
// Search results come back in reverse insertion order among equal scores
// so the client's tie-breaking is exercised.
type fakeQdrant struct {
	mu       sync.Mutex
	exists   bool
	size     int
	points   []point
	apiKeys  []string
	requests []string
	// params.exact of each search
	exact    []bool
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if !strings.HasPrefix(r.URL.Path, "/collections/odyssey") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/collections/odyssey")

	notFound := func() {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status": {"error": "Not found: Collection ` + "`odyssey`" + ` doesn't exist!"}}`))
	}

	switch {
	case rest == "" && r.Method == http.MethodDelete:
		if !f.exists {
			notFound()
			return
		}
		f.exists, f.points = false, nil
		_, _ = w.Write([]byte(`{"result": true}`))

	case rest == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Vectors.Distance != "Cosine" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.exists, f.size = true, body.Vectors.Size
		_, _ = w.Write([]byte(`{"result": true}`))

	case rest == "" && r.Method == http.MethodGet:
		if !f.exists {
			notFound()
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"points_count": len(f.points),
			"config":       map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}},
		}})

	case rest == "/points" && r.Method == http.MethodPut:
		if r.URL.Query().Get("wait") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		_, _ = w.Write([]byte(`{"result": {"status": "completed"}}`))

	case rest == "/points/count":
		if !f.exists {
			notFound()
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": len(f.points)}})

	case rest == "/points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
			Params struct {
				Exact bool `json:"exact"`
			} `json:"params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.exact = append(f.exact, body.Params.Exact)

		type scored struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		results := make([]scored, 0, len(f.points))
		for i := len(f.points) - 1; i >= 0; i-- {
			p := f.points[i]
			results = append(results, scored{Score: domain.CosineSimilarity(body.Vector, p.Vector), Payload: p.Payload})
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		if len(results) > body.Limit {
			results = results[:body.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": results})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestIndex(t *testing.T) (*VectorIndex, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	idx, err := NewVectorIndex(Config{URL: server.URL + "/", APIKey: "secret", Collection: "odyssey"})
	require.NoError(t, err)
	return idx, fake
}

func odysseyChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "a", Content: "Tell me, O Muse", Metadata: map[string]any{"chapter": "BOOK I."}, Embedding: []float32{1, 0, 0}},
		{ID: "b", Content: "So he spoke", Embedding: []float32{0, 1, 0}},
		{ID: "c", Content: "Dawn appeared", Embedding: []float32{0, 1, 0}},
		{ID: "d", Content: "The wine-dark sea", Embedding: []float32{0.8, 0.6, 0}},
	}
}

func hitIDs(hits []driven.VectorHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Chunk.ID
	}
	return ids
}

func TestVectorIndex_ResetAddQuery(t *testing.T) {
	ctx := context.Background()
	idx, fake := newTestIndex(t)

	require.NoError(t, idx.Reset(ctx, 3))
	require.NoError(t, idx.Add(ctx, odysseyChunks()))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	hits, err := idx.QueryAll(ctx, []float32{0.6, 0.8, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a"}, hitIDs(hits), "ties keep insertion order")
	assert.InDelta(t, 0.96, hits[0].Similarity, 1e-6)
	assert.Equal(t, map[string]any{"chapter": "BOOK I."}, hits[3].Chunk.Metadata)
	assert.Equal(t, "Tell me, O Muse", hits[3].Chunk.Content)

	nearest, err := idx.QueryNearest(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(nearest))
	assert.Equal(t, []bool{true, true}, fake.exact, "searches bypass the approximate index")

	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
	assert.Equal(t, "DELETE /collections/odyssey", fake.requests[0])
	assert.Equal(t, "PUT /collections/odyssey", fake.requests[1])
}

func TestVectorIndex_ResetReplacesCollection(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	require.NoError(t, idx.Reset(ctx, 3))
	require.NoError(t, idx.Add(ctx, odysseyChunks()))
	require.NoError(t, idx.Reset(ctx, 3))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, idx.Add(ctx, odysseyChunks()[2:]))
	hits, err := idx.QueryAll(ctx, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, hitIDs(hits))
}

func TestVectorIndex_ExistingCollection(t *testing.T) {
	ctx := context.Background()
	idx, fake := newTestIndex(t)
	require.NoError(t, idx.Reset(ctx, 3))
	require.NoError(t, idx.Add(ctx, odysseyChunks()[:2]))

	// A second client picks up size and sequence from the server.
	other, err := NewVectorIndex(Config{URL: idx.baseURL, APIKey: "secret", Collection: "odyssey"})
	require.NoError(t, err)

	require.NoError(t, other.Add(ctx, odysseyChunks()[2:3]))
	assert.Equal(t, 3, other.dimensions)
	assert.Equal(t, float64(2), fake.points[2].Payload[payloadSeq])

	assert.ErrorIs(t, other.Add(ctx, []domain.Chunk{{ID: "x", Embedding: []float32{1}}}), domain.ErrDimensionMismatch)
}

func TestVectorIndex_MissingCollection(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := idx.QueryAll(ctx, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, hits)

	err = idx.Add(ctx, odysseyChunks())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorIndex_Errors(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	assert.ErrorIs(t, idx.Reset(ctx, 0), domain.ErrInvalidInput)

	require.NoError(t, idx.Reset(ctx, 3))
	require.NoError(t, idx.Add(ctx, odysseyChunks()))

	_, err := idx.QueryAll(ctx, []float32{1, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	hits, err := idx.QueryNearest(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = NewVectorIndex(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorIndex_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status": {"error": "Invalid api-key"}}`))
	}))
	defer server.Close()

	idx, err := NewVectorIndex(Config{URL: server.URL, Collection: "odyssey"})
	require.NoError(t, err)

	err = idx.Reset(context.Background(), 3)
	assert.ErrorContains(t, err, "qdrant error (status 403): Invalid api-key")
	assert.NoError(t, idx.Close())
}
