// Package qdrant implements driven.VectorIndex against a Qdrant server
// using its REST API.
//
// The collection uses cosine distance. Each point carries the chunk as
// payload together with its insertion sequence number, which breaks ties
// between equal scores.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const (
	// DefaultURL is the default Qdrant REST endpoint.
	DefaultURL = "http://localhost:6333"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// upsertBatchSize caps the number of points per upsert request.
	upsertBatchSize = 256
)

// Payload keys.
const (
	payloadID      = "chunk_id"
	payloadContent = "content"
	payloadMeta    = "meta"
	payloadSeq     = "seq"
)

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the REST endpoint. Defaults to http://localhost:6333.
	URL string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// Collection is the collection name.
	Collection string

	// Timeout is the HTTP request timeout. Defaults to 30s.
	Timeout time.Duration
}

// VectorIndex is a Qdrant collection.
type VectorIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client

	dimensions int
	next       int
}

// NewVectorIndex creates a Qdrant-backed index. No request is made until first use.
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection name is required", domain.ErrInvalidInput)
	}

	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &VectorIndex{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Reset deletes the collection if present and creates it empty.
func (v *VectorIndex) Reset(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}

	err := v.do(ctx, http.MethodDelete, v.collectionPath(), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("drop collection: %w", err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	if err := v.do(ctx, http.MethodPut, v.collectionPath(), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	v.dimensions = dimensions
	v.next = 0
	logger.Debug("Created qdrant collection %s (%d dimensions)", v.collection, dimensions)
	return nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Add upserts chunks as new points after those already in the collection.
func (v *VectorIndex) Add(ctx context.Context, chunks []domain.Chunk) error {
	if err := v.ensureState(ctx); err != nil {
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) != v.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, c.Label(), len(c.Embedding), v.dimensions)
		}
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		points := make([]point, 0, end-start)
		for i, c := range chunks[start:end] {
			points = append(points, point{
				ID:     uuid.New().String(),
				Vector: c.Embedding,
				Payload: map[string]any{
					payloadID:      c.ID,
					payloadContent: c.Content,
					payloadMeta:    c.Metadata,
					payloadSeq:     v.next + start + i,
				},
			})
		}

		path := v.collectionPath() + "/points?wait=true"
		if err := v.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}

	v.next += len(chunks)
	return nil
}

// QueryNearest returns the k most similar chunks.
// The whole collection is ranked so ties at the cut-off resolve by insertion order.
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

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

type seqHit struct {
	hit driven.VectorHit
	seq int
}

// QueryAll scores every point against query, most similar first.
func (v *VectorIndex) QueryAll(ctx context.Context, query []float32) ([]driven.VectorHit, error) {
	count, err := v.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []driven.VectorHit{}, nil
	}
	if err := v.ensureState(ctx); err != nil {
		return nil, err
	}
	if len(query) != v.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(query), v.dimensions)
	}

	// Exact search: the least similar tail must rank every point.
	req := map[string]any{
		"vector":       query,
		"limit":        count,
		"with_payload": true,
		"params":       map[string]any{"exact": true},
	}
	var resp searchResponse
	if err := v.do(ctx, http.MethodPost, v.collectionPath()+"/points/search", req, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	ranked := make([]seqHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		ranked = append(ranked, seqHit{
			hit: driven.VectorHit{Chunk: chunkFromPayload(r.Payload), Similarity: r.Score},
			seq: intFromPayload(r.Payload[payloadSeq]),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].hit.Similarity != ranked[j].hit.Similarity {
			return ranked[i].hit.Similarity > ranked[j].hit.Similarity
		}
		return ranked[i].seq < ranked[j].seq
	})

	hits := make([]driven.VectorHit, len(ranked))
	for i, r := range ranked {
		hits[i] = r.hit
	}
	return hits, nil
}

// Count returns the exact number of points. A missing collection counts as empty.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := v.do(ctx, http.MethodPost, v.collectionPath()+"/points/count", map[string]any{"exact": true}, &resp)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	v.client.CloseIdleConnections()
	return nil
}

// ensureState loads the vector size and next sequence number of a
// collection created by another process.
func (v *VectorIndex) ensureState(ctx context.Context) error {
	if v.dimensions > 0 {
		return nil
	}

	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := v.do(ctx, http.MethodGet, v.collectionPath(), nil, &resp); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("collection %q %w: call Reset first", v.collection, domain.ErrNotFound)
		}
		return fmt.Errorf("get collection: %w", err)
	}

	v.dimensions = resp.Result.Config.Params.Vectors.Size
	v.next = resp.Result.PointsCount
	return nil
}

func (v *VectorIndex) collectionPath() string {
	return "/collections/" + url.PathEscape(v.collection)
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qdrant error (status %d): %s", e.Status, e.Message)
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func (v *VectorIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Status.Error != "" {
			msg = errResp.Status.Error
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	var c domain.Chunk
	if id, ok := payload[payloadID].(string); ok {
		c.ID = id
	}
	if content, ok := payload[payloadContent].(string); ok {
		c.Content = content
	}
	if meta, ok := payload[payloadMeta].(map[string]any); ok {
		c.Metadata = meta
	}
	return c
}

func intFromPayload(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}
