package domain

import (
	"fmt"
	"strings"
)

// PipelineRequest is one of IndexRequest, RetrievalRequest or AnalysisRequest.
// The interface is sealed: only this package can add variants, so a type
// switch over the three cases is exhaustive.
type PipelineRequest interface {
	// Validate reports missing fields as ErrInvalidPipelineInput.
	Validate() error

	// Kind names the variant for logs and errors.
	Kind() string

	isPipelineRequest()
}

// IndexRequest embeds chunks and loads them into a fresh vector collection.
type IndexRequest struct {
	Chunks []Chunk
}

// RetrievalRequest finds the passages most and least similar to a query.
type RetrievalRequest struct {
	QueryText string

	// TopK is the size of each of the similar and dissimilar groups.
	TopK int
}

// AnalysisRequest asks the LLM to judge one (query, passage) pair.
type AnalysisRequest struct {
	QueryText string
	Chunk     Chunk

	// PromptTemplate overrides the configured system prompt when set.
	PromptTemplate string
}

func (IndexRequest) isPipelineRequest()     {}
func (RetrievalRequest) isPipelineRequest() {}
func (AnalysisRequest) isPipelineRequest()  {}

// Kind returns "index".
func (IndexRequest) Kind() string { return "index" }

// Kind returns "retrieval".
func (RetrievalRequest) Kind() string { return "retrieval" }

// Kind returns "analysis".
func (AnalysisRequest) Kind() string { return "analysis" }

// Validate checks the request carries chunks.
func (r IndexRequest) Validate() error {
	if len(r.Chunks) == 0 {
		return invalidPipelineInput(r.Kind(), "chunks")
	}
	return nil
}

// Validate checks the request carries a query and a positive k.
func (r RetrievalRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.QueryText) == "" {
		missing = append(missing, "query_text")
	}
	if r.TopK <= 0 {
		missing = append(missing, "top_k")
	}
	if len(missing) > 0 {
		return invalidPipelineInput(r.Kind(), missing...)
	}
	return nil
}

// Validate checks the request carries a query and a passage.
func (r AnalysisRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.QueryText) == "" {
		missing = append(missing, "query_text")
	}
	if strings.TrimSpace(r.Chunk.Content) == "" {
		missing = append(missing, "chunk.content")
	}
	if len(missing) > 0 {
		return invalidPipelineInput(r.Kind(), missing...)
	}
	return nil
}

func invalidPipelineInput(kind string, fields ...string) error {
	return fmt.Errorf("%w: %s request is missing %s",
		ErrInvalidPipelineInput, kind, strings.Join(fields, ", "))
}

// PipelineResponse is the result of executing a PipelineRequest.
// Each variant carries the token usage of the calls it made.
type PipelineResponse interface {
	// TokenUsage returns the usage incurred while producing the response.
	TokenUsage() Usage

	isPipelineResponse()
}

// IndexResponse holds the embedded chunks in input order.
type IndexResponse struct {
	Chunks []Chunk
	Usage  Usage
}

// RetrievalResponse holds similar chunks followed by dissimilar chunks.
type RetrievalResponse struct {
	Chunks []Chunk
	Usage  Usage
}

// AnalysisResponse holds the parsed analysis of one pair.
type AnalysisResponse struct {
	Result *AnalysisResult

	// PromptTemplate is the system prompt actually used.
	PromptTemplate string

	// Model is the LLM that produced the result.
	Model string

	Usage Usage
}

func (IndexResponse) isPipelineResponse()     {}
func (RetrievalResponse) isPipelineResponse() {}
func (AnalysisResponse) isPipelineResponse()  {}

// TokenUsage returns the embedding usage of the indexing run.
func (r IndexResponse) TokenUsage() Usage { return r.Usage }

// TokenUsage returns the embedding usage of the query.
func (r RetrievalResponse) TokenUsage() Usage { return r.Usage }

// TokenUsage returns the completion usage of the analysis.
func (r AnalysisResponse) TokenUsage() Usage { return r.Usage }
