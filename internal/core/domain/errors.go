package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPipelineInput indicates a pipeline request is missing the
	// fields its variant requires.
	ErrInvalidPipelineInput = errors.New("invalid pipeline input")

	// ErrSchemaValidation indicates an LLM payload did not match the
	// AnalysisResult schema.
	ErrSchemaValidation = errors.New("analysis schema validation failed")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates an embedding does not match the collection size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRunAborted indicates a batch run stopped on a failed pair.
	ErrRunAborted = errors.New("run aborted")
)
