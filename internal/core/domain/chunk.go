package domain

import (
	"fmt"
	"maps"
	"strings"
)

// SimilarityType labels a chunk returned by a retrieval query.
type SimilarityType string

// Similarity labels.
const (
	// SimilarityNone marks a chunk that was not produced by a retrieval query.
	SimilarityNone SimilarityType = ""

	// SimilaritySimilar marks a chunk from the nearest end of the ranking.
	SimilaritySimilar SimilarityType = "similar"

	// SimilarityDissimilar marks a chunk from the farthest end of the ranking.
	SimilarityDissimilar SimilarityType = "dissimilar"
)

// IsValid returns true for the two retrieval labels.
func (t SimilarityType) IsValid() bool {
	return t == SimilaritySimilar || t == SimilarityDissimilar
}

// String returns the string representation.
func (t SimilarityType) String() string {
	return string(t)
}

// Well-known metadata keys written during preparation.
const (
	MetaSource      = "source"
	MetaChapter     = "chapter"
	MetaBookNumber  = "book_number"
	MetaChunkNumber = "chunk_number"
)

// Chunk is a unit of source text.
// Chunks are created during preparation, gain an embedding during indexing
// and are treated as immutable from then on. Score and SimilarityType are
// only set on the copies handed out by a retrieval query.
type Chunk struct {
	// ID is the stable identifier for the chunk.
	ID string

	// Content is the text of the passage.
	Content string

	// Metadata holds scalar attributes such as chapter or chunk number.
	Metadata map[string]any

	// Embedding is the vector representation, nil until indexed.
	Embedding []float32

	// Score is the similarity to the query that retrieved this chunk.
	Score float64

	// SimilarityType tells which end of the ranking the chunk came from.
	SimilarityType SimilarityType
}

// HasEmbedding returns true if the chunk carries a vector.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// WithEmbedding returns a copy of the chunk carrying the given vector.
func (c Chunk) WithEmbedding(embedding []float32) Chunk {
	out := c.clone()
	out.Embedding = embedding
	return out
}

// WithScore returns a copy of the chunk tagged with a retrieval score.
func (c Chunk) WithScore(score float64, similarity SimilarityType) Chunk {
	out := c.clone()
	out.Score = score
	out.SimilarityType = similarity
	return out
}

// Label returns a short human-readable identifier such as "BOOK I._3".
// It falls back to the chunk ID when no chapter metadata is present.
func (c Chunk) Label() string {
	number, hasNumber := c.Metadata[MetaChunkNumber]
	if chapter, ok := c.Metadata[MetaChapter]; ok && hasNumber {
		return fmt.Sprintf("%v_%v", chapter, number)
	}
	if source, ok := c.Metadata[MetaSource]; ok && hasNumber {
		return fmt.Sprintf("%v_%v", source, number)
	}
	return c.ID
}

// Preview returns at most n runes of the content on a single line.
func (c Chunk) Preview(n int) string {
	text := strings.Join(strings.Fields(c.Content), " ")
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// clone copies the metadata map so callers can't alias each other's chunks.
// Embeddings are shared since they are never written after creation.
func (c Chunk) clone() Chunk {
	out := c
	if c.Metadata != nil {
		out.Metadata = maps.Clone(c.Metadata)
	}
	return out
}

// ChunkLoadReport summarises a chunk file load.
type ChunkLoadReport struct {
	// Path is the file that was read.
	Path string

	// Loaded is the number of chunks decoded successfully.
	Loaded int

	// WithEmbeddings is how many loaded chunks carried a vector.
	WithEmbeddings int

	// Skipped lists malformed lines that were ignored.
	Skipped []SkippedLine
}

// SkippedLine records a malformed line in a chunk file.
type SkippedLine struct {
	// Line is the 1-based line number.
	Line int

	// Reason is the decoding error.
	Reason string
}
