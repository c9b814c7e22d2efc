package driven

import "github.com/custodia-labs/intertext-cli/internal/core/domain"

// ChunkStore persists chunks as line-delimited records.
type ChunkStore interface {
	// Save writes chunks to path, replacing the file and creating parent
	// directories as needed.
	Save(path string, chunks []domain.Chunk) error

	// Load reads chunks from path. Malformed lines are skipped and listed
	// in the report rather than failing the load.
	Load(path string) ([]domain.Chunk, domain.ChunkLoadReport, error)
}
