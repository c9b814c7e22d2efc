package driven

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// CheckpointStore remembers analysed pairs so an interrupted run can resume.
type CheckpointStore interface {
	// Get returns the record stored under key. The boolean is false if absent.
	Get(ctx context.Context, key string) (*domain.ResultRecord, bool, error)

	// Put stores a record under key, replacing any previous one.
	Put(ctx context.Context, key string, record domain.ResultRecord) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear removes every stored record.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
