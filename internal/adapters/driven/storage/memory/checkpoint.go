package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps analysed pairs for the lifetime of the process.
// It stands in when the checkpoint file cannot be opened.
type CheckpointStore struct {
	mu      sync.RWMutex
	records map[string]domain.ResultRecord
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		records: make(map[string]domain.ResultRecord),
	}
}

// Get returns the record stored under key.
func (s *CheckpointStore) Get(_ context.Context, key string) (*domain.ResultRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Put stores a record under key.
func (s *CheckpointStore) Put(_ context.Context, key string, record domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = record
	return nil
}

// Count returns the number of stored records.
func (s *CheckpointStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Clear removes every stored record.
func (s *CheckpointStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]domain.ResultRecord)
	return nil
}

// Close releases resources.
func (s *CheckpointStore) Close() error {
	return nil
}
