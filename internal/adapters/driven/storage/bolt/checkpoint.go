// Package bolt persists run checkpoints in a bbolt database so an
// interrupted run can resume where it stopped.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

var bucketPairs = []byte("pairs")

// DefaultOpenTimeout is how long Open waits for another process to release the file.
const DefaultOpenTimeout = 5 * time.Second

// CheckpointStore keeps one JSON record per analysed pair.
// Query and passage chunks are not stored; the caller re-attaches them.
type CheckpointStore struct {
	db *bbolt.DB
}

// Open opens or creates the checkpoint database at path.
func Open(path string) (*CheckpointStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: DefaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPairs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}

	return &CheckpointStore{db: db}, nil
}

// Get returns the record stored under key.
func (s *CheckpointStore) Get(ctx context.Context, key string) (*domain.ResultRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var rec *domain.ResultRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPairs).Get([]byte(key))
		if data == nil {
			return nil
		}
		rec = &domain.ResultRecord{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, false, fmt.Errorf("read checkpoint %s: %w", key, err)
	}
	return rec, rec != nil, nil
}

// Put stores a record under key, replacing any previous one.
func (s *CheckpointStore) Put(ctx context.Context, key string, record domain.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPairs).Put([]byte(key), data)
	})
}

// Count returns the number of stored records.
func (s *CheckpointStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPairs).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every stored record.
func (s *CheckpointStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketPairs); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketPairs)
		return err
	})
}

// Path returns the database file path.
func (s *CheckpointStore) Path() string {
	return s.db.Path()
}

// Close closes the database.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
