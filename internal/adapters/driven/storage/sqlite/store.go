package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Store is a SQLite database holding vector collections.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at path and applies migrations.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// VectorIndex returns the named collection. The collection is created by Reset.
func (s *Store) VectorIndex(collection string) *VectorIndex {
	return &VectorIndex{store: s, collection: collection}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_vectors.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Vector Index ====================

// VectorIndex is one named collection in a Store.
type VectorIndex struct {
	store      *Store
	collection string
}

// Collection returns the collection name.
func (v *VectorIndex) Collection() string {
	return v.collection
}

// Reset drops the collection's rows and records its vector size.
func (v *VectorIndex) Reset(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE collection = ?", v.collection); err != nil {
		return fmt.Errorf("clearing collection: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (name, dimensions) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			dimensions = excluded.dimensions,
			created_at = CURRENT_TIMESTAMP
	`, v.collection, dimensions)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Add inserts chunks after any already in the collection.
// All chunks are checked before any is written.
func (v *VectorIndex) Add(ctx context.Context, chunks []domain.Chunk) error {
	dimensions, err := v.dimensions(ctx)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) != dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, c.Label(), len(c.Embedding), dimensions)
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var next int64
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM vectors WHERE collection = ?", v.collection)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, seq, id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadataJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata of %s: %w", c.Label(), err)
		}
		next++
		if _, err := stmt.ExecContext(ctx, v.collection, next, c.ID, c.Content,
			metadataJSON, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.Label(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// QueryNearest returns the k most similar chunks.
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

// QueryAll scores every chunk against query, most similar first.
// Ties keep insertion order.
func (v *VectorIndex) QueryAll(ctx context.Context, query []float32) ([]driven.VectorHit, error) {
	dimensions, err := v.dimensions(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, content, metadata, embedding
		FROM vectors WHERE collection = ?
		ORDER BY seq
	`, v.collection)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			chunk        domain.Chunk
			metadataJSON string
			blob         []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		if len(query) != dimensions {
			return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
				domain.ErrDimensionMismatch, len(query), dimensions)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
		hits = append(hits, driven.VectorHit{
			Chunk:      chunk,
			Similarity: domain.CosineSimilarity(query, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	if hits == nil {
		hits = []driven.VectorHit{}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	return hits, nil
}

// Count returns the number of chunks in the collection.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	row := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE collection = ?", v.collection)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close closes the underlying store.
func (v *VectorIndex) Close() error {
	return v.store.Close()
}

// dimensions returns the collection's vector size.
func (v *VectorIndex) dimensions(ctx context.Context) (int, error) {
	var n int
	row := v.store.db.QueryRowContext(ctx, "SELECT dimensions FROM collections WHERE name = ?", v.collection)
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("collection %q %w: call Reset first", v.collection, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("reading collection: %w", err)
	}
	return n, nil
}

// ==================== Helpers ====================

// jsonNull is the JSON representation of null.
const jsonNull = "null"

func marshalMetadata(meta map[string]any) (string, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if string(data) == jsonNull {
		return "{}", nil
	}
	return string(data), nil
}

// float32SliceToBytes converts []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
