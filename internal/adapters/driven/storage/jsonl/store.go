// Package jsonl stores chunks as line-delimited JSON.
//
// Each line holds one chunk:
//
//	{"id": "...", "content": "...", "meta": {...}, "embedding": [...]}
//
// On load, "text" is accepted in place of "content" and "metadata" in place
// of "meta". Malformed lines are skipped with a warning.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// maxLineSize bounds a single record. A 3072-dimension embedding is about 70KB.
const maxLineSize = 16 * 1024 * 1024

// record is the on-disk form of a chunk.
type record struct {
	ID        string         `json:"id,omitempty"`
	Content   string         `json:"content"`
	Text      string         `json:"text,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Store reads and writes chunk files.
type Store struct{}

// NewStore creates a chunk file store.
func NewStore() *Store {
	return &Store{}
}

// Save writes chunks to path, one per line, replacing the file.
// The file is written to a temporary sibling and renamed into place.
func (s *Store) Save(path string, chunks []domain.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i, c := range chunks {
		rec := record{
			ID:        c.ID,
			Content:   c.Content,
			Meta:      c.Metadata,
			Embedding: c.Embedding,
		}
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write chunk file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chunk file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace chunk file: %w", err)
	}
	logger.Debug("Wrote %d chunks to %s", len(chunks), path)
	return nil
}

// Load reads chunks from path. Blank lines are ignored. Lines that are not
// valid JSON objects, or carry no text, are skipped and reported.
// Chunks without an id get a fresh one.
func (s *Store) Load(path string) ([]domain.Chunk, domain.ChunkLoadReport, error) {
	report := domain.ChunkLoadReport{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return nil, report, fmt.Errorf("open chunk file: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		chunk, err := decode(raw)
		if err != nil {
			logger.Warn("Skipping malformed line %d in %s: %v", line, path, err)
			report.Skipped = append(report.Skipped, domain.SkippedLine{Line: line, Reason: err.Error()})
			continue
		}
		if chunk.HasEmbedding() {
			report.WithEmbeddings++
		}
		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, report, fmt.Errorf("read chunk file at line %d: %w", line+1, err)
	}

	report.Loaded = len(chunks)
	logger.Info("Loaded %d chunks from %s (%d with embeddings, %d skipped)",
		report.Loaded, path, report.WithEmbeddings, len(report.Skipped))
	return chunks, report, nil
}

// Merge concatenates the chunk files at paths into out, in order.
// Malformed lines in the inputs are dropped.
func (s *Store) Merge(out string, paths ...string) (int, error) {
	var merged []domain.Chunk
	for _, p := range paths {
		chunks, _, err := s.Load(p)
		if err != nil {
			return 0, err
		}
		merged = append(merged, chunks...)
	}
	if err := s.Save(out, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

func decode(raw []byte) (domain.Chunk, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Chunk{}, err
	}

	content := rec.Content
	if content == "" {
		content = rec.Text
	}
	if content == "" {
		return domain.Chunk{}, errors.New("missing content")
	}

	meta := rec.Meta
	if meta == nil {
		meta = rec.Metadata
	}

	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	return domain.Chunk{
		ID:        id,
		Content:   content,
		Metadata:  meta,
		Embedding: rec.Embedding,
	}, nil
}
