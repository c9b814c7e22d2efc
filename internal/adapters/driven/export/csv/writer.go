// Package csv writes results tables as comma-separated values.
package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure Writer implements the interface.
var _ driven.ResultWriter = (*Writer)(nil)

// Writer writes a header row followed by one row per record.
type Writer struct{}

// NewWriter creates a CSV result writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Extension returns ".csv".
func (w *Writer) Extension() string {
	return ".csv"
}

// Write stores the table at path. Missing cells are written empty.
func (w *Writer) Write(path string, columns []string, rows []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = row[col]
		}
		if err := cw.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close results file: %w", err)
	}

	logger.Info("Wrote %d rows to %s", len(rows), path)
	return nil
}
