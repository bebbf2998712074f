package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"loan-eda/models"
)

// CSVWriter writes the Analysis-Ready Table to a delimited file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter prepares a writer for path. Intermediate directories are
// created automatically; the file itself is created on Write.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{path: path}, nil
}

// Path is the output file.
func (c *CSVWriter) Path() string { return c.path }

// Write truncates the output file and writes the header followed by rows.
// The file is written to a temporary name first and renamed into place, so
// readers never see a partial table.
func (c *CSVWriter) Write(ctx context.Context, t *models.Table, rows []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", tmp, err)
	}

	if err := WriteCSV(ctx, f, t, rows); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csv: close file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("csv: rename into place: %w", err)
	}
	return nil
}

// Close is a no-op; every Write closes its own file.
func (c *CSVWriter) Close() error { return nil }

// WriteCSV renders the header and the selected rows of t to w. Missing
// values are empty fields and dates use models.DateLayout.
func WriteCSV(ctx context.Context, w io.Writer, t *models.Table, rows []int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for n, i := range allRows(t, rows) {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := cw.Write(t.Strings(i)); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}
