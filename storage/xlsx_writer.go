package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"loan-eda/catalog"
	"loan-eda/models"
)

const (
	dataSheet       = "loans"
	dictionarySheet = "dictionary"
)

// XLSXWriter writes the Analysis-Ready Table to an Excel workbook: one sheet
// of rows and, when a catalog is set, a data dictionary sheet.
type XLSXWriter struct {
	path    string
	catalog *catalog.Catalog
}

// NewXLSXWriter prepares a writer for path. cat may be nil.
func NewXLSXWriter(path string, cat *catalog.Catalog) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}
	return &XLSXWriter{path: path, catalog: cat}, nil
}

// Write renders the workbook to a temporary file and renames it into place,
// so a failed write leaves any previous workbook untouched.
func (x *XLSXWriter) Write(ctx context.Context, t *models.Table, rows []int) error {
	tmp := x.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("xlsx: create file %q: %w", tmp, err)
	}
	if err := WriteXLSX(ctx, f, t, rows, x.catalog); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("xlsx: close file: %w", err)
	}
	if err := os.Rename(tmp, x.path); err != nil {
		return fmt.Errorf("xlsx: rename into place: %w", err)
	}
	return nil
}

func (x *XLSXWriter) Close() error { return nil }

// WriteXLSX renders the selected rows of t as a workbook to w. Numbers and
// flags stay numeric cells; dates are written as models.DateLayout text.
func WriteXLSX(ctx context.Context, w io.Writer, t *models.Table, rows []int, cat *catalog.Catalog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(dataSheet)
	if err != nil {
		return fmt.Errorf("xlsx: stream writer: %w", err)
	}

	header := t.Header()
	cells := make([]interface{}, len(header))
	for j, name := range header {
		cells[j] = name
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}

	for n, i := range allRows(t, rows) {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		if err := sw.SetRow(cell, xlsxRow(t.Values(i))); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: flush: %w", err)
	}

	if cat != nil {
		if err := writeDictionary(f, header, cat); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return nil
}

func xlsxRow(values []any) []interface{} {
	out := make([]interface{}, len(values))
	for j, v := range values {
		switch x := v.(type) {
		case time.Time:
			out[j] = x.Format(models.DateLayout)
		default:
			out[j] = x
		}
	}
	return out
}

func writeDictionary(f *excelize.File, header []string, cat *catalog.Catalog) error {
	if _, err := f.NewSheet(dictionarySheet); err != nil {
		return fmt.Errorf("xlsx: add dictionary sheet: %w", err)
	}
	rows := [][]interface{}{{"column", "group", "description"}}
	for _, name := range header {
		e, ok := cat.Lookup(name)
		if !ok {
			e = catalog.Entry{Column: name, Description: cat.Describe(name)}
		}
		rows = append(rows, []interface{}{name, e.Group, e.Description})
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		row := row
		if err := f.SetSheetRow(dictionarySheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write dictionary row: %w", err)
		}
	}
	return nil
}
