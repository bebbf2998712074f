package storage

import (
	"context"

	"loan-eda/models"
)

// TableWriter is the interface any storage backend must satisfy. rows selects
// the table rows to persist, in order; nil means every row.
type TableWriter interface {
	Write(ctx context.Context, t *models.Table, rows []int) error
	Close() error
}

// allRows expands a nil selection to every row of t.
func allRows(t *models.Table, rows []int) []int {
	if rows != nil {
		return rows
	}
	out := make([]int, t.Len())
	for i := range out {
		out[i] = i
	}
	return out
}
