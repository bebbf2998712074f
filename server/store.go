package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"loan-eda/models"
	"loan-eda/utils"
)

// ErrNoTable is returned while no table has been built yet.
var ErrNoTable = errors.New("no table built yet")

// Builder produces a fresh Analysis-Ready Table.
type Builder func(ctx context.Context) (*models.Table, error)

// TableStore holds the table being served. Readers never block: a rebuild
// assembles a new table and swaps the handle.
type TableStore struct {
	current atomic.Pointer[models.Table]
	mu      sync.Mutex
	build   Builder
	metrics *Metrics
	logger  *utils.Logger
}

// NewTableStore creates an empty store. metrics may be nil.
func NewTableStore(build Builder, metrics *Metrics, logger *utils.Logger) *TableStore {
	return &TableStore{build: build, metrics: metrics, logger: logger}
}

// Current returns the served table, or nil before the first build.
func (s *TableStore) Current() *models.Table {
	return s.current.Load()
}

// Refresh builds a new table and publishes it. Concurrent refreshes run one
// at a time; a failed build keeps the previous table.
func (s *TableStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.build(ctx)
	if s.metrics != nil {
		rows := 0
		if t != nil {
			rows = t.Len()
		}
		s.metrics.ObserveBuild(rows, err)
	}
	if err != nil {
		s.logger.Error("[store] Table build failed, keeping previous table: %v", err)
		return err
	}

	s.current.Store(t)
	s.logger.Info("[store] Serving table %s (%d rows)", t.RunID(), t.Len())
	return nil
}
