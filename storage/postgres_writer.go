package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"loan-eda/models"
	"loan-eda/utils"
)

// AnalysisTable is the PostgreSQL table holding the latest run.
const AnalysisTable = "loan_analysis"

// maxParams stays under the PostgreSQL limit of 65535 bind parameters.
const maxParams = 60000

// PostgresWriter persists the Analysis-Ready Table to PostgreSQL.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL and waits for it to
// answer, retrying with back-off.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresWriter{db: db, logger: logger}, nil
}

// Write recreates the analysis table to match t's output columns and
// batch-inserts the selected rows in one transaction.
func (pw *PostgresWriter) Write(ctx context.Context, t *models.Table, rows []int) error {
	header := t.Header()
	kinds := t.Kinds()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, dropTableSQL()); err != nil {
		return fmt.Errorf("postgres: drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(header, kinds)); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}

	selected := allRows(t, rows)
	size := batchSize(len(header))
	for start := 0; start < len(selected); start += size {
		end := start + size
		if end > len(selected) {
			end = len(selected)
		}
		batch := selected[start:end]

		args := make([]interface{}, 0, len(batch)*len(header))
		for _, i := range batch {
			args = append(args, t.Values(i)...)
		}
		if _, err := tx.ExecContext(ctx, insertSQL(header, len(batch)), args...); err != nil {
			return fmt.Errorf("postgres: insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	pw.logger.Info("[postgres] Stored %d rows in %s", len(selected), AnalysisTable)
	return nil
}

// Count returns the number of rows currently stored.
func (pw *PostgresWriter) Count(ctx context.Context) (int, error) {
	var n int
	err := pw.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+pq.QuoteIdentifier(AnalysisTable)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func dropTableSQL() string {
	return "DROP TABLE IF EXISTS " + pq.QuoteIdentifier(AnalysisTable)
}

func createTableSQL(header []string, kinds []models.Kind) string {
	cols := make([]string, 0, len(header)+1)
	cols = append(cols, "row_id SERIAL PRIMARY KEY")
	for j, name := range header {
		cols = append(cols, pq.QuoteIdentifier(name)+" "+columnType(kinds[j]))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", pq.QuoteIdentifier(AnalysisTable), strings.Join(cols, ",\n\t"))
}

func columnType(k models.Kind) string {
	switch k {
	case models.Numeric:
		return "DOUBLE PRECISION"
	case models.Flag:
		return "SMALLINT"
	case models.Date:
		return "DATE"
	}
	return "TEXT"
}

func insertSQL(header []string, rows int) string {
	quoted := make([]string, len(header))
	for j, name := range header {
		quoted[j] = pq.QuoteIdentifier(name)
	}

	valueStrings := make([]string, 0, rows)
	p := 1
	for r := 0; r < rows; r++ {
		params := make([]string, len(header))
		for j := range header {
			params[j] = fmt.Sprintf("$%d", p)
			p++
		}
		valueStrings = append(valueStrings, "("+strings.Join(params, ",")+")")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(AnalysisTable), strings.Join(quoted, ", "), strings.Join(valueStrings, ","))
}

// batchSize is the number of rows per INSERT for a table of cols columns.
func batchSize(cols int) int {
	if cols < 1 {
		cols = 1
	}
	n := maxParams / cols
	if n > 500 {
		n = 500
	}
	if n < 1 {
		n = 1
	}
	return n
}
