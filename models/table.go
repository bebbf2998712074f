package models

import (
	"time"
)

// ColumnDrop records a column removed from the schema by the Cleaner. It is a
// warning, not an error.
type ColumnDrop struct {
	Column          string  `json:"column"`
	MissingFraction float64 `json:"missing_fraction"`
	Reason          string  `json:"reason"`
}

// OutlierStats holds the IQR bounds, the 99th-percentile cap and the per-row
// results for one numeric column. Flags are computed from the original
// values; Capped holds min(value, P99).
type OutlierStats struct {
	Column  string    `json:"column"`
	Q1      float64   `json:"q1"`
	Q3      float64   `json:"q3"`
	IQR     float64   `json:"iqr"`
	Lower   float64   `json:"lower"`
	Upper   float64   `json:"upper"`
	P99     float64   `json:"p99"`
	Flagged int       `json:"flagged"`
	Capped  int       `json:"capped"`
	Flags   []bool    `json:"-"`
	Values  []float64 `json:"-"`
	Valid   []bool    `json:"-"`
}

// TableParts is everything the pipeline hands over to build a Table.
type TableParts struct {
	RunID     string
	Source    string
	BuiltAt   time.Time
	Schema    Schema
	Records   []LoanRecord
	Outliers  []OutlierStats
	Drops     []ColumnDrop
	Skipped   map[string]int
	Fallbacks int
}

// Table is the Analysis-Ready Table. It is immutable once built: accessors
// return copies, and the pipeline never holds on to the parts it handed over.
type Table struct {
	runID     string
	source    string
	builtAt   time.Time
	schema    Schema
	records   []LoanRecord
	outliers  []OutlierStats
	byColumn  map[string]int
	drops     []ColumnDrop
	skipped   map[string]int
	fallbacks int
	output    []outputColumn
}

// NewTable assembles a Table from pipeline output.
func NewTable(p TableParts) *Table {
	t := &Table{
		runID:     p.RunID,
		source:    p.Source,
		builtAt:   p.BuiltAt,
		schema:    p.Schema,
		records:   p.Records,
		outliers:  p.Outliers,
		byColumn:  make(map[string]int, len(p.Outliers)),
		drops:     p.Drops,
		skipped:   make(map[string]int, len(p.Skipped)),
		fallbacks: p.Fallbacks,
	}
	for i, o := range p.Outliers {
		t.byColumn[o.Column] = i
	}
	for k, v := range p.Skipped {
		t.skipped[k] = v
	}
	t.output = buildOutputColumns(t)
	return t
}

func (t *Table) RunID() string      { return t.runID }
func (t *Table) Source() string     { return t.source }
func (t *Table) BuiltAt() time.Time { return t.builtAt }
func (t *Table) Schema() Schema     { return t.schema }
func (t *Table) Len() int           { return len(t.records) }

// Row returns a copy of the i-th record.
func (t *Table) Row(i int) LoanRecord {
	return t.records[i]
}

// Outliers returns the outlier stats of a numeric column.
func (t *Table) Outliers(column string) (OutlierStats, bool) {
	i, ok := t.byColumn[column]
	if !ok {
		return OutlierStats{}, false
	}
	return t.outliers[i].clone(), true
}

// OutlierSummary lists the per-column stats in schema order.
func (t *Table) OutlierSummary() []OutlierStats {
	out := make([]OutlierStats, len(t.outliers))
	for i, o := range t.outliers {
		out[i] = o.clone()
	}
	return out
}

func (o OutlierStats) clone() OutlierStats {
	o.Flags = append([]bool(nil), o.Flags...)
	o.Values = append([]float64(nil), o.Values...)
	o.Valid = append([]bool(nil), o.Valid...)
	return o
}

// Drops lists the columns removed during cleaning.
func (t *Table) Drops() []ColumnDrop {
	out := make([]ColumnDrop, len(t.drops))
	copy(out, t.drops)
	return out
}

// Skipped returns, per derived feature, how many records had it left missing.
func (t *Table) Skipped() map[string]int {
	out := make(map[string]int, len(t.skipped))
	for k, v := range t.skipped {
		out[k] = v
	}
	return out
}

// CategoryFallbacks is the number of job titles that matched no rule.
func (t *Table) CategoryFallbacks() int { return t.fallbacks }
