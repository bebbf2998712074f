package models

import (
	"database/sql"
	"math"
	"strconv"
	"time"
)

// DateLayout is the persisted form of parsed date columns.
const DateLayout = "2006-01-02"

type outputColumn struct {
	name  string
	kind  Kind
	value func(t *Table, i int) any
}

func nullFloat(v sql.NullFloat64) any {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return nil
	}
	return v.Float64
}

func nullString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullTime(v sql.NullTime) any {
	if !v.Valid {
		return nil
	}
	return v.Time
}

func derivedFloat(name string, f func(d *Derived) sql.NullFloat64) outputColumn {
	return outputColumn{name: name, kind: Numeric, value: func(t *Table, i int) any {
		return nullFloat(f(&t.records[i].Derived))
	}}
}

func derivedText(name string, f func(d *Derived) string) outputColumn {
	return outputColumn{name: name, kind: Categorical, value: func(t *Table, i int) any {
		return f(&t.records[i].Derived)
	}}
}

func derivedFlag(name string, f func(d *Derived) int) outputColumn {
	return outputColumn{name: name, kind: Flag, value: func(t *Table, i int) any {
		return f(&t.records[i].Derived)
	}}
}

// flagSources maps each binary flag to the source column it is derived from.
// A flag is emitted only when its source survived cleaning.
var flagSources = []struct {
	name   string
	source string
	get    func(d *Derived) int
}{
	{"has_tax_lien", "tax_liens", func(d *Derived) int { return d.HasTaxLien }},
	{"has_bankruptcy", "public_record_bankrupt", func(d *Derived) int { return d.HasBankruptcy }},
	{"has_collections", "num_collections_last_12m", func(d *Derived) int { return d.HasCollections }},
	{"has_delinquency", "delinq_2y", func(d *Derived) int { return d.HasDelinquency }},
}

func buildOutputColumns(t *Table) []outputColumn {
	var cols []outputColumn

	for _, c := range t.schema.Columns() {
		c := c
		switch c.Kind {
		case Numeric:
			cols = append(cols, outputColumn{name: c.Name, kind: Numeric, value: func(t *Table, i int) any {
				return nullFloat(*c.Number(&t.records[i]))
			}})
		case Date:
			cols = append(cols, outputColumn{name: c.Name, kind: Date, value: func(t *Table, i int) any {
				return nullTime(*c.Parsed(&t.records[i]))
			}})
		default:
			cols = append(cols, outputColumn{name: c.Name, kind: Categorical, value: func(t *Table, i int) any {
				return nullString(*c.Text(&t.records[i]))
			}})
		}
	}

	cols = append(cols, derivedText("job_category", func(d *Derived) string { return d.JobCategory }))
	for _, f := range flagSources {
		if t.schema.Has(f.source) {
			cols = append(cols, derivedFlag(f.name, f.get))
		}
	}
	cols = append(cols,
		derivedFloat("credit_utilization", func(d *Derived) sql.NullFloat64 { return d.CreditUtilization }),
		derivedFloat("loan_to_income", func(d *Derived) sql.NullFloat64 { return d.LoanToIncome }),
		derivedFloat("installment_to_income", func(d *Derived) sql.NullFloat64 { return d.InstallmentToIncome }),
		derivedFloat("payment_burden_pct", func(d *Derived) sql.NullFloat64 { return d.PaymentBurdenPct }),
		derivedFloat("credit_age_years", func(d *Derived) sql.NullFloat64 { return d.CreditAgeYears }),
		derivedText("income_bracket", func(d *Derived) string { return d.IncomeBracket }),
		derivedText("dti_category", func(d *Derived) string { return d.DTICategory }),
		derivedText("utilization_bucket", func(d *Derived) string { return d.UtilizationBucket }),
	)
	if t.schema.Has("loan_status") {
		cols = append(cols, derivedFlag("is_default", func(d *Derived) int { return d.IsDefault }))
	}

	for oi := range t.outliers {
		oi := oi
		name := t.outliers[oi].Column
		cols = append(cols,
			outputColumn{name: name + "_is_outlier", kind: Flag, value: func(t *Table, i int) any {
				if t.outliers[oi].Flags[i] {
					return 1
				}
				return 0
			}},
			outputColumn{name: name + "_capped", kind: Numeric, value: func(t *Table, i int) any {
				o := &t.outliers[oi]
				if !o.Valid[i] {
					return nil
				}
				return o.Values[i]
			}},
		)
	}
	return cols
}

// Header lists the output column names: cleaned source columns in schema
// order, then derived columns.
func (t *Table) Header() []string {
	out := make([]string, len(t.output))
	for i, c := range t.output {
		out[i] = c.name
	}
	return out
}

// Kinds lists the output column kinds, aligned with Header.
func (t *Table) Kinds() []Kind {
	out := make([]Kind, len(t.output))
	for i, c := range t.output {
		out[i] = c.kind
	}
	return out
}

// Values returns the i-th output row. Cells are float64, string, int,
// time.Time or nil (missing).
func (t *Table) Values(i int) []any {
	out := make([]any, len(t.output))
	for j, c := range t.output {
		out[j] = c.value(t, i)
	}
	return out
}

// FormatCell renders a Values cell for delimited text. Missing is "".
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	case time.Time:
		return x.Format(DateLayout)
	}
	return ""
}

// Strings returns the i-th output row rendered with FormatCell.
func (t *Table) Strings(i int) []string {
	vals := t.Values(i)
	out := make([]string, len(vals))
	for j, v := range vals {
		out[j] = FormatCell(v)
	}
	return out
}
