package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"loan-eda/models"
)

const (
	// DefaultSampleFraction keeps every row.
	DefaultSampleFraction = 1.0
	// sampleMinRows is the view size at or below which sampling is skipped.
	sampleMinRows = 100
)

var filterValidator = validator.New()

// Filter narrows the Analysis-Ready Table to a view. Empty lists mean no
// restriction.
type Filter struct {
	Grades   []string `json:"grades,omitempty" validate:"dive,oneof=A B C D E F G"`
	Terms    []int    `json:"terms,omitempty" validate:"dive,oneof=36 60"`
	Purposes []string `json:"purposes,omitempty" validate:"dive,required"`
	Sample   float64  `json:"sample" validate:"gte=0.05,lte=1"`
}

// Normalize upper-cases grades, fills the default sample fraction and sorts
// every list so equal filters compare equal.
func (f Filter) Normalize() Filter {
	out := Filter{Sample: f.Sample}
	if out.Sample == 0 {
		out.Sample = DefaultSampleFraction
	}
	for _, g := range f.Grades {
		out.Grades = append(out.Grades, strings.ToUpper(strings.TrimSpace(g)))
	}
	out.Terms = append(out.Terms, f.Terms...)
	for _, p := range f.Purposes {
		out.Purposes = append(out.Purposes, strings.TrimSpace(p))
	}
	sort.Strings(out.Grades)
	sort.Ints(out.Terms)
	sort.Strings(out.Purposes)
	return out
}

// Validate reports the first invalid field as a *ValidationError.
func (f Filter) Validate() error {
	err := filterValidator.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.StructField()
		// list elements are reported as "Grades[0]"
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		return &ValidationError{Field: strings.ToLower(field), Message: filterMessage(fe)}
	}
	return &ValidationError{Field: "filter", Message: err.Error()}
}

func filterMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%v is not one of %s", fe.Value(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("must be between 0.05 and 1.0, got %v", fe.Value())
	case "required":
		return "must not be empty"
	}
	return fmt.Sprintf("failed %s check", fe.Tag())
}

// Key is a stable string form of a normalized filter, used in cache keys.
func (f Filter) Key() string {
	terms := make([]string, len(f.Terms))
	for i, t := range f.Terms {
		terms[i] = strconv.Itoa(t)
	}
	return fmt.Sprintf("g=%s;t=%s;p=%s;s=%s",
		strings.Join(f.Grades, ","),
		strings.Join(terms, ","),
		strings.Join(f.Purposes, ","),
		strconv.FormatFloat(f.Sample, 'f', -1, 64))
}

func (f Filter) matches(r *models.LoanRecord) bool {
	if len(f.Grades) > 0 && !containsString(f.Grades, strings.ToUpper(r.Grade.String)) {
		return false
	}
	if len(f.Terms) > 0 {
		if !r.Term.Valid {
			return false
		}
		term := int(math.Round(r.Term.Float64))
		found := false
		for _, t := range f.Terms {
			if t == term {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Purposes) > 0 && !containsString(f.Purposes, r.LoanPurpose.String) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// View is a filtered, read-only window onto a Table. Rows holds the indices
// passing the filter; Sampled is the seeded subset used for point-level
// output, in row order.
type View struct {
	table   *models.Table
	filter  Filter
	records []models.LoanRecord
	rows    []int
	sampled []int
}

// NewView validates filter and applies it to t. The sample is drawn only when
// more than 100 rows pass the filter.
func NewView(t *models.Table, filter Filter, seed int64) (*View, error) {
	f := filter.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	v := &View{table: t, filter: f}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		if f.matches(&r) {
			v.rows = append(v.rows, i)
			v.records = append(v.records, r)
		}
	}
	v.sampled = sampleRows(v.rows, f.Sample, seed)
	return v, nil
}

// sampleRows picks round(frac*len(rows)) indices with a seeded generator and
// returns them in their original order.
func sampleRows(rows []int, frac float64, seed int64) []int {
	if frac >= 1 || len(rows) <= sampleMinRows {
		out := make([]int, len(rows))
		copy(out, rows)
		return out
	}
	k := int(math.Round(frac * float64(len(rows))))
	if k < 1 {
		k = 1
	}
	rng := rand.New(rand.NewSource(seed))
	picks := rng.Perm(len(rows))[:k]
	sort.Ints(picks)
	out := make([]int, k)
	for i, p := range picks {
		out[i] = rows[p]
	}
	return out
}

func (v *View) Table() *models.Table { return v.table }
func (v *View) Filter() Filter       { return v.filter }
func (v *View) Len() int             { return len(v.rows) }

// Rows returns the table indices in the view.
func (v *View) Rows() []int {
	out := make([]int, len(v.rows))
	copy(out, v.rows)
	return out
}

// Sampled returns the table indices of the sample.
func (v *View) Sampled() []int {
	out := make([]int, len(v.sampled))
	copy(out, v.sampled)
	return out
}

// each calls fn with the table index and a pointer to the view's private
// copy of every row.
func (v *View) each(fn func(row int, r *models.LoanRecord)) {
	for k := range v.records {
		fn(v.rows[k], &v.records[k])
	}
}

// floats collects the valid values of get over the view.
func (v *View) floats(get func(r *models.LoanRecord) sql.NullFloat64) []float64 {
	out := make([]float64, 0, len(v.records))
	for k := range v.records {
		if x := get(&v.records[k]); x.Valid {
			out = append(out, x.Float64)
		}
	}
	return out
}
