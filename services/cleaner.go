package services

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"loan-eda/models"
	"loan-eda/utils"
)

// UnknownLabel fills missing categorical values.
const UnknownLabel = "Unknown"

// DefaultMissingThreshold is the missing fraction above which a column is
// dropped.
const DefaultMissingThreshold = 0.40

var dateLayouts = []string{
	"Jan-2006",
	"January-2006",
	"Jan 2006",
	"January 2006",
	"2006-01",
	"2006-01-02",
	"2006/01/02",
	"01/2006",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// CleanResult is the Cleaner output. Records has exactly as many rows as the
// input.
type CleanResult struct {
	Schema  models.Schema
	Records []models.LoanRecord
	Drops   []models.ColumnDrop
}

// Cleaner drops sparse columns, normalizes dates and fills missing values.
type Cleaner struct {
	logger    *utils.Logger
	threshold float64
}

// NewCleaner creates a Cleaner. threshold is the missing fraction above which
// a column is dropped; values outside [0, 1] fall back to the default.
func NewCleaner(logger *utils.Logger, threshold float64) *Cleaner {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultMissingThreshold
	}
	return &Cleaner{logger: logger, threshold: threshold}
}

// Clean runs column drop, date normalization, categorical fill, numeric fill
// and date fill, in that order. The input table is not modified.
func (c *Cleaner) Clean(raw *RawTable) *CleanResult {
	records := make([]models.LoanRecord, len(raw.Records))
	copy(records, raw.Records)

	res := &CleanResult{Schema: raw.Schema, Records: records}

	c.dropSparseColumns(res)
	c.normalizeDates(res)
	c.fillCategorical(res)
	c.fillNumeric(res)
	c.fillDates(res)

	c.logger.Info("[cleaner] Cleaned %d rows: %d columns kept, %d dropped",
		len(res.Records), res.Schema.Len(), len(res.Drops))
	return res
}

func (c *Cleaner) drop(res *CleanResult, col models.Column, frac float64, reason string) {
	res.Schema = res.Schema.Without(col.Name)
	for i := range res.Records {
		clearColumn(col, &res.Records[i])
	}
	res.Drops = append(res.Drops, models.ColumnDrop{
		Column:          col.Name,
		MissingFraction: frac,
		Reason:          reason,
	})
	c.logger.Warn("[cleaner] Dropping column %s: %s", col.Name, reason)
}

func (c *Cleaner) dropSparseColumns(res *CleanResult) {
	n := len(res.Records)
	if n == 0 {
		return
	}
	for _, col := range res.Schema.Columns() {
		missing := 0
		for i := range res.Records {
			if isMissing(col, &res.Records[i]) {
				missing++
			}
		}
		frac := float64(missing) / float64(n)
		if frac > c.threshold {
			c.drop(res, col, frac, fmt.Sprintf("%.1f%% missing exceeds %.1f%% threshold",
				frac*100, c.threshold*100))
		}
	}
}

func (c *Cleaner) normalizeDates(res *CleanResult) {
	for _, col := range res.Schema.Columns() {
		if col.Kind != models.Date {
			continue
		}
		parsed, failed := 0, 0
		for i := range res.Records {
			r := &res.Records[i]
			raw := col.Text(r)
			if !raw.Valid {
				continue
			}
			t, ok := parseDate(raw.String)
			if !ok {
				failed++
				continue
			}
			*col.Parsed(r) = sql.NullTime{Time: t, Valid: true}
			parsed++
		}

		switch {
		case parsed == 0 && len(res.Records) > 0:
			res.Schema = res.Schema.WithKind(col.Name, models.Categorical)
			c.logger.Warn("[cleaner] No value of %s parses as a date, treating it as categorical", col.Name)
		case failed > 0:
			c.logger.Warn("[cleaner] %d unparsable dates in %s read as missing", failed, col.Name)
		}
	}
}

func (c *Cleaner) fillCategorical(res *CleanResult) {
	for _, col := range res.Schema.Columns() {
		if col.Kind != models.Categorical {
			continue
		}
		filled := 0
		for i := range res.Records {
			v := col.Text(&res.Records[i])
			s := normaliseText(v.String)
			if !v.Valid || s == "" {
				s = UnknownLabel
				filled++
			}
			*v = sql.NullString{String: s, Valid: true}
		}
		if filled > 0 {
			c.logger.Debug("[cleaner] Filled %d missing %s values with %q", filled, col.Name, UnknownLabel)
		}
	}
}

func (c *Cleaner) fillNumeric(res *CleanResult) {
	for _, col := range res.Schema.Columns() {
		if col.Kind != models.Numeric {
			continue
		}
		var observed []float64
		for i := range res.Records {
			if v := col.Number(&res.Records[i]); v.Valid {
				observed = append(observed, v.Float64)
			}
		}
		if len(observed) == len(res.Records) {
			continue
		}

		m, ok := median(observed)
		if !ok {
			c.drop(res, col, 1, "no observed values to compute a median")
			continue
		}
		for i := range res.Records {
			if v := col.Number(&res.Records[i]); !v.Valid {
				*v = sql.NullFloat64{Float64: m, Valid: true}
			}
		}
		c.logger.Debug("[cleaner] Filled %d missing %s values with median %.4g",
			len(res.Records)-len(observed), col.Name, m)
	}
}

func (c *Cleaner) fillDates(res *CleanResult) {
	for _, col := range res.Schema.Columns() {
		if col.Kind != models.Date {
			continue
		}
		var observed []float64
		for i := range res.Records {
			if v := col.Parsed(&res.Records[i]); v.Valid {
				observed = append(observed, float64(v.Time.Unix()))
			}
		}
		m, ok := median(observed)
		if !ok || len(observed) == len(res.Records) {
			continue
		}
		fill := time.Unix(int64(m), 0).UTC().Truncate(24 * time.Hour)
		for i := range res.Records {
			if v := col.Parsed(&res.Records[i]); !v.Valid {
				*v = sql.NullTime{Time: fill, Valid: true}
			}
		}
		c.logger.Debug("[cleaner] Filled %d missing %s dates with median %s",
			len(res.Records)-len(observed), col.Name, fill.Format(models.DateLayout))
	}
}

func isMissing(col models.Column, r *models.LoanRecord) bool {
	if col.Number != nil {
		return !col.Number(r).Valid
	}
	return !col.Text(r).Valid
}

func clearColumn(col models.Column, r *models.LoanRecord) {
	if col.Number != nil {
		*col.Number(r) = sql.NullFloat64{}
	}
	if col.Text != nil {
		*col.Text(r) = sql.NullString{}
	}
	if col.Parsed != nil {
		*col.Parsed(r) = sql.NullTime{}
	}
}

// parseDate accepts the month and day layouts seen in loan exports, plus a
// bare (possibly float-rendered) year such as "2001" or "2001.0".
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if y, err := strconv.ParseFloat(s, 64); err == nil && y == math.Trunc(y) && y >= 1900 && y <= 2100 {
		return time.Date(int(y), time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
