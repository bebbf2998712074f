package services

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"loan-eda/models"
	"loan-eda/utils"
)

// missingTokens are the cell values read as missing.
var missingTokens = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"}

// RawTable is the Loader output: records in source row order, the schema of
// known columns found in the header, and the header itself.
type RawTable struct {
	Path    string
	Header  []string
	Schema  models.Schema
	Records []models.LoanRecord
	Ignored []string
}

// Loader reads the delimited source file into LoanRecords. It performs no
// cleaning beyond parsing numeric cells.
type Loader struct {
	logger *utils.Logger
}

// NewLoader creates a Loader with the given logger.
func NewLoader(logger *utils.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load opens path and reads it. Every failure is a *LoadError.
func (l *Loader) Load(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Err: ErrSourceMissing}
		}
		return nil, &LoadError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}
	defer f.Close()

	return l.Read(path, f)
}

// Read parses delimited text from r; name is only used in errors and logs.
func (l *Loader) Read(name string, r io.Reader) (*RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Path: name, Err: fmt.Errorf("read: %w", err)}
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(missingTokens),
	)

	var header []string
	rows := 0
	if df.Err != nil {
		// gota rejects a file with a header and no data rows
		h, ok := headerOnly(data)
		if !ok {
			return nil, &LoadError{Path: name, Err: fmt.Errorf("%w: %v", ErrMalformedSource, df.Err)}
		}
		header = h
	} else {
		header = df.Names()
		rows = df.Nrow()
	}
	records := make([]models.LoanRecord, rows)
	present := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	unparsable := make(map[string]int)
	var ignored []string

	for _, name := range header {
		col, ok := models.LookupColumn(strings.ToLower(strings.TrimSpace(name)))
		if !ok || seen[col.Name] {
			ignored = append(ignored, name)
			continue
		}
		seen[col.Name] = true
		present = append(present, col.Name)
		if rows == 0 {
			continue
		}

		s := df.Col(name)
		for i := 0; i < s.Len(); i++ {
			e := s.Elem(i)
			if e.IsNA() {
				continue
			}
			raw := strings.TrimSpace(e.String())
			if raw == "" {
				continue
			}

			if col.Kind == models.Numeric {
				v, ok := parseNumber(raw)
				if !ok {
					unparsable[col.Name]++
					continue
				}
				*col.Number(&records[i]) = sql.NullFloat64{Float64: v, Valid: true}
				continue
			}
			*col.Text(&records[i]) = sql.NullString{String: raw, Valid: true}
		}
	}

	for _, c := range models.Columns {
		if c.Required && !seen[c.Name] {
			return nil, &LoadError{Path: name, Err: fmt.Errorf("%w: %s", ErrMissingColumn, c.Name)}
		}
	}

	for colName, n := range unparsable {
		l.logger.Warn("[loader] %d unparsable values in %s read as missing", n, colName)
	}
	if len(ignored) > 0 {
		l.logger.Debug("[loader] Ignoring %d columns outside the schema: %s",
			len(ignored), strings.Join(ignored, ", "))
	}
	l.logger.Info("[loader] Loaded %d rows x %d known columns from %s",
		len(records), len(present), name)

	return &RawTable{
		Path:    name,
		Header:  header,
		Schema:  models.NewSchema(present...),
		Records: records,
		Ignored: ignored,
	}, nil
}

// headerOnly reports the header of data when it holds exactly one
// well-formed record.
func headerOnly(data []byte) ([]string, bool) {
	recs, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(recs) != 1 || len(recs[0]) == 0 {
		return nil, false
	}
	if len(recs[0]) == 1 && strings.TrimSpace(recs[0][0]) == "" {
		return nil, false
	}
	return recs[0], true
}

// parseNumber accepts plain numbers plus currency, thousands and percent
// decorations ("$1,200", "12.5%").
func parseNumber(raw string) (float64, bool) {
	s := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
