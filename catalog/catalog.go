// Package catalog holds the data dictionary shipped with the binary.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed descriptions.yaml
var descriptionsYAML []byte

const (
	outlierSuffix = "_is_outlier"
	cappedSuffix  = "_capped"
)

// Entry describes one column.
type Entry struct {
	Column      string `yaml:"column" json:"column"`
	Group       string `yaml:"group" json:"group"`
	Description string `yaml:"description" json:"description"`
}

type document struct {
	Dataset string  `yaml:"dataset"`
	Columns []Entry `yaml:"columns"`
}

// Catalog maps column names to their descriptions.
type Catalog struct {
	dataset string
	entries map[string]Entry
	order   []string
}

// Load parses the embedded dictionary.
func Load() (*Catalog, error) {
	return Parse(descriptionsYAML)
}

// Parse reads a dictionary document. Duplicate columns are an error.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	c := &Catalog{
		dataset: strings.TrimSpace(doc.Dataset),
		entries: make(map[string]Entry, len(doc.Columns)),
	}
	for _, e := range doc.Columns {
		if e.Column == "" {
			return nil, fmt.Errorf("catalog: entry without column name")
		}
		if _, dup := c.entries[e.Column]; dup {
			return nil, fmt.Errorf("catalog: duplicate column %q", e.Column)
		}
		c.entries[e.Column] = e
		c.order = append(c.order, e.Column)
	}
	return c, nil
}

// Dataset returns the dataset-level description.
func (c *Catalog) Dataset() string { return c.dataset }

// Lookup returns the entry of column. Outlier columns derived from a known
// source column are described in terms of it.
func (c *Catalog) Lookup(column string) (Entry, bool) {
	if e, ok := c.entries[column]; ok {
		return e, true
	}
	if src, ok := strings.CutSuffix(column, outlierSuffix); ok {
		if _, known := c.entries[src]; known {
			return Entry{Column: column, Group: "derived",
				Description: fmt.Sprintf("1 if %s lies outside the 1.5 IQR fences.", src)}, true
		}
	}
	if src, ok := strings.CutSuffix(column, cappedSuffix); ok {
		if _, known := c.entries[src]; known {
			return Entry{Column: column, Group: "derived",
				Description: fmt.Sprintf("%s capped at its 99th percentile.", src)}, true
		}
	}
	return Entry{}, false
}

// Describe returns the description of column, or a placeholder when the
// dictionary has none.
func (c *Catalog) Describe(column string) string {
	if e, ok := c.Lookup(column); ok {
		return e.Description
	}
	return fmt.Sprintf("No description available for column '%s'.", column)
}

// Entries lists the dictionary in document order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name])
	}
	return out
}
