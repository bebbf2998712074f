package services

import (
	"math"
	"sort"
	"strconv"

	"loan-eda/models"
)

const (
	metadataTopValues    = 10
	metadataSampleValues = 10
)

// columnMetadata summarises every output column of the table over the rows
// of the view, in header order.
func (s *InsightService) columnMetadata(v *View) []models.ColumnMetadata {
	t := v.Table()
	header := t.Header()
	kinds := t.Kinds()

	cells := make([][]any, len(header))
	for _, i := range v.rows {
		row := t.Values(i)
		for j := range header {
			cells[j] = append(cells[j], row[j])
		}
	}

	out := make([]models.ColumnMetadata, len(header))
	for j, name := range header {
		out[j] = summarizeColumn(name, kinds[j], cells[j])
		out[j].Description = s.describe(name)
	}
	return out
}

func summarizeColumn(name string, kind models.Kind, cells []any) models.ColumnMetadata {
	m := models.ColumnMetadata{
		Column:       name,
		Kind:         kind.String(),
		SampleValues: []string{},
	}

	seen := make(map[string]int)
	var order []string
	var nums []float64
	for _, c := range cells {
		if c == nil {
			m.MissingCount++
			continue
		}
		label := models.FormatCell(c)
		if f, ok := numericCell(c); ok {
			nums = append(nums, f)
			label = strconv.FormatFloat(round2(f), 'f', -1, 64)
		}
		if _, ok := seen[label]; !ok {
			order = append(order, label)
		}
		seen[label]++
	}

	if len(cells) > 0 {
		m.MissingPct = round2(float64(m.MissingCount) / float64(len(cells)) * 100)
	}
	m.UniqueCount = len(seen)
	for k := 0; k < len(order) && k < metadataSampleValues; k++ {
		m.SampleValues = append(m.SampleValues, order[k])
	}

	if kind == models.Numeric || kind == models.Flag {
		if len(nums) > 0 {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, f := range nums {
				lo = math.Min(lo, f)
				hi = math.Max(hi, f)
			}
			m.Min = ptr(lo, true)
			m.Max = ptr(hi, true)
			m.Mean = ptr(mean(nums))
			m.Median = ptr(median(nums))
			m.Std = ptr(stddev(nums))
		}
		return m
	}

	m.TopValues = topCounts(seen, order, metadataTopValues)
	return m
}

func numericCell(c any) (float64, bool) {
	switch x := c.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// topCounts ranks labels by count, ties broken by first appearance.
func topCounts(counts map[string]int, order []string, limit int) []models.Count {
	out := make([]models.Count, 0, len(order))
	for _, label := range order {
		out = append(out, models.Count{Label: label, Count: counts[label]})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
