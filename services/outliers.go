package services

import (
	"context"

	"loan-eda/models"
	"loan-eda/utils"
)

const (
	iqrFactor     = 1.5
	capPercentile = 0.99
	lowerQuartile = 0.25
	upperQuartile = 0.75
)

// OutlierHandler flags values outside the IQR fences and caps the upper tail
// at the 99th percentile. The two are independent: flags always come from the
// original value.
type OutlierHandler struct {
	logger  *utils.Logger
	workers int
}

// NewOutlierHandler creates an OutlierHandler computing up to workers columns
// at once (0 means GOMAXPROCS).
func NewOutlierHandler(logger *utils.Logger, workers int) *OutlierHandler {
	return &OutlierHandler{logger: logger, workers: workers}
}

// Apply computes stats for every numeric column of schema. Records are read,
// never modified, so the row count is unchanged.
func (h *OutlierHandler) Apply(ctx context.Context, schema models.Schema, records []models.LoanRecord) ([]models.OutlierStats, error) {
	cols := schema.NumericColumns()
	out := make([]models.OutlierStats, len(cols))

	err := utils.RunLimited(ctx, len(cols), h.workers, func(_ context.Context, i int) error {
		out[i] = columnOutliers(cols[i], records)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, s := range out {
		if s.Flagged > 0 || s.Capped > 0 {
			h.logger.Debug("[outliers] %s: %d flagged outside [%.4g, %.4g], %d capped at %.4g",
				s.Column, s.Flagged, s.Lower, s.Upper, s.Capped, s.P99)
		}
	}
	h.logger.Info("[outliers] Computed bounds for %d numeric columns", len(out))
	return out, nil
}

func columnOutliers(col models.Column, records []models.LoanRecord) models.OutlierStats {
	n := len(records)
	s := models.OutlierStats{
		Column: col.Name,
		Flags:  make([]bool, n),
		Values: make([]float64, n),
		Valid:  make([]bool, n),
	}

	observed := make([]float64, 0, n)
	for i := range records {
		if v := col.Number(&records[i]); v.Valid {
			observed = append(observed, v.Float64)
		}
	}
	if len(observed) == 0 {
		return s
	}

	sorted := sortedCopy(observed)
	s.Q1 = quantile(sorted, lowerQuartile)
	s.Q3 = quantile(sorted, upperQuartile)
	s.IQR = finite(s.Q3 - s.Q1)
	s.Lower = finite(s.Q1 - iqrFactor*s.IQR)
	s.Upper = finite(s.Q3 + iqrFactor*s.IQR)
	s.P99 = quantile(sorted, capPercentile)

	for i := range records {
		v := col.Number(&records[i])
		if !v.Valid {
			continue
		}
		if v.Float64 < s.Lower || v.Float64 > s.Upper {
			s.Flags[i] = true
			s.Flagged++
		}
		s.Valid[i] = true
		s.Values[i] = v.Float64
		if v.Float64 > s.P99 {
			s.Values[i] = s.P99
			s.Capped++
		}
	}
	return s
}
