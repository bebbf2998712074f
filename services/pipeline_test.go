package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestPipelineRun(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []string
	)
	p := NewPipeline(newTestLogger(), PipelineOptions{
		Now: fixedClock(refDate),
		Observe: func(stage string, _ time.Duration, rows int) {
			mu.Lock()
			defer mu.Unlock()
			stages = append(stages, stage)
			assert.Equal(t, 6, rows)
		},
	})

	table, err := p.Run(context.Background(), writeCSV(t, sampleCSV...))
	require.NoError(t, err)

	assert.NotEmpty(t, table.RunID())
	assert.Equal(t, refDate, table.BuiltAt())
	assert.Equal(t, 6, table.Len())
	assert.Equal(t, []string{StageLoad, StageClean, StageCategorize, StageOutliers, StageFeatures}, stages)

	drops := table.Drops()
	require.Len(t, drops, 1)
	assert.Equal(t, "months_since_last_delinq", drops[0].Column)

	header := table.Header()
	assert.Equal(t, -1, indexOf(header, "months_since_last_delinq"))
	assert.Equal(t, -1, indexOf(header, "extra_column"))
	for _, name := range []string{
		"job_category", "has_tax_lien", "credit_utilization", "loan_to_income",
		"installment_to_income", "payment_burden_pct", "credit_age_years", "income_bracket",
		"dti_category", "utilization_bucket", "is_default", "loan_amount_is_outlier", "loan_amount_capped",
	} {
		assert.NotEqualf(t, -1, indexOf(header, name), "missing output column %s", name)
	}
	assert.Less(t, indexOf(header, "balance"), indexOf(header, "job_category"), "source columns come first")

	row := table.Values(3)
	assert.Equal(t, CategoryTransportation, row[indexOf(header, "job_category")])
	assert.Equal(t, 1, row[indexOf(header, "is_default")])
	assert.Equal(t, "Low", row[indexOf(header, "income_bracket")])

	teacher := table.Row(5)
	assert.Equal(t, CategoryEducation, teacher.Derived.JobCategory)
	assert.False(t, teacher.Derived.CreditUtilization.Valid)
	assert.True(t, teacher.Derived.CreditAgeYears.Valid)

	skipped := table.Skipped()
	assert.Equal(t, 1, skipped[FeatureCreditUtilization])
	assert.Equal(t, 1, skipped[FeatureLoanToIncome])
	assert.Equal(t, 1, table.CategoryFallbacks())
}

func TestPipelineRowCountsMatchAcrossOutputs(t *testing.T) {
	p := NewPipeline(newTestLogger(), PipelineOptions{Now: fixedClock(refDate)})

	table, err := p.Run(context.Background(), writeCSV(t, sampleCSV...))
	require.NoError(t, err)

	header := table.Header()
	assert.Len(t, table.Kinds(), len(header))
	for i := 0; i < table.Len(); i++ {
		assert.Len(t, table.Strings(i), len(header))
	}
	for _, o := range table.OutlierSummary() {
		assert.Len(t, o.Flags, table.Len())
	}
}

func TestPipelineLoadError(t *testing.T) {
	p := NewPipeline(newTestLogger(), PipelineOptions{})

	_, err := p.Run(context.Background(), "/nonexistent/loans.csv")
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestPipelineRunIDsDiffer(t *testing.T) {
	p := NewPipeline(newTestLogger(), PipelineOptions{Now: fixedClock(refDate)})
	path := writeCSV(t, sampleCSV...)

	a, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID(), b.RunID())
	assert.Equal(t, a.Header(), b.Header())
}

func TestPipelineHeaderOnlyFileBuildsEmptyTable(t *testing.T) {
	p := NewPipeline(newTestLogger(), PipelineOptions{Now: fixedClock(refDate)})

	table, err := p.Run(context.Background(), writeCSV(t,
		"loan_amount,annual_income,grade,term,interest_rate,loan_status,earliest_credit_line"))
	require.NoError(t, err)

	assert.Zero(t, table.Len())
	assert.Empty(t, table.Drops(), "missing fraction of an empty column is 0")
	header := table.Header()
	assert.NotEqual(t, -1, indexOf(header, "loan_amount"))
	assert.NotEqual(t, -1, indexOf(header, "is_default"))
	for _, o := range table.OutlierSummary() {
		assert.Empty(t, o.Flags)
	}
}
