package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-eda/models"
)

var refDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func derive(records ...models.LoanRecord) ([]models.LoanRecord, map[string]int) {
	skipped := NewFeatureDeriver(newTestLogger(), fixedClock(refDate)).Apply(records)
	return records, skipped
}

func TestFeatureRatios(t *testing.T) {
	records, skipped := derive(models.LoanRecord{
		TotalCreditUtilized: num(5000),
		TotalCreditLimit:    num(10000),
		LoanAmount:          num(15000),
		AnnualIncome:        num(60000),
		Installment:         num(500),
	})

	d := records[0].Derived
	assert.Equal(t, 0.5, d.CreditUtilization.Float64)
	assert.Equal(t, 0.25, d.LoanToIncome.Float64)
	assert.InDelta(t, 0.1, d.InstallmentToIncome.Float64, 1e-12)
	assert.InDelta(t, 10.0, d.PaymentBurdenPct.Float64, 1e-9)
	assert.Zero(t, skipped[FeatureCreditUtilization])
}

func TestFeatureRatiosWithZeroOrMissingDenominator(t *testing.T) {
	records, skipped := derive(
		models.LoanRecord{TotalCreditUtilized: num(5000), TotalCreditLimit: num(0), LoanAmount: num(1000), AnnualIncome: num(0), Installment: num(50)},
		models.LoanRecord{TotalCreditUtilized: num(5000), LoanAmount: num(1000), Installment: num(50)},
	)

	for _, r := range records {
		assert.False(t, r.Derived.CreditUtilization.Valid)
		assert.False(t, r.Derived.LoanToIncome.Valid)
		assert.False(t, r.Derived.InstallmentToIncome.Valid)
		assert.False(t, r.Derived.PaymentBurdenPct.Valid)
		assert.Equal(t, UnknownLabel, r.Derived.UtilizationBucket)
	}
	assert.Equal(t, 2, skipped[FeatureCreditUtilization])
	assert.Equal(t, 2, skipped[FeatureLoanToIncome])
	assert.Equal(t, 2, skipped[FeatureInstallmentToIncome])
}

func TestFeatureCreditAge(t *testing.T) {
	records, skipped := derive(
		models.LoanRecord{EarliestCreditDate: sql.NullTime{Time: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), Valid: true}},
		models.LoanRecord{},
	)

	require.True(t, records[0].Derived.CreditAgeYears.Valid)
	assert.InDelta(t, 20.0, records[0].Derived.CreditAgeYears.Float64, 1e-9)
	assert.False(t, records[1].Derived.CreditAgeYears.Valid)
	assert.Equal(t, 1, skipped[FeatureCreditAge])
}

func TestFeatureFlags(t *testing.T) {
	records, _ := derive(
		models.LoanRecord{TaxLiens: num(2), PublicRecordBankrupt: num(0), NumCollectionsLast12m: num(1), Delinq2y: num(0)},
		models.LoanRecord{TaxLiens: num(0), PublicRecordBankrupt: num(1), Delinq2y: num(3)},
	)

	assert.Equal(t, 1, records[0].Derived.HasTaxLien)
	assert.Equal(t, 0, records[0].Derived.HasBankruptcy)
	assert.Equal(t, 1, records[0].Derived.HasCollections)
	assert.Equal(t, 0, records[0].Derived.HasDelinquency)

	assert.Equal(t, 0, records[1].Derived.HasTaxLien)
	assert.Equal(t, 1, records[1].Derived.HasBankruptcy)
	assert.Equal(t, 0, records[1].Derived.HasCollections)
	assert.Equal(t, 1, records[1].Derived.HasDelinquency)
}

func TestIncomeBrackets(t *testing.T) {
	tests := []struct {
		income float64
		want   string
	}{
		{0, "Low"},
		{40000, "Low"},
		{40000.01, "Mid"},
		{75000, "Mid"},
		{150000, "High"},
		{150001, "Very High"},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, bandOf(num(tt.income), incomeBands), "income %v", tt.income)
	}
	assert.Equal(t, UnknownLabel, bandOf(sql.NullFloat64{}, incomeBands))
}

func TestDTICategories(t *testing.T) {
	tests := []struct {
		dti  float64
		want string
	}{
		{5, "Low"},
		{20, "Low"},
		{20.5, "Moderate"},
		{30, "Moderate"},
		{40, "High"},
		{57.96, "Very High"},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, bandOf(num(tt.dti), dtiBands), "dti %v", tt.dti)
	}
}

func TestUtilizationBuckets(t *testing.T) {
	records, _ := derive(
		models.LoanRecord{TotalCreditUtilized: num(500), TotalCreditLimit: num(10000)},
		models.LoanRecord{TotalCreditUtilized: num(1000), TotalCreditLimit: num(10000)},
		models.LoanRecord{TotalCreditUtilized: num(6000), TotalCreditLimit: num(10000)},
		models.LoanRecord{TotalCreditUtilized: num(10000), TotalCreditLimit: num(10000)},
		models.LoanRecord{TotalCreditUtilized: num(12000), TotalCreditLimit: num(10000)},
	)

	want := []string{"0-10%", "0-10%", "50-70%", "70-100%", "100%+"}
	for i, r := range records {
		assert.Equalf(t, want[i], r.Derived.UtilizationBucket, "row %d", i)
	}
}

func TestIsDefault(t *testing.T) {
	records, _ := derive(
		models.LoanRecord{LoanStatus: str("Charged Off")},
		models.LoanRecord{LoanStatus: str("Default")},
		models.LoanRecord{LoanStatus: str("Current")},
		models.LoanRecord{LoanStatus: str("Fully Paid")},
		models.LoanRecord{},
	)

	got := make([]int, len(records))
	for i, r := range records {
		got[i] = r.Derived.IsDefault
	}
	assert.Equal(t, []int{1, 1, 0, 0, 0}, got)
}

func TestBinnedLabelsEndWithUnknown(t *testing.T) {
	for _, labels := range [][]string{IncomeBrackets, DTICategories, UtilizationBuckets} {
		assert.Equal(t, UnknownLabel, labels[len(labels)-1])
	}
	assert.Equal(t, []string{"Low", "Mid", "High", "Very High", UnknownLabel}, IncomeBrackets)
}
