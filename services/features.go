package services

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"loan-eda/models"
	"loan-eda/utils"
)

// Derived feature names, as they appear in the output and in skip counts.
const (
	FeatureCreditUtilization   = "credit_utilization"
	FeatureLoanToIncome        = "loan_to_income"
	FeatureInstallmentToIncome = "installment_to_income"
	FeatureCreditAge           = "credit_age_years"
)

const daysPerYear = 365.25

// band is a right-closed interval (previous upper, upper].
type band struct {
	upper float64
	label string
}

var incomeBands = []band{
	{40_000, "Low"},
	{75_000, "Mid"},
	{150_000, "High"},
	{math.Inf(1), "Very High"},
}

var dtiBands = []band{
	{20, "Low"},
	{30, "Moderate"},
	{40, "High"},
	{math.Inf(1), "Very High"},
}

// utilizationBands are in percent.
var utilizationBands = []band{
	{10, "0-10%"},
	{30, "10-30%"},
	{50, "30-50%"},
	{70, "50-70%"},
	{100, "70-100%"},
	{math.Inf(1), "100%+"},
}

func bandLabels(bands []band) []string {
	out := make([]string, 0, len(bands)+1)
	for _, b := range bands {
		out = append(out, b.label)
	}
	return append(out, UnknownLabel)
}

// Ordered labels of the binned features, Unknown last.
var (
	IncomeBrackets     = bandLabels(incomeBands)
	DTICategories      = bandLabels(dtiBands)
	UtilizationBuckets = bandLabels(utilizationBands)
)

func bandOf(v sql.NullFloat64, bands []band) string {
	if !v.Valid {
		return UnknownLabel
	}
	for _, b := range bands {
		if v.Float64 <= b.upper {
			return b.label
		}
	}
	return bands[len(bands)-1].label
}

// ratio divides num by den; a missing operand or a zero denominator gives a
// missing result.
func ratio(num, den sql.NullFloat64) sql.NullFloat64 {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return sql.NullFloat64{}
	}
	v := num.Float64 / den.Float64
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func flag(v sql.NullFloat64) int {
	if v.Valid && v.Float64 > 0 {
		return 1
	}
	return 0
}

func scale(v sql.NullFloat64, k float64) sql.NullFloat64 {
	if !v.Valid {
		return v
	}
	x := v.Float64 * k
	if math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

// isDefault reports whether a loan status denotes a charge-off or default.
func isDefault(status string) bool {
	s := strings.ToLower(status)
	return strings.Contains(s, "charged") || strings.Contains(s, "default")
}

// FeatureDeriver computes ratio metrics, binary flags and bins per record.
type FeatureDeriver struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewFeatureDeriver creates a FeatureDeriver. now supplies the reference date
// for credit age; nil means time.Now.
func NewFeatureDeriver(logger *utils.Logger, now func() time.Time) *FeatureDeriver {
	if now == nil {
		now = time.Now
	}
	return &FeatureDeriver{logger: logger, now: now}
}

// Apply fills Derived on every record and returns, per ratio feature, how
// many records were left missing.
func (d *FeatureDeriver) Apply(records []models.LoanRecord) map[string]int {
	ref := d.now().UTC()
	skipped := map[string]int{
		FeatureCreditUtilization:   0,
		FeatureLoanToIncome:        0,
		FeatureInstallmentToIncome: 0,
		FeatureCreditAge:           0,
	}

	for i := range records {
		r := &records[i]
		f := &r.Derived

		f.HasTaxLien = flag(r.TaxLiens)
		f.HasBankruptcy = flag(r.PublicRecordBankrupt)
		f.HasCollections = flag(r.NumCollectionsLast12m)
		f.HasDelinquency = flag(r.Delinq2y)

		f.CreditUtilization = ratio(r.TotalCreditUtilized, r.TotalCreditLimit)
		f.LoanToIncome = ratio(r.LoanAmount, r.AnnualIncome)
		f.InstallmentToIncome = ratio(r.Installment, scale(r.AnnualIncome, 1.0/12))
		f.PaymentBurdenPct = scale(f.InstallmentToIncome, 100)
		f.CreditAgeYears = creditAge(r.EarliestCreditDate, ref)

		f.IncomeBracket = bandOf(r.AnnualIncome, incomeBands)
		f.DTICategory = bandOf(r.DebtToIncome, dtiBands)
		f.UtilizationBucket = bandOf(scale(f.CreditUtilization, 100), utilizationBands)

		f.IsDefault = 0
		if r.LoanStatus.Valid && isDefault(r.LoanStatus.String) {
			f.IsDefault = 1
		}

		if !f.CreditUtilization.Valid {
			skipped[FeatureCreditUtilization]++
		}
		if !f.LoanToIncome.Valid {
			skipped[FeatureLoanToIncome]++
		}
		if !f.InstallmentToIncome.Valid {
			skipped[FeatureInstallmentToIncome]++
		}
		if !f.CreditAgeYears.Valid {
			skipped[FeatureCreditAge]++
		}
	}

	for name, n := range skipped {
		if n > 0 {
			d.logger.Info("[features] %s left missing for %d of %d records", name, n, len(records))
		}
	}
	return skipped
}

func creditAge(earliest sql.NullTime, ref time.Time) sql.NullFloat64 {
	if !earliest.Valid {
		return sql.NullFloat64{}
	}
	days := ref.Sub(earliest.Time).Hours() / 24
	return sql.NullFloat64{Float64: days / daysPerYear, Valid: true}
}
