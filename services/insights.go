package services

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"loan-eda/catalog"
	"loan-eda/models"
	"loan-eda/utils"
)

// ErrRowOutOfRange is returned for a borrower index outside the table.
var ErrRowOutOfRange = errors.New("row out of range")

const (
	topPurposes      = 20
	topStates        = 10
	topTitles        = 15
	topRiskyPurposes = 10
	topIncomeStates  = 12
	topCorrelations  = 5
	highRiskListSize = 20
	highDTI          = 30
	highRiskDTI      = 40
	highRiskUtilPct  = 80
	utilizationOver  = 50
	recentInquiries  = 3
	monthLayout      = "2006-01"
)

// riskFactors are the numeric columns of the risk correlation matrix.
var riskFactors = []string{
	"interest_rate", "debt_to_income", "delinq_2y", "inquiries_last_12m",
	"num_open_cc_accounts", FeatureCreditUtilization, "loan_amount", "installment",
}

// derivedNumbers are the numeric derived features usable in correlations.
var derivedNumbers = []struct {
	name string
	get  func(r *models.LoanRecord) sql.NullFloat64
}{
	{FeatureCreditUtilization, func(r *models.LoanRecord) sql.NullFloat64 { return r.Derived.CreditUtilization }},
	{FeatureLoanToIncome, func(r *models.LoanRecord) sql.NullFloat64 { return r.Derived.LoanToIncome }},
	{FeatureInstallmentToIncome, func(r *models.LoanRecord) sql.NullFloat64 { return r.Derived.InstallmentToIncome }},
	{FeatureCreditAge, func(r *models.LoanRecord) sql.NullFloat64 { return r.Derived.CreditAgeYears }},
}

// InsightService computes the page summaries from a View.
type InsightService struct {
	logger  *utils.Logger
	catalog *catalog.Catalog
}

// NewInsightService creates an InsightService. cat may be nil, in which case
// columns carry no description.
func NewInsightService(logger *utils.Logger, cat *catalog.Catalog) *InsightService {
	return &InsightService{logger: logger, catalog: cat}
}

func (s *InsightService) describe(column string) string {
	if s.catalog == nil {
		return ""
	}
	return s.catalog.Describe(column)
}

// Overview describes the table and every output column.
func (s *InsightService) Overview(v *View) *models.Overview {
	t := v.Table()
	o := &models.Overview{
		RunID:             t.RunID(),
		Source:            t.Source(),
		BuiltAt:           t.BuiltAt(),
		Rows:              v.Len(),
		TotalRows:         t.Len(),
		Columns:           len(t.Header()),
		Dropped:           t.Drops(),
		Skipped:           t.Skipped(),
		CategoryFallbacks: t.CategoryFallbacks(),
		Outliers:          t.OutlierSummary(),
		Metadata:          s.columnMetadata(v),
	}
	if s.catalog != nil {
		o.Description = s.catalog.Dataset()
	}
	return o
}

// Univariate computes single-variable KPIs and distributions.
func (s *InsightService) Univariate(v *View) *models.Univariate {
	t := v.Table()
	schema := t.Schema()
	u := &models.Univariate{
		Rows:            v.Len(),
		Columns:         len(t.Header()),
		AvgIncome:       ptr(mean(v.floats(annualIncome))),
		MedianLoan:      ptr(median(v.floats(loanAmount))),
		AvgInterestRate: ptr(mean(v.floats(interestRate))),
	}

	if schema.Has("tax_liens") {
		u.PctTaxLien = v.pct(func(r *models.LoanRecord) bool { return r.Derived.HasTaxLien == 1 })
	}
	if schema.Has("public_record_bankrupt") {
		u.PctBankrupt = v.pct(func(r *models.LoanRecord) bool { return r.Derived.HasBankruptcy == 1 })
	}
	if schema.Has("delinq_2y") {
		u.PctDelinquent = v.pct(func(r *models.LoanRecord) bool { return r.Derived.HasDelinquency == 1 })
	}
	if schema.Has("debt_to_income") {
		u.PctHighDTI = v.pct(func(r *models.LoanRecord) bool { return r.DebtToIncome.Float64 > highDTI })
	}
	if schema.Has("total_credit_limit") && schema.Has("total_credit_utilized") {
		u.PctUtilizationOver50 = v.pct(func(r *models.LoanRecord) bool {
			return r.Derived.CreditUtilization.Valid && r.Derived.CreditUtilization.Float64*100 > utilizationOver
		})
	}
	if schema.Has("inquiries_last_12m") {
		u.PctRecentInquiries = v.pct(func(r *models.LoanRecord) bool { return r.InquiriesLast12m.Float64 >= recentInquiries })
	}
	if schema.Has("balance") {
		u.PctZeroBalance = v.pct(func(r *models.LoanRecord) bool { return r.Balance.Valid && r.Balance.Float64 == 0 })
	}

	u.Purposes = v.counts(loanPurpose, byCount, topPurposes)
	u.Homeownership = v.counts(homeownership, byCount, 0)
	u.Grades = v.counts(grade, byLabel, 0)
	u.Terms = v.counts(term, byLabel, 0)
	u.States = v.counts(state, byCount, topStates)
	u.EmpTitles = v.counts(empTitle, byCount, topTitles)
	u.JobCategories = orderCounts(v.counts(jobCategory, byLabel, 0), JobCategories)
	u.IncomeBrackets = orderCounts(v.counts(incomeBracket, byLabel, 0), IncomeBrackets)
	u.DTICategories = orderCounts(v.counts(dtiCategory, byLabel, 0), DTICategories)
	u.UtilizationBuckets = orderCounts(v.counts(utilizationBucket, byLabel, 0), UtilizationBuckets)
	u.MedianRateByGrade = v.groupBy(grade, number(interestRate), median)
	u.MedianRateByVerified = v.groupBy(verifiedIncome, number(interestRate), median)
	u.InitialListingStatus = v.counts(listingStatus, byCount, 0)
	u.DisbursementMethods = v.counts(disbursementMethod, byCount, 0)
	return u
}

// Performance covers pricing, terms and installments.
func (s *InsightService) Performance(v *View) *models.Performance {
	p := &models.Performance{
		Rows:                v.Len(),
		AvgInterestRate:     ptr(mean(v.floats(interestRate))),
		MedianLoan:          ptr(median(v.floats(loanAmount))),
		MedianInstallment:   ptr(median(v.floats(installment))),
		RateByMonth:         v.groupBy(issueMonth, number(interestRate), mean),
		MedianBurdenByGrade: v.groupBy(grade, number(paymentBurden), median),
		Purposes:            v.counts(loanPurpose, byCount, topPurposes),
		Grades:              v.counts(grade, byLabel, 0),
	}

	rates := indexByGroup(v.groupBy(term, number(interestRate), median))
	loans := indexByGroup(v.groupBy(term, number(loanAmount), median))
	// without loan_status every IsDefault is 0, which is not a 0% rate
	var defaults map[string]models.GroupStat
	if v.Table().Schema().Has("loan_status") {
		defaults = indexByGroup(v.groupBy(term, defaultPct, mean))
	}
	for _, c := range v.counts(term, byLabel, 0) {
		p.Terms = append(p.Terms, models.TermComparison{
			Term:           c.Label,
			Count:          c.Count,
			MedianInterest: rates[c.Label].Value,
			MedianLoan:     loans[c.Label].Value,
			DefaultPct:     defaults[c.Label].Value,
		})
	}
	return p
}

// Risk covers default rates, risk factor correlations and the high-risk list.
func (s *InsightService) Risk(v *View) *models.Risk {
	schema := v.Table().Schema()
	k := &models.Risk{Rows: v.Len()}

	if schema.Has("loan_status") {
		k.DefaultPct = v.pct(func(r *models.LoanRecord) bool { return r.Derived.IsDefault == 1 })
		k.DefaultByGrade = v.groupBy(grade, defaultPct, mean)
		k.DefaultByPurpose = topByValue(v.groupBy(loanPurpose, defaultPct, mean), topRiskyPurposes)
		k.DefaultByHomeownership = v.groupBy(homeownership, defaultPct, mean)
	}
	if schema.Has("tax_liens") {
		k.PctTaxLien = v.pct(func(r *models.LoanRecord) bool { return r.Derived.HasTaxLien == 1 })
	}
	if schema.Has("public_record_bankrupt") {
		k.PctBankrupt = v.pct(func(r *models.LoanRecord) bool { return r.Derived.HasBankruptcy == 1 })
	}

	var present []string
	for _, name := range riskFactors {
		if _, ok := numberGetter(schema, name); ok {
			present = append(present, name)
		}
	}
	k.Correlations = v.correlations(schema, present)

	var risky []models.BorrowerSummary
	v.each(func(row int, r *models.LoanRecord) {
		if highRisk(r) {
			risky = append(risky, summarizeBorrower(row, r))
		}
	})
	sort.SliceStable(risky, func(a, b int) bool {
		ra, rb := risky[a].InterestRate, risky[b].InterestRate
		if ra == nil || rb == nil {
			return ra != nil
		}
		return *ra > *rb
	})
	k.HighRiskCount = len(risky)
	if len(risky) > highRiskListSize {
		risky = risky[:highRiskListSize]
	}
	k.HighRisk = risky
	return k
}

// highRisk flags charged-off loans and borrowers with high DTI, high
// utilization or recent delinquencies.
func highRisk(r *models.LoanRecord) bool {
	d := r.Derived
	return d.IsDefault == 1 ||
		(r.DebtToIncome.Valid && r.DebtToIncome.Float64 > highRiskDTI) ||
		(d.CreditUtilization.Valid && d.CreditUtilization.Float64*100 > highRiskUtilPct) ||
		(r.Delinq2y.Valid && r.Delinq2y.Float64 > 0)
}

func summarizeBorrower(row int, r *models.LoanRecord) models.BorrowerSummary {
	return models.BorrowerSummary{
		Row:          row,
		EmpTitle:     r.EmpTitle.String,
		State:        r.State.String,
		Grade:        r.Grade.String,
		LoanPurpose:  r.LoanPurpose.String,
		LoanAmount:   nullPtr(r.LoanAmount),
		InterestRate: nullPtr(r.InterestRate),
		DebtToIncome: nullPtr(r.DebtToIncome),
		Delinq2y:     nullPtr(r.Delinq2y),
	}
}

// Multivariate covers relationships between pairs of variables.
func (s *InsightService) Multivariate(v *View) *models.Multivariate {
	schema := v.Table().Schema()
	m := &models.Multivariate{
		Rows:                v.Len(),
		SampledRows:         len(v.sampled),
		AvgLoan:             ptr(mean(v.floats(loanAmount))),
		MedianLoan:          ptr(median(v.floats(loanAmount))),
		AvgInterestRate:     ptr(mean(v.floats(interestRate))),
		AvgDTI:              ptr(mean(v.floats(debtToIncome))),
		AvgUtilizationPct:   ptr(mean(v.floats(utilizationPct))),
		AvgPaymentBurdenPct: ptr(mean(v.floats(paymentBurden))),
	}
	if schema.Has("loan_status") {
		m.DefaultPct = v.pct(func(r *models.LoanRecord) bool { return r.Derived.IsDefault == 1 })
		m.DefaultByGrade = v.groupBy(grade, defaultPct, mean)
		m.DefaultByPurpose = topByValue(v.groupBy(loanPurpose, defaultPct, mean), topRiskyPurposes)
		m.DefaultByTerm = v.groupBy(term, defaultPct, mean)
	}

	if pair := v.correlations(schema, []string{"interest_rate", "debt_to_income"}); len(pair) == 1 {
		m.RateDTICorrelation = pair[0].R
	}

	m.MedianLoanByIncome = orderGroups(v.groupBy(incomeBracket, number(loanAmount), median), IncomeBrackets)
	m.MedianRateByUtilization = orderGroups(v.groupBy(utilizationBucket, number(interestRate), median), UtilizationBuckets)
	m.MeanDelinqByUtilization = orderGroups(v.groupBy(utilizationBucket, number(delinquencies), mean), UtilizationBuckets)
	m.MedianLoanByGrade = v.groupBy(grade, number(loanAmount), median)
	m.MedianRateBySubGrade = v.groupBy(subGrade, number(interestRate), median)
	m.MedianRateByTerm = v.groupBy(term, number(interestRate), median)
	m.MedianLoanByJobCategory = sortByValue(v.groupBy(jobCategory, number(loanAmount), median))

	states := v.counts(state, byCount, topIncomeStates)
	busiest := make(map[string]bool, len(states))
	for _, c := range states {
		busiest[c.Label] = true
	}
	m.MedianIncomeByState = sortByValue(v.groupBy(func(r *models.LoanRecord) (string, bool) {
		if !r.State.Valid || !busiest[r.State.String] {
			return "", false
		}
		return r.State.String, true
	}, number(annualIncome), median))

	var numeric []string
	for _, c := range schema.NumericColumns() {
		numeric = append(numeric, c.Name)
	}
	for _, d := range derivedNumbers {
		numeric = append(numeric, d.name)
	}
	m.TopCorrelations = strongest(v.correlations(schema, numeric), topCorrelations)

	t := v.Table()
	for _, i := range v.sampled {
		r := t.Row(i)
		if r.AnnualIncome.Valid && r.LoanAmount.Valid {
			m.IncomeVsLoan = append(m.IncomeVsLoan, models.Point{
				Row: i, X: r.AnnualIncome.Float64, Y: r.LoanAmount.Float64, Group: r.Grade.String,
			})
		}
	}
	return m
}

// Borrower returns the profile of table row i, compared against the view.
func (s *InsightService) Borrower(v *View, i int) (*models.BorrowerProfile, error) {
	t := v.Table()
	if i < 0 || i >= t.Len() {
		return nil, fmt.Errorf("borrower %d of %d: %w", i, t.Len(), ErrRowOutOfRange)
	}
	r := t.Row(i)
	d := r.Derived

	record := make(map[string]any, len(t.Header()))
	values := t.Values(i)
	for j, name := range t.Header() {
		if ts, ok := values[j].(time.Time); ok {
			record[name] = ts.Format(models.DateLayout)
			continue
		}
		record[name] = values[j]
	}

	p := &models.BorrowerProfile{
		Row:                  i,
		Record:               record,
		AnnualIncome:         nullPtr(r.AnnualIncome),
		LoanAmount:           nullPtr(r.LoanAmount),
		InterestRate:         nullPtr(r.InterestRate),
		PaymentBurdenPct:     nullPtr(d.PaymentBurdenPct),
		CreditUtilizationPct: nullPtr(utilizationPct(&r)),
		JobCategory:          d.JobCategory,
		IncomeBracket:        d.IncomeBracket,
		DTICategory:          d.DTICategory,
		IsDefault:            d.IsDefault == 1,
		Grades:               v.counts(grade, byLabel, 0),
	}
	if r.AnnualIncome.Valid {
		p.IncomePercentile = percentileOf(v.floats(annualIncome), r.AnnualIncome.Float64)
	}
	if r.LoanAmount.Valid {
		p.LoanPercentile = percentileOf(v.floats(loanAmount), r.LoanAmount.Float64)
	}
	return p, nil
}

// percentileOf is the share of vals at or below x, in percent.
func percentileOf(vals []float64, x float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	n := 0
	for _, f := range vals {
		if f <= x {
			n++
		}
	}
	return ptr(float64(n)/float64(len(vals))*100, true)
}

// Report bundles every page summary of one view.
func (s *InsightService) Report(v *View) *models.Report {
	return &models.Report{
		Overview:     s.Overview(v),
		Univariate:   s.Univariate(v),
		Performance:  s.Performance(v),
		Risk:         s.Risk(v),
		Multivariate: s.Multivariate(v),
	}
}

// --- record accessors ---

func annualIncome(r *models.LoanRecord) sql.NullFloat64  { return r.AnnualIncome }
func loanAmount(r *models.LoanRecord) sql.NullFloat64    { return r.LoanAmount }
func interestRate(r *models.LoanRecord) sql.NullFloat64  { return r.InterestRate }
func installment(r *models.LoanRecord) sql.NullFloat64   { return r.Installment }
func debtToIncome(r *models.LoanRecord) sql.NullFloat64  { return r.DebtToIncome }
func delinquencies(r *models.LoanRecord) sql.NullFloat64 { return r.Delinq2y }
func paymentBurden(r *models.LoanRecord) sql.NullFloat64 { return r.Derived.PaymentBurdenPct }

func utilizationPct(r *models.LoanRecord) sql.NullFloat64 {
	return scale(r.Derived.CreditUtilization, 100)
}

var (
	loanPurpose        = text(func(r *models.LoanRecord) sql.NullString { return r.LoanPurpose })
	homeownership      = text(func(r *models.LoanRecord) sql.NullString { return r.Homeownership })
	state              = text(func(r *models.LoanRecord) sql.NullString { return r.State })
	verifiedIncome     = text(func(r *models.LoanRecord) sql.NullString { return r.VerifiedIncome })
	listingStatus      = text(func(r *models.LoanRecord) sql.NullString { return r.InitialListingStatus })
	disbursementMethod = text(func(r *models.LoanRecord) sql.NullString { return r.DisbursementMethod })
	subGrade           = text(func(r *models.LoanRecord) sql.NullString { return r.SubGrade })
)

func nullPtr(v sql.NullFloat64) *float64 { return ptr(v.Float64, v.Valid) }

type groupKey func(r *models.LoanRecord) (string, bool)

type groupValue func(r *models.LoanRecord) (float64, bool)

type aggregate func(vals []float64) (float64, bool)

func text(get func(r *models.LoanRecord) sql.NullString) groupKey {
	return func(r *models.LoanRecord) (string, bool) {
		v := get(r)
		return v.String, v.Valid && v.String != ""
	}
}

func number(get func(r *models.LoanRecord) sql.NullFloat64) groupValue {
	return func(r *models.LoanRecord) (float64, bool) {
		v := get(r)
		return v.Float64, v.Valid
	}
}

func grade(r *models.LoanRecord) (string, bool) {
	return r.Grade.String, r.Grade.Valid && r.Grade.String != ""
}

func term(r *models.LoanRecord) (string, bool) {
	if !r.Term.Valid {
		return "", false
	}
	return strconv.FormatFloat(r.Term.Float64, 'f', -1, 64), true
}

func issueMonth(r *models.LoanRecord) (string, bool) {
	if !r.IssueDate.Valid {
		return "", false
	}
	return r.IssueDate.Time.Format(monthLayout), true
}

// empTitle groups titles case-insensitively; missing titles are counted
// under the fill label.
func empTitle(r *models.LoanRecord) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(r.EmpTitle.String))
	if t == "" {
		t = strings.ToLower(UnknownLabel)
	}
	return t, true
}

func jobCategory(r *models.LoanRecord) (string, bool) {
	return r.Derived.JobCategory, r.Derived.JobCategory != ""
}

func incomeBracket(r *models.LoanRecord) (string, bool) {
	return r.Derived.IncomeBracket, r.Derived.IncomeBracket != ""
}

func dtiCategory(r *models.LoanRecord) (string, bool) {
	return r.Derived.DTICategory, r.Derived.DTICategory != ""
}

func utilizationBucket(r *models.LoanRecord) (string, bool) {
	return r.Derived.UtilizationBucket, r.Derived.UtilizationBucket != ""
}

func defaultPct(r *models.LoanRecord) (float64, bool) {
	return float64(r.Derived.IsDefault) * 100, true
}

// --- view aggregations ---

type countOrder int

const (
	byCount countOrder = iota
	byLabel
)

// pct is the share of rows matching pred, in percent; nil on an empty view.
func (v *View) pct(pred func(r *models.LoanRecord) bool) *float64 {
	if len(v.records) == 0 {
		return nil
	}
	n := 0
	for k := range v.records {
		if pred(&v.records[k]) {
			n++
		}
	}
	return ptr(float64(n)/float64(len(v.records))*100, true)
}

// counts tallies key over the view. byCount sorts by descending count with
// ties by label; limit <= 0 keeps everything.
func (v *View) counts(key groupKey, order countOrder, limit int) []models.Count {
	tally := make(map[string]int)
	for k := range v.records {
		if label, ok := key(&v.records[k]); ok {
			tally[label]++
		}
	}
	out := make([]models.Count, 0, len(tally))
	for label, n := range tally {
		out = append(out, models.Count{Label: label, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if order == byCount && out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Label < out[b].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// groupBy aggregates value per key, sorted by group label. Count is the
// number of rows in the group, including rows without a value.
func (v *View) groupBy(key groupKey, value groupValue, agg aggregate) []models.GroupStat {
	type bucket struct {
		n    int
		vals []float64
	}
	buckets := make(map[string]*bucket)
	for k := range v.records {
		r := &v.records[k]
		label, ok := key(r)
		if !ok {
			continue
		}
		b := buckets[label]
		if b == nil {
			b = &bucket{}
			buckets[label] = b
		}
		b.n++
		if x, ok := value(r); ok {
			b.vals = append(b.vals, x)
		}
	}
	out := make([]models.GroupStat, 0, len(buckets))
	for label, b := range buckets {
		out = append(out, models.GroupStat{Group: label, Count: b.n, Value: ptr(agg(b.vals))})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Group < out[b].Group })
	return out
}

// correlations computes Pearson r for every pair of names over rows where
// both values are present.
func (v *View) correlations(schema models.Schema, names []string) []models.Correlation {
	getters := make([]func(r *models.LoanRecord) sql.NullFloat64, 0, len(names))
	var kept []string
	for _, name := range names {
		if get, ok := numberGetter(schema, name); ok {
			getters = append(getters, get)
			kept = append(kept, name)
		}
	}

	var out []models.Correlation
	for a := 0; a < len(kept); a++ {
		for b := a + 1; b < len(kept); b++ {
			var xs, ys []float64
			for k := range v.records {
				x, y := getters[a](&v.records[k]), getters[b](&v.records[k])
				if x.Valid && y.Valid {
					xs = append(xs, x.Float64)
					ys = append(ys, y.Float64)
				}
			}
			out = append(out, models.Correlation{X: kept[a], Y: kept[b], R: ptr(pearson(xs, ys))})
		}
	}
	return out
}

// numberGetter resolves a numeric source column present in schema or a
// derived numeric feature.
func numberGetter(schema models.Schema, name string) (func(r *models.LoanRecord) sql.NullFloat64, bool) {
	for _, d := range derivedNumbers {
		if d.name == name {
			return d.get, true
		}
	}
	if kind, ok := schema.KindOf(name); !ok || kind != models.Numeric {
		return nil, false
	}
	col, ok := models.LookupColumn(name)
	if !ok || col.Number == nil {
		return nil, false
	}
	return func(r *models.LoanRecord) sql.NullFloat64 { return *col.Number(r) }, true
}

// strongest keeps the n correlations with the largest |r|.
func strongest(corrs []models.Correlation, n int) []models.Correlation {
	var out []models.Correlation
	for _, c := range corrs {
		if c.R != nil {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return math.Abs(*out[a].R) > math.Abs(*out[b].R) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func indexByGroup(stats []models.GroupStat) map[string]models.GroupStat {
	out := make(map[string]models.GroupStat, len(stats))
	for _, s := range stats {
		out[s.Group] = s
	}
	return out
}

// sortByValue orders groups by descending value, missing values last.
func sortByValue(stats []models.GroupStat) []models.GroupStat {
	sort.SliceStable(stats, func(a, b int) bool {
		va, vb := stats[a].Value, stats[b].Value
		if va == nil || vb == nil {
			return va != nil
		}
		return *va > *vb
	})
	return stats
}

func topByValue(stats []models.GroupStat, n int) []models.GroupStat {
	stats = sortByValue(stats)
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// orderGroups sorts groups by their position in labels; unlisted groups go
// last in label order.
func orderGroups(stats []models.GroupStat, labels []string) []models.GroupStat {
	rank := labelRank(labels)
	sort.SliceStable(stats, func(a, b int) bool { return rank(stats[a].Group) < rank(stats[b].Group) })
	return stats
}

func orderCounts(counts []models.Count, labels []string) []models.Count {
	rank := labelRank(labels)
	sort.SliceStable(counts, func(a, b int) bool { return rank(counts[a].Label) < rank(counts[b].Label) })
	return counts
}

func labelRank(labels []string) func(string) int {
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	return func(l string) int {
		if p, ok := pos[l]; ok {
			return p
		}
		return len(labels)
	}
}

// --- terminal report ---

// Print writes a coloured summary of r to w.
func (s *InsightService) Print(w io.Writer, r *models.Report) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)
	o, u, k, p := r.Overview, r.Univariate, r.Risk, r.Performance

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 LOAN DATASET INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run            : %s\n", o.RunID)
	fmt.Fprintf(w, "  Source         : %s\n", o.Source)
	fmt.Fprintf(w, "  Rows           : \033[1m%d\033[0m\n", o.Rows)
	fmt.Fprintf(w, "  Output columns : \033[1m%d\033[0m\n", o.Columns)
	if len(o.Dropped) == 0 {
		fmt.Fprintf(w, "  Dropped        : none\n")
	}
	for _, d := range o.Dropped {
		fmt.Fprintf(w, "  Dropped        : \033[1;31m%s\033[0m (%.1f%% missing)\n", d.Column, d.MissingFraction*100)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Key Figures\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Avg annual income  : \033[1;32m%s\033[0m\n", money(u.AvgIncome))
	fmt.Fprintf(w, "  Median loan amount : \033[1;32m%s\033[0m\n", money(u.MedianLoan))
	fmt.Fprintf(w, "  Median installment : \033[1;32m%s\033[0m\n", money(p.MedianInstallment))
	fmt.Fprintf(w, "  Avg interest rate  : \033[1;32m%s\033[0m\n", percent(u.AvgInterestRate))
	fmt.Fprintf(w, "  Default rate       : \033[1;31m%s\033[0m\n", percent(k.DefaultPct))
	fmt.Fprintf(w, "  With tax lien      : %s\n", percent(u.PctTaxLien))
	fmt.Fprintf(w, "  With bankruptcy    : %s\n", percent(u.PctBankrupt))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Default Rate by Grade\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(k.DefaultByGrade) == 0 {
		fmt.Fprintf(w, "  No grade data\n")
	}
	for _, g := range k.DefaultByGrade {
		fmt.Fprintf(w, "  %-4s %-32s %s (%d loans)\n", g.Group, bar(g.Value), percent(g.Value), g.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Job Categories\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, c := range u.JobCategories {
		fmt.Fprintf(w, "  %-16s %d\n", c.Label, c.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Highest-rate High-risk Borrowers\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(k.HighRisk) == 0 {
		fmt.Fprintf(w, "  No high-risk borrowers found\n")
	}
	for i, b := range k.HighRisk {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-30s %-3s %s\n", i+1, truncate(b.EmpTitle, 28), b.Grade, percent(b.InterestRate))
	}
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func money(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.0f", *v)
}

func percent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// bar draws one block per 3 percentage points.
func bar(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.Repeat("█", int(math.Min(*v, 100)/3))
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
