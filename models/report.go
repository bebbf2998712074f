package models

import "time"

// Count is one bar of a frequency chart.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// GroupStat is an aggregate over the rows of one group. Value is nil when
// the group has no usable values.
type GroupStat struct {
	Group string   `json:"group"`
	Count int      `json:"count"`
	Value *float64 `json:"value"`
}

// Correlation is a Pearson coefficient between two numeric columns.
type Correlation struct {
	X string   `json:"x"`
	Y string   `json:"y"`
	R *float64 `json:"r"`
}

// Point is one scatter sample.
type Point struct {
	Row   int     `json:"row"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Group string  `json:"group,omitempty"`
}

// ColumnMetadata summarises one output column.
type ColumnMetadata struct {
	Column       string   `json:"column"`
	Kind         string   `json:"kind"`
	Description  string   `json:"description"`
	MissingCount int      `json:"missing_count"`
	MissingPct   float64  `json:"missing_pct"`
	UniqueCount  int      `json:"unique_count"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Mean         *float64 `json:"mean,omitempty"`
	Median       *float64 `json:"median,omitempty"`
	Std          *float64 `json:"std,omitempty"`
	TopValues    []Count  `json:"top_values,omitempty"`
	SampleValues []string `json:"sample_values"`
}

// Overview describes the table as a whole.
type Overview struct {
	RunID             string           `json:"run_id"`
	Source            string           `json:"source"`
	BuiltAt           time.Time        `json:"built_at"`
	Description       string           `json:"description"`
	Rows              int              `json:"rows"`
	TotalRows         int              `json:"total_rows"`
	Columns           int              `json:"columns"`
	Dropped           []ColumnDrop     `json:"dropped"`
	Skipped           map[string]int   `json:"skipped"`
	CategoryFallbacks int              `json:"category_fallbacks"`
	Outliers          []OutlierStats   `json:"outliers"`
	Metadata          []ColumnMetadata `json:"metadata"`
}

// Univariate holds single-variable KPIs and distributions.
type Univariate struct {
	Rows                 int         `json:"rows"`
	Columns              int         `json:"columns"`
	AvgIncome            *float64    `json:"avg_income"`
	MedianLoan           *float64    `json:"median_loan"`
	AvgInterestRate      *float64    `json:"avg_interest_rate"`
	PctTaxLien           *float64    `json:"pct_tax_lien"`
	PctBankrupt          *float64    `json:"pct_bankrupt"`
	PctDelinquent        *float64    `json:"pct_delinquent"`
	PctHighDTI           *float64    `json:"pct_high_dti"`
	PctUtilizationOver50 *float64    `json:"pct_utilization_over_50"`
	PctRecentInquiries   *float64    `json:"pct_recent_inquiries"`
	PctZeroBalance       *float64    `json:"pct_zero_balance"`
	Purposes             []Count     `json:"purposes"`
	Homeownership        []Count     `json:"homeownership"`
	Grades               []Count     `json:"grades"`
	Terms                []Count     `json:"terms"`
	States               []Count     `json:"states"`
	EmpTitles            []Count     `json:"emp_titles"`
	JobCategories        []Count     `json:"job_categories"`
	IncomeBrackets       []Count     `json:"income_brackets"`
	DTICategories        []Count     `json:"dti_categories"`
	UtilizationBuckets   []Count     `json:"utilization_buckets"`
	MedianRateByGrade    []GroupStat `json:"median_rate_by_grade"`
	MedianRateByVerified []GroupStat `json:"median_rate_by_verified"`
	InitialListingStatus []Count     `json:"initial_listing_status"`
	DisbursementMethods  []Count     `json:"disbursement_methods"`
}

// TermComparison compares loans of one term length.
type TermComparison struct {
	Term           string   `json:"term"`
	Count          int      `json:"count"`
	MedianInterest *float64 `json:"median_interest"`
	MedianLoan     *float64 `json:"median_loan"`
	DefaultPct     *float64 `json:"default_pct"`
}

// Performance covers pricing and loan terms.
type Performance struct {
	Rows                int              `json:"rows"`
	AvgInterestRate     *float64         `json:"avg_interest_rate"`
	MedianLoan          *float64         `json:"median_loan"`
	MedianInstallment   *float64         `json:"median_installment"`
	RateByMonth         []GroupStat      `json:"rate_by_month"`
	Terms               []TermComparison `json:"terms"`
	MedianBurdenByGrade []GroupStat      `json:"median_burden_by_grade"`
	Purposes            []Count          `json:"purposes"`
	Grades              []Count          `json:"grades"`
}

// BorrowerSummary is the short form of one row, used in lists.
type BorrowerSummary struct {
	Row          int      `json:"row"`
	EmpTitle     string   `json:"emp_title"`
	State        string   `json:"state"`
	Grade        string   `json:"grade"`
	LoanPurpose  string   `json:"loan_purpose"`
	LoanAmount   *float64 `json:"loan_amount"`
	InterestRate *float64 `json:"interest_rate"`
	DebtToIncome *float64 `json:"debt_to_income"`
	Delinq2y     *float64 `json:"delinq_2y"`
}

// Risk covers default rates and risk factors.
type Risk struct {
	Rows                   int               `json:"rows"`
	DefaultPct             *float64          `json:"default_pct"`
	DefaultByGrade         []GroupStat       `json:"default_by_grade"`
	DefaultByPurpose       []GroupStat       `json:"default_by_purpose"`
	DefaultByHomeownership []GroupStat       `json:"default_by_homeownership"`
	PctTaxLien             *float64          `json:"pct_tax_lien"`
	PctBankrupt            *float64          `json:"pct_bankrupt"`
	Correlations           []Correlation     `json:"correlations"`
	HighRiskCount          int               `json:"high_risk_count"`
	HighRisk               []BorrowerSummary `json:"high_risk"`
}

// Multivariate covers relationships between variables.
type Multivariate struct {
	Rows                    int           `json:"rows"`
	SampledRows             int           `json:"sampled_rows"`
	AvgLoan                 *float64      `json:"avg_loan"`
	MedianLoan              *float64      `json:"median_loan"`
	AvgInterestRate         *float64      `json:"avg_interest_rate"`
	DefaultPct              *float64      `json:"default_pct"`
	AvgDTI                  *float64      `json:"avg_dti"`
	AvgUtilizationPct       *float64      `json:"avg_utilization_pct"`
	AvgPaymentBurdenPct     *float64      `json:"avg_payment_burden_pct"`
	RateDTICorrelation      *float64      `json:"rate_dti_correlation"`
	MedianLoanByIncome      []GroupStat   `json:"median_loan_by_income"`
	MedianRateByUtilization []GroupStat   `json:"median_rate_by_utilization"`
	MeanDelinqByUtilization []GroupStat   `json:"mean_delinq_by_utilization"`
	DefaultByGrade          []GroupStat   `json:"default_by_grade"`
	MedianLoanByGrade       []GroupStat   `json:"median_loan_by_grade"`
	MedianRateBySubGrade    []GroupStat   `json:"median_rate_by_sub_grade"`
	DefaultByPurpose        []GroupStat   `json:"default_by_purpose"`
	MedianIncomeByState     []GroupStat   `json:"median_income_by_state"`
	DefaultByTerm           []GroupStat   `json:"default_by_term"`
	MedianRateByTerm        []GroupStat   `json:"median_rate_by_term"`
	MedianLoanByJobCategory []GroupStat   `json:"median_loan_by_job_category"`
	TopCorrelations         []Correlation `json:"top_correlations"`
	IncomeVsLoan            []Point       `json:"income_vs_loan"`
}

// BorrowerProfile is one row with its derived metrics and its position
// within the view.
type BorrowerProfile struct {
	Row                  int            `json:"row"`
	Record               map[string]any `json:"record"`
	AnnualIncome         *float64       `json:"annual_income"`
	LoanAmount           *float64       `json:"loan_amount"`
	InterestRate         *float64       `json:"interest_rate"`
	PaymentBurdenPct     *float64       `json:"payment_burden_pct"`
	CreditUtilizationPct *float64       `json:"credit_utilization_pct"`
	IncomePercentile     *float64       `json:"income_percentile"`
	LoanPercentile       *float64       `json:"loan_percentile"`
	JobCategory          string         `json:"job_category"`
	IncomeBracket        string         `json:"income_bracket"`
	DTICategory          string         `json:"dti_category"`
	IsDefault            bool           `json:"is_default"`
	Grades               []Count        `json:"grades"`
}

// Report bundles the page summaries of one view.
type Report struct {
	Overview     *Overview     `json:"overview"`
	Univariate   *Univariate   `json:"univariate"`
	Performance  *Performance  `json:"performance"`
	Risk         *Risk         `json:"risk"`
	Multivariate *Multivariate `json:"multivariate"`
}
