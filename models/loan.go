package models

import (
	"database/sql"
)

// Kind is the semantic type of a source column.
type Kind int

const (
	Categorical Kind = iota
	Numeric
	Date
	// Flag columns are derived 0/1 integers.
	Flag
)

func (k Kind) String() string {
	switch k {
	case Categorical:
		return "categorical"
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	case Flag:
		return "flag"
	}
	return "unknown"
}

// LoanRecord is one loan application. Every source field is nullable until the
// Cleaner has run; date fields keep the raw text alongside the parsed value.
type LoanRecord struct {
	// Borrower
	EmpTitle                sql.NullString
	ExperienceYears         sql.NullFloat64
	State                   sql.NullString
	Homeownership           sql.NullString
	AnnualIncome            sql.NullFloat64
	VerifiedIncome          sql.NullString
	DebtToIncome            sql.NullFloat64
	AnnualIncomeJoint       sql.NullFloat64
	VerificationIncomeJoint sql.NullString
	DebtToIncomeJoint       sql.NullFloat64

	// Credit history
	Delinq2y                  sql.NullFloat64
	MonthsSinceLastDelinq     sql.NullFloat64
	MonthsSince90dLate        sql.NullFloat64
	EarliestCreditLine        sql.NullString
	EarliestCreditDate        sql.NullTime
	InquiriesLast12m          sql.NullFloat64
	TotalCreditLines          sql.NullFloat64
	OpenCreditLines           sql.NullFloat64
	TotalCreditLimit          sql.NullFloat64
	TotalCreditUtilized       sql.NullFloat64
	NumCollectionsLast12m     sql.NullFloat64
	TotalCollectionAmountEver sql.NullFloat64
	CurrentAccountsDelinq     sql.NullFloat64
	NumOpenCCAccounts         sql.NullFloat64
	NumCCCarryingBalance      sql.NullFloat64
	TaxLiens                  sql.NullFloat64
	PublicRecordBankrupt      sql.NullFloat64

	// Loan terms
	LoanPurpose     sql.NullString
	ApplicationType sql.NullString
	LoanAmount      sql.NullFloat64
	Term            sql.NullFloat64
	InterestRate    sql.NullFloat64
	Installment     sql.NullFloat64
	Grade           sql.NullString
	SubGrade        sql.NullString
	IssueMonth      sql.NullString
	IssueDate       sql.NullTime

	// Outcome and servicing
	LoanStatus           sql.NullString
	InitialListingStatus sql.NullString
	DisbursementMethod   sql.NullString
	Balance              sql.NullFloat64
	PaidTotal            sql.NullFloat64

	Derived Derived
}

// Derived holds the features computed by the pipeline. None of them is ever
// read from the source file.
type Derived struct {
	JobCategory string

	HasTaxLien     int
	HasBankruptcy  int
	HasCollections int
	HasDelinquency int

	CreditUtilization   sql.NullFloat64
	LoanToIncome        sql.NullFloat64
	InstallmentToIncome sql.NullFloat64
	PaymentBurdenPct    sql.NullFloat64
	CreditAgeYears      sql.NullFloat64

	IncomeBracket     string
	DTICategory       string
	UtilizationBucket string
	IsDefault         int
}

// Column describes one source column of the explicit schema.
type Column struct {
	Name     string
	Kind     Kind
	Aliases  []string
	Required bool

	// Exactly one accessor group is set, matching Kind.
	Text   func(r *LoanRecord) *sql.NullString
	Number func(r *LoanRecord) *sql.NullFloat64
	Parsed func(r *LoanRecord) *sql.NullTime
}

func text(name string, f func(r *LoanRecord) *sql.NullString) Column {
	return Column{Name: name, Kind: Categorical, Text: f}
}

func number(name string, f func(r *LoanRecord) *sql.NullFloat64) Column {
	return Column{Name: name, Kind: Numeric, Number: f}
}

func date(name string, raw func(r *LoanRecord) *sql.NullString, parsed func(r *LoanRecord) *sql.NullTime) Column {
	return Column{Name: name, Kind: Date, Text: raw, Parsed: parsed}
}

func required(c Column) Column {
	c.Required = true
	return c
}

func aliased(c Column, aliases ...string) Column {
	c.Aliases = aliases
	return c
}

// Columns is the source schema in canonical (source file) order.
var Columns = []Column{
	text("emp_title", func(r *LoanRecord) *sql.NullString { return &r.EmpTitle }),
	aliased(number("experience_years", func(r *LoanRecord) *sql.NullFloat64 { return &r.ExperienceYears }), "emp_length"),
	text("state", func(r *LoanRecord) *sql.NullString { return &r.State }),
	text("homeownership", func(r *LoanRecord) *sql.NullString { return &r.Homeownership }),
	required(number("annual_income", func(r *LoanRecord) *sql.NullFloat64 { return &r.AnnualIncome })),
	text("verified_income", func(r *LoanRecord) *sql.NullString { return &r.VerifiedIncome }),
	number("debt_to_income", func(r *LoanRecord) *sql.NullFloat64 { return &r.DebtToIncome }),
	number("annual_income_joint", func(r *LoanRecord) *sql.NullFloat64 { return &r.AnnualIncomeJoint }),
	text("verification_income_joint", func(r *LoanRecord) *sql.NullString { return &r.VerificationIncomeJoint }),
	number("debt_to_income_joint", func(r *LoanRecord) *sql.NullFloat64 { return &r.DebtToIncomeJoint }),

	number("delinq_2y", func(r *LoanRecord) *sql.NullFloat64 { return &r.Delinq2y }),
	number("months_since_last_delinq", func(r *LoanRecord) *sql.NullFloat64 { return &r.MonthsSinceLastDelinq }),
	number("months_since_90d_late", func(r *LoanRecord) *sql.NullFloat64 { return &r.MonthsSince90dLate }),
	date("earliest_credit_line",
		func(r *LoanRecord) *sql.NullString { return &r.EarliestCreditLine },
		func(r *LoanRecord) *sql.NullTime { return &r.EarliestCreditDate }),
	number("inquiries_last_12m", func(r *LoanRecord) *sql.NullFloat64 { return &r.InquiriesLast12m }),
	number("total_credit_lines", func(r *LoanRecord) *sql.NullFloat64 { return &r.TotalCreditLines }),
	number("open_credit_lines", func(r *LoanRecord) *sql.NullFloat64 { return &r.OpenCreditLines }),
	number("total_credit_limit", func(r *LoanRecord) *sql.NullFloat64 { return &r.TotalCreditLimit }),
	number("total_credit_utilized", func(r *LoanRecord) *sql.NullFloat64 { return &r.TotalCreditUtilized }),
	number("num_collections_last_12m", func(r *LoanRecord) *sql.NullFloat64 { return &r.NumCollectionsLast12m }),
	number("total_collection_amount_ever", func(r *LoanRecord) *sql.NullFloat64 { return &r.TotalCollectionAmountEver }),
	number("current_accounts_delinq", func(r *LoanRecord) *sql.NullFloat64 { return &r.CurrentAccountsDelinq }),
	number("num_open_cc_accounts", func(r *LoanRecord) *sql.NullFloat64 { return &r.NumOpenCCAccounts }),
	number("num_cc_carrying_balance", func(r *LoanRecord) *sql.NullFloat64 { return &r.NumCCCarryingBalance }),
	number("tax_liens", func(r *LoanRecord) *sql.NullFloat64 { return &r.TaxLiens }),
	number("public_record_bankrupt", func(r *LoanRecord) *sql.NullFloat64 { return &r.PublicRecordBankrupt }),

	text("loan_purpose", func(r *LoanRecord) *sql.NullString { return &r.LoanPurpose }),
	text("application_type", func(r *LoanRecord) *sql.NullString { return &r.ApplicationType }),
	required(number("loan_amount", func(r *LoanRecord) *sql.NullFloat64 { return &r.LoanAmount })),
	number("term", func(r *LoanRecord) *sql.NullFloat64 { return &r.Term }),
	number("interest_rate", func(r *LoanRecord) *sql.NullFloat64 { return &r.InterestRate }),
	number("installment", func(r *LoanRecord) *sql.NullFloat64 { return &r.Installment }),
	required(text("grade", func(r *LoanRecord) *sql.NullString { return &r.Grade })),
	text("sub_grade", func(r *LoanRecord) *sql.NullString { return &r.SubGrade }),
	date("issue_month",
		func(r *LoanRecord) *sql.NullString { return &r.IssueMonth },
		func(r *LoanRecord) *sql.NullTime { return &r.IssueDate }),

	text("loan_status", func(r *LoanRecord) *sql.NullString { return &r.LoanStatus }),
	text("initial_listing_status", func(r *LoanRecord) *sql.NullString { return &r.InitialListingStatus }),
	text("disbursement_method", func(r *LoanRecord) *sql.NullString { return &r.DisbursementMethod }),
	number("balance", func(r *LoanRecord) *sql.NullFloat64 { return &r.Balance }),
	number("paid_total", func(r *LoanRecord) *sql.NullFloat64 { return &r.PaidTotal }),
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns)*2)
	for i, c := range Columns {
		idx[c.Name] = i
		for _, a := range c.Aliases {
			idx[a] = i
		}
	}
	return idx
}()

// LookupColumn resolves a column name or alias to its schema definition.
func LookupColumn(name string) (Column, bool) {
	i, ok := columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return Columns[i], true
}
