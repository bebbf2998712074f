package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loan-eda/models"
	"loan-eda/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

func num(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func str(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// writeCSV writes lines joined by newlines to a temp file and returns its path.
func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func rawTable(columns []string, records []models.LoanRecord) *RawTable {
	return &RawTable{
		Path:    "test",
		Header:  columns,
		Schema:  models.NewSchema(columns...),
		Records: records,
	}
}

// sampleCSV is a small but complete source file: months_since_last_delinq is
// 5/6 missing and must be dropped, emp_title has one gap.
var sampleCSV = []string{
	"emp_title,emp_length,state,homeownership,annual_income,verified_income,debt_to_income,delinq_2y,months_since_last_delinq,earliest_credit_line,inquiries_last_12m,total_credit_limit,total_credit_utilized,num_collections_last_12m,tax_liens,public_record_bankrupt,loan_purpose,application_type,loan_amount,term,interest_rate,installment,grade,sub_grade,issue_month,loan_status,balance,extra_column",
	"Registered Nurse,3,NJ,MORTGAGE,90000,Verified,18.01,0,,2001,6,70795,38767,0,0,0,moving,individual,28000,60,14.07,652.53,C,C3,Mar-2018,Current,27015.86,x",
	"Senior Software Engineer,10,HI,RENT,40000,Not Verified,5.04,0,,1996,1,28800,4321,0,1,0,debt_consolidation,individual,5000,36,12.61,167.54,C,C1,Feb-2018,Fully Paid,4651.37,x",
	",3,WI,RENT,40000,Source Verified,21.15,0,28,2006,4,24193,16000,0,0,1,other,individual,2000,36,17.09,71.40,D,D1,Feb-2018,Current,1824.63,x",
	"Truck Driver,1,PA,RENT,30000,Not Verified,10.16,0,,2007,0,25400,4997,0,0,0,debt_consolidation,individual,21600,36,6.72,664.19,A,A3,Jan-2018,Charged Off,18853.26,x",
	"Store Manager,10,CA,RENT,0,Verified,57.96,1,,2008,7,69839,52722,1,0,0,credit_card,joint,23000,36,14.07,786.87,C,C3,Mar-2018,Current,21430.15,x",
	"Teacher,,KY,OWN,120000,Verified,,0,,bad-date,2,0,0,0,0,0,home_improvement,individual,10000,60,9.92,212.13,B,B2,Jan-2018,Fully Paid,9500.00,x",
}

func buildTable(t *testing.T, lines ...string) *models.Table {
	t.Helper()
	p := NewPipeline(newTestLogger(), PipelineOptions{Now: fixedClock(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))})
	table, err := p.Run(context.Background(), writeCSV(t, lines...))
	require.NoError(t, err)
	return table
}

// generatedCSV returns n synthetic rows cycling through grades A-G and both
// terms.
func generatedCSV(n int) []string {
	lines := []string{"loan_amount,annual_income,grade,term,interest_rate,loan_status,loan_purpose"}
	for i := 0; i < n; i++ {
		status := "Current"
		if i%10 == 0 {
			status = "Charged Off"
		}
		term := 36
		if i%3 == 0 {
			term = 60
		}
		lines = append(lines, fmt.Sprintf("%d,%d,%c,%d,%.2f,%s,%s",
			1000+i*100, 30000+i*500, 'A'+rune(i%7), term, 5+float64(i%20), status, "credit_card"))
	}
	return lines
}
