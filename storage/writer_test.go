package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loan-eda/catalog"
	"loan-eda/models"
	"loan-eda/services"
	"loan-eda/utils"
)

var loansCSV = []string{
	"emp_title,annual_income,debt_to_income,earliest_credit_line,total_credit_limit,total_credit_utilized,tax_liens,loan_purpose,loan_amount,term,interest_rate,installment,grade,loan_status",
	"Registered Nurse,90000,18.01,2001,70795,38767,0,moving,28000,60,14.07,652.53,C,Current",
	"Truck Driver,30000,10.16,2007,25400,4997,0,debt_consolidation,21600,36,6.72,664.19,A,Charged Off",
	",40000,,2006,0,0,1,other,2000,36,17.09,71.40,D,Current",
}

func buildTable(t *testing.T) *models.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(loansCSV, "\n")+"\n"), 0o644))

	now := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := services.NewPipeline(utils.NewDiscardLogger(), services.PipelineOptions{
		Now: func() time.Time { return now },
	})
	table, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	return table
}

func column(header []string, name string) int {
	for j, h := range header {
		if h == name {
			return j
		}
	}
	return -1
}

func TestCSVWriterWritesHeaderAndRows(t *testing.T) {
	table := buildTable(t)
	path := filepath.Join(t.TempDir(), "out", "cleaned_df.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), table, nil))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	header := records[0]
	assert.Equal(t, table.Header(), header)
	assert.Less(t, column(header, "grade"), column(header, "job_category"), "source columns come first")

	credit := column(header, "earliest_credit_line")
	require.NotEqual(t, -1, credit)
	assert.Equal(t, "2001-01-01", records[1][credit])

	util := column(header, "credit_utilization")
	require.NotEqual(t, -1, util)
	assert.Empty(t, records[3][util], "missing ratio is an empty field")

	assert.Equal(t, "Unknown", records[3][column(header, "emp_title")])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSVSelectsRows(t *testing.T) {
	table := buildTable(t)
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(context.Background(), &buf, table, []int{2, 0}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	purpose := column(records[0], "loan_purpose")
	assert.Equal(t, "other", records[1][purpose])
	assert.Equal(t, "moving", records[2][purpose])
}

func TestWriteCSVStopsOnCancelledContext(t *testing.T) {
	table := buildTable(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteCSV(ctx, &bytes.Buffer{}, table, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteXLSX(t *testing.T) {
	table := buildTable(t)
	cat, err := catalog.Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(context.Background(), &buf, table, nil, cat))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(dataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, table.Header(), rows[0])
	assert.Equal(t, "Truck Driver", rows[2][column(rows[0], "emp_title")])
	assert.Equal(t, "2007-01-01", rows[2][column(rows[0], "earliest_credit_line")])

	dict, err := f.GetRows(dictionarySheet)
	require.NoError(t, err)
	require.Len(t, dict, len(table.Header())+1)
	assert.Equal(t, []string{"column", "group", "description"}, dict[0])
	for _, row := range dict[1:] {
		require.GreaterOrEqual(t, len(row), 3)
		assert.NotEmpty(t, row[2], "column %s", row[0])
	}
}

func TestXLSXWriterWithoutCatalog(t *testing.T) {
	table := buildTable(t)
	path := filepath.Join(t.TempDir(), "out", "loans.xlsx")

	w, err := NewXLSXWriter(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), table, []int{1}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{dataSheet}, f.GetSheetList())
	rows, err := f.GetRows(dataSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestXLSXWriterFailureKeepsPreviousWorkbook(t *testing.T) {
	table := buildTable(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "loans.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	w, err := NewXLSXWriter(path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Write(ctx, table, nil), context.Canceled)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, path+".tmp")
}

func TestXLSXWriterFailureLeavesNoFile(t *testing.T) {
	table := buildTable(t)
	path := filepath.Join(t.TempDir(), "loans.xlsx")

	w, err := NewXLSXWriter(path, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, w.Write(ctx, table, nil))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}

func TestCreateTableSQLTypesColumnsByKind(t *testing.T) {
	sql := createTableSQL(
		[]string{"loan_amount", "grade", "issue_month", "is_default"},
		[]models.Kind{models.Numeric, models.Categorical, models.Date, models.Flag},
	)

	assert.True(t, strings.HasPrefix(sql, `CREATE TABLE "loan_analysis"`))
	assert.Contains(t, sql, `"loan_amount" DOUBLE PRECISION`)
	assert.Contains(t, sql, `"grade" TEXT`)
	assert.Contains(t, sql, `"issue_month" DATE`)
	assert.Contains(t, sql, `"is_default" SMALLINT`)
	assert.Contains(t, sql, "row_id SERIAL PRIMARY KEY")
}

func TestInsertSQLNumbersParameters(t *testing.T) {
	sql := insertSQL([]string{"a", "b"}, 2)

	assert.Equal(t, `INSERT INTO "loan_analysis" ("a", "b") VALUES ($1,$2),($3,$4)`, sql)
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 500, batchSize(10))
	assert.Equal(t, 500, batchSize(60))
	assert.Equal(t, 200, batchSize(300))
	assert.Equal(t, 1, batchSize(100000))
	assert.Equal(t, 500, batchSize(0))
}
