package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
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
	"emp_title,annual_income,debt_to_income,delinq_2y,earliest_credit_line,tax_liens,loan_purpose,loan_amount,term,interest_rate,installment,grade,loan_status",
	"Registered Nurse,90000,18.01,0,2001,0,moving,28000,60,14.07,652.53,C,Current",
	"Senior Software Engineer,40000,5.04,0,1996,1,debt_consolidation,5000,36,12.61,167.54,C,Fully Paid",
	"Truck Driver,30000,10.16,0,2007,0,debt_consolidation,21600,36,6.72,664.19,A,Charged Off",
	"Store Manager,0,57.96,1,2008,0,credit_card,23000,36,14.07,786.87,B,Current",
}

func pipelineBuilder(t *testing.T, metrics *Metrics) Builder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loans.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(loansCSV, "\n")+"\n"), 0o644))

	now := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := services.NewPipeline(utils.NewDiscardLogger(), services.PipelineOptions{
		Now:     func() time.Time { return now },
		Observe: metrics.ObserveStage,
	})
	return func(ctx context.Context) (*models.Table, error) {
		return p.Run(ctx, path)
	}
}

type fixture struct {
	store   *TableStore
	metrics *Metrics
	handler http.Handler
}

func newFixture(t *testing.T, build bool) *fixture {
	t.Helper()
	logger := utils.NewDiscardLogger()
	metrics := NewMetrics()
	cat, err := catalog.Load()
	require.NoError(t, err)

	store := NewTableStore(pipelineBuilder(t, metrics), metrics, logger)
	if build {
		require.NoError(t, store.Refresh(context.Background()))
	}

	srv := New(Options{
		Store:    store,
		Insights: services.NewInsightService(logger, cat),
		Catalog:  cat,
		Metrics:  metrics,
		Logger:   logger,
		Seed:     1,
	})
	return &fixture{store: store, metrics: metrics, handler: srv.Router()}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, f.store.Current().RunID(), body["run_id"])
	assert.EqualValues(t, 4, body["rows"])
}

func TestUnavailableBeforeFirstBuild(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/api/v1/overview").Code)
}

func TestPages(t *testing.T) {
	f := newFixture(t, true)

	for _, page := range []string{"overview", "univariate", "performance", "risk", "multivariate"} {
		t.Run(page, func(t *testing.T) {
			rec := f.get(t, "/api/v1/"+page)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

			var body map[string]any
			decode(t, rec, &body)
			assert.EqualValues(t, 4, body["rows"])
		})
	}
}

func TestUnivariateFilter(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/univariate?grade=c&term=36")

	require.Equal(t, http.StatusOK, rec.Code)
	var u models.Univariate
	decode(t, rec, &u)
	assert.Equal(t, 1, u.Rows)
	assert.Equal(t, []models.Count{{Label: "C", Count: 1}}, u.Grades)
}

func TestRepeatedAndCommaSeparatedParams(t *testing.T) {
	f := newFixture(t, true)

	var a, b models.Univariate
	decode(t, f.get(t, "/api/v1/univariate?grade=A,C"), &a)
	decode(t, f.get(t, "/api/v1/univariate?grade=A&grade=C"), &b)

	assert.Equal(t, 3, a.Rows)
	assert.Equal(t, a, b)
}

func TestInvalidFilters(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		query string
		field string
	}{
		{"grade=H", "grades"},
		{"term=48", "terms"},
		{"term=long", "terms"},
		{"sample=0.01", "sample"},
		{"sample=abc", "sample"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.get(t, "/api/v1/risk?"+tt.query)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.field, body.Field)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestBorrower(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/borrowers/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.BorrowerProfile
	decode(t, rec, &p)
	assert.Equal(t, 2, p.Row)
	assert.Equal(t, "Transportation", p.JobCategory)
	assert.True(t, p.IsDefault)
	assert.Equal(t, "2007-01-01", p.Record["earliest_credit_line"])

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/borrowers/4").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/borrowers/first").Code)
}

func TestDictionary(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/dictionary")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Dataset string          `json:"dataset"`
		Columns []catalog.Entry `json:"columns"`
	}
	decode(t, rec, &body)
	assert.NotEmpty(t, body.Dataset)
	assert.NotEmpty(t, body.Columns)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/export.csv?grade=C")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), f.store.Current().RunID())

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, f.store.Current().Header(), records[0])
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/api/v1/export.xlsx")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("loans")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true)
	f.get(t, "/api/v1/overview")

	rec := f.get(t, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `loan_eda_http_requests_total{code="200",route="/api/v1/overview"} 1`)
	assert.Contains(t, body, `loan_eda_table_builds_total{result="ok"} 1`)
	assert.Contains(t, body, `loan_eda_pipeline_stage_rows{stage="features"} 4`)
	assert.Contains(t, body, "loan_eda_table_rows 4")
}

func TestRefreshKeepsPreviousTableOnFailure(t *testing.T) {
	logger := utils.NewDiscardLogger()
	metrics := NewMetrics()
	good := pipelineBuilder(t, metrics)

	fail := false
	store := NewTableStore(func(ctx context.Context) (*models.Table, error) {
		if fail {
			return nil, errors.New("source unavailable")
		}
		return good(ctx)
	}, metrics, logger)

	require.NoError(t, store.Refresh(context.Background()))
	first := store.Current()
	require.NotNil(t, first)

	require.NoError(t, store.Refresh(context.Background()))
	second := store.Current()
	assert.NotEqual(t, first.RunID(), second.RunID())

	fail = true
	assert.Error(t, store.Refresh(context.Background()))
	assert.Same(t, second, store.Current())
}

func TestStartScheduler(t *testing.T) {
	logger := utils.NewDiscardLogger()
	store := NewTableStore(pipelineBuilder(t, NewMetrics()), nil, logger)

	c, err := StartScheduler("", store, logger)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = StartScheduler("not a schedule", store, logger)
	assert.Error(t, err)

	c, err = StartScheduler("@every 1h", store, logger)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
