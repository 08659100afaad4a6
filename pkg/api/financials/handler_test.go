package financials

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/llm"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/store"
)

func newTestHandler(t *testing.T, persist bool) (*Handler, *http.ServeMux) {
	t.Helper()
	c, err := classify.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	d := Deps{
		Classifier: c,
		Estimator:  estimate.NewEstimator(estimate.DefaultConfig(), logger.Nop()),
		Extractor:  extract.NewExtractor(extract.DefaultOptions(), logger.Nop()),
		Log:        logger.Nop(),
	}
	if persist {
		v, err := store.NewStatementVault(nil, t.TempDir())
		if err != nil {
			t.Fatalf("NewStatementVault() error = %v", err)
		}
		d.Vault = v
	}
	h := NewHandler(d)
	mux := http.NewServeMux()
	h.Routes(mux)
	return h, mux
}

func do(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
}

const totalsRecords = `[
	{"AccountName": "Total Income", "SelectedPeriod": "67,200.00"},
	{"AccountName": "Total Expense", "SelectedPeriod": "25,536.00"}
]`

func TestHandleStatement(t *testing.T) {
	_, mux := newTestHandler(t, false)

	body := `{"records": ` + totalsRecords + `, "statement_type": "cash_flow", "purchase_price": 280000}`
	rec := do(t, mux, http.MethodPost, "/api/financials/statement", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp StatementResponse
	decodeBody(t, rec, &resp)
	if resp.Revenue != 67200 || resp.Expenses != 25536 || resp.NOI != 41664 {
		t.Errorf("revenue/expenses/noi = %v/%v/%v, want 67200/25536/41664", resp.Revenue, resp.Expenses, resp.NOI)
	}
	if resp.CapRate == nil || math.Abs(*resp.CapRate-14.88) > 1e-9 {
		t.Errorf("cap rate = %v, want 14.88", resp.CapRate)
	}
	if len(resp.Statement.RawData) != 2 {
		t.Errorf("raw rows = %d, want 2", len(resp.Statement.RawData))
	}
}

func TestHandleStatement_WrappedRecords(t *testing.T) {
	_, mux := newTestHandler(t, false)

	// upstream bodies sometimes wrap the rows in an object
	body := `{"records": {"results": [{"AccountCode": "4100", "AccountName": "Rent Income", "SelectedPeriod": 1000}]}, "period_months": 1}`
	rec := do(t, mux, http.MethodPost, "/api/financials/statement", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp StatementResponse
	decodeBody(t, rec, &resp)
	if resp.Revenue != 1000 || resp.Statement.PeriodMonths != 1 {
		t.Errorf("revenue = %v, months = %d", resp.Revenue, resp.Statement.PeriodMonths)
	}
	if resp.CapRate != nil {
		t.Errorf("cap rate without a price = %v, want omitted", *resp.CapRate)
	}
}

func TestHandleStatement_BadInput(t *testing.T) {
	_, mux := newTestHandler(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"Not JSON", `{"records": `},
		{"Unknown type", `{"records": [], "statement_type": "ledger"}`},
		{"No records", `{"statement_type": "income"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/financials/statement", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}

	if rec := do(t, mux, http.MethodGet, "/api/financials/statement", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET statement status = %d, want 405", rec.Code)
	}
}

func TestHandleStatement_Assisted(t *testing.T) {
	h, mux := newTestHandler(t, false)

	mgr := llm.NewManager(llm.Config{ActiveProvider: "static"})
	provider := &llm.StaticProvider{Reply: "```json\n{\"results\": [{\"index\": 0, \"category\": \"expense-maintenance\", \"flow_type\": \"operating\"}]}\n```"}
	mgr.Register("static", provider)
	h.Assistant = classify.NewAssistant(mgr, logger.Nop())

	records := `[
		{"AccountCode": "4100", "AccountName": "Rent Income", "SelectedPeriod": "1000"},
		{"AccountName": "Snow Removal Contract", "SelectedPeriod": "500"}
	]`

	var plain StatementResponse
	decodeBody(t, do(t, mux, http.MethodPost, "/api/financials/statement", `{"records": `+records+`}`), &plain)
	if len(plain.Unplaced) != 1 || plain.Expenses != 0 {
		t.Errorf("rules only: unplaced = %v, expenses = %v", plain.Unplaced, plain.Expenses)
	}
	if len(provider.Prompts) != 0 {
		t.Errorf("assistant called without assist flag")
	}

	var assisted StatementResponse
	decodeBody(t, do(t, mux, http.MethodPost, "/api/financials/statement", `{"records": `+records+`, "assist": true}`), &assisted)
	if len(assisted.Unplaced) != 0 {
		t.Errorf("assisted unplaced = %v, want none", assisted.Unplaced)
	}
	if assisted.Expenses != 500 || assisted.NOI != 500 {
		t.Errorf("assisted expenses/noi = %v/%v, want 500/500", assisted.Expenses, assisted.NOI)
	}
	if len(provider.Prompts) != 1 {
		t.Errorf("prompts = %d, want 1", len(provider.Prompts))
	}
}

func TestHandleVariance(t *testing.T) {
	_, mux := newTestHandler(t, false)

	body := `{
		"current":  {"records": [{"AccountCode": "4100", "AccountName": "Rent Income", "SelectedPeriod": "1100"}]},
		"previous": {"records": [{"AccountCode": "4100", "AccountName": "Rent Income", "SelectedPeriod": "1000"}]}
	}`
	rec := do(t, mux, http.MethodPost, "/api/financials/variance", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp VarianceResponse
	decodeBody(t, rec, &resp)
	rent, ok := resp.Results["4100"]
	if !ok {
		t.Fatalf("results = %v, want key 4100", resp.Results)
	}
	if math.Abs(rent.VariancePercent-10) > 1e-9 || rent.Status != analysis.StatusWarning {
		t.Errorf("rent = %+v, want 10%% Warning", rent)
	}
	if resp.Thresholds != analysis.DefaultThresholds() {
		t.Errorf("thresholds = %+v", resp.Thresholds)
	}
}

const rentRollRecords = `[
	{"Unit": "101", "Status": "Occupied", "CurrentRent": "1,000.00"},
	{"Unit": "102", "Status": "Vacant-Unrented", "CurrentRent": "900.00"},
	{"Unit": "103", "Status": "Notice-Rented", "CurrentRent": "1,100.00"}
]`

func TestHandleEstimate_PersistAndFetch(t *testing.T) {
	_, mux := newTestHandler(t, true)

	body := `{"property_code": "S0010", "rent_roll": ` + rentRollRecords + `, "purchase_price": 280000, "persist": true}`
	rec := do(t, mux, http.MethodPost, "/api/financials/estimate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp EstimateResponse
	decodeBody(t, rec, &resp)
	est := resp.Outcome.Estimate
	if est == nil || est.DataCompleteness != estimate.Calculated {
		t.Fatalf("outcome = %+v, want calculated estimate", resp.Outcome)
	}
	if math.Abs(est.CapRate-5.4) > 1e-9 {
		t.Errorf("cap rate = %v, want 5.4", est.CapRate)
	}
	if resp.Entry == nil || resp.Entry.PropertyCode != "S0010" {
		t.Fatalf("entry = %+v", resp.Entry)
	}

	rec = do(t, mux, http.MethodGet, "/api/financials/statements/"+resp.Entry.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entry store.Entry
	decodeBody(t, rec, &entry)
	if entry.DataSource != estimate.SourceRentRoll {
		t.Errorf("stored data source = %s", entry.DataSource)
	}

	rec = do(t, mux, http.MethodGet, "/api/financials/statements?property=S0010", "")
	var entries []store.Entry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].ID != resp.Entry.ID {
		t.Errorf("list = %+v", entries)
	}

	rec = do(t, mux, http.MethodGet, "/api/financials/statements/latest?property=S0010&period="+estimate.PeriodRentRoll, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("latest status = %d, body %s", rec.Code, rec.Body.String())
	}
	var latest store.Entry
	decodeBody(t, rec, &latest)
	if latest.ID != resp.Entry.ID {
		t.Errorf("latest = %s, want %s", latest.ID, resp.Entry.ID)
	}
	if rec := do(t, mux, http.MethodGet, "/api/financials/statements/latest?property=S0010", ""); rec.Code != http.StatusNotFound {
		t.Errorf("latest SelectedPeriod status = %d, want 404", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/financials/statements/latest", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("latest without property status = %d, want 400", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/financials/statements/latest?property=S0010&type=ledger", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("latest with bad type status = %d, want 400", rec.Code)
	}

	if rec := do(t, mux, http.MethodGet, "/api/financials/statements/"+uuid.New().String(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/financials/statements/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestHandleEstimate_CompletePrimaryPassesThrough(t *testing.T) {
	_, mux := newTestHandler(t, false)

	body := `{"statement": {"records": ` + totalsRecords + `, "statement_type": "cash_flow"}, "rent_roll": ` + rentRollRecords + `}`
	var resp EstimateResponse
	decodeBody(t, do(t, mux, http.MethodPost, "/api/financials/estimate", body), &resp)
	if resp.Outcome.Estimate != nil || resp.Outcome.Statement == nil {
		t.Fatalf("outcome = %+v, want the primary statement", resp.Outcome)
	}
	if resp.Outcome.Completeness() != estimate.Complete {
		t.Errorf("completeness = %s", resp.Outcome.Completeness())
	}
}

func TestHandleEstimate_PersistWithoutVault(t *testing.T) {
	_, mux := newTestHandler(t, false)
	rec := do(t, mux, http.MethodPost, "/api/financials/estimate", `{"property_code": "S0010", "persist": true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/financials/statements", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("list status = %d, want 503", rec.Code)
	}
}

func TestHandleEstimate_PersistErrors(t *testing.T) {
	c, err := classify.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	dir := filepath.Join(t.TempDir(), "vault")
	v, err := store.NewStatementVault(nil, dir)
	if err != nil {
		t.Fatalf("NewStatementVault() error = %v", err)
	}
	h := NewHandler(Deps{
		Classifier: c,
		Estimator:  estimate.NewEstimator(estimate.DefaultConfig(), logger.Nop()),
		Vault:      v,
		Log:        logger.Nop(),
	})
	mux := http.NewServeMux()
	h.Routes(mux)

	noCode := `{"rent_roll": ` + rentRollRecords + `, "persist": true}`
	if rec := do(t, mux, http.MethodPost, "/api/financials/estimate", noCode); rec.Code != http.StatusBadRequest {
		t.Errorf("persist without property status = %d, want 400", rec.Code)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	body := `{"property_code": "S0010", "rent_roll": ` + rentRollRecords + `, "persist": true}`
	if rec := do(t, mux, http.MethodPost, "/api/financials/estimate", body); rec.Code != http.StatusInternalServerError {
		t.Errorf("storage failure status = %d, want 500", rec.Code)
	}
}

func TestHandleInvestmentsFeedsEstimate(t *testing.T) {
	_, mux := newTestHandler(t, false)

	sheet := "Acquisitions\nAsset ID + Name,Asset ID,Units,Purchase Price,Exp - Utilities\nS0010 228 Maple,S0010,3,\"$280,000\",\"$2,400\"\n"
	rec := do(t, mux, http.MethodPost, "/api/financials/investments?format=csv&sheet=Investments", sheet)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var inv InvestmentsResponse
	decodeBody(t, rec, &inv)
	if len(inv.Investments) != 1 || inv.Investments[0].AssetID != "S0010" || inv.Persisted {
		t.Fatalf("investments = %+v", inv)
	}
	if len(inv.Proforma) != 1 {
		t.Fatalf("proforma statements = %d, want 1", len(inv.Proforma))
	}
	if got := inv.Proforma[0].CategoryTotals[classify.CategoryExpenseUtilities]; !got.Equal(decimal.NewFromInt(2400)) {
		t.Errorf("proforma utilities = %s, want 2400", got)
	}

	// price comes from the uploaded sheet, lookup is case-insensitive
	var resp EstimateResponse
	decodeBody(t, do(t, mux, http.MethodPost, "/api/financials/estimate", `{"asset_id": "s0010", "rent_roll": `+rentRollRecords+`}`), &resp)
	if resp.Outcome.Estimate == nil || math.Abs(resp.Outcome.Estimate.CapRate-5.4) > 1e-9 {
		t.Errorf("estimate = %+v, want cap rate 5.4", resp.Outcome.Estimate)
	}

	if rec := do(t, mux, http.MethodPost, "/api/financials/investments?format=csv&persist=true", sheet); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("persist without repo status = %d, want 503", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/financials/investments?format=csv", "a,b\n1,2\n"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no header status = %d, want 422", rec.Code)
	}
}

func TestHandleTimeSeries(t *testing.T) {
	_, mux := newTestHandler(t, false)

	body := `{"from": "2025-01-01", "to": "2025-03-31", "records": [
		{"AccountCode": "4100", "AccountName": "Rent Income", "Slice00": "1,000.00", "Slice01": "1,000.00", "Slice02": "1,200.00"},
		{"AccountCode": "6210", "AccountName": "Electric", "Slice00": "100", "Slice01": "300", "Slice02": "120"}
	]}`
	rec := do(t, mux, http.MethodPost, "/api/financials/timeseries", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp TimeSeriesResponse
	decodeBody(t, rec, &resp)
	if got := strings.Join(resp.TimeSeries.Months, ","); got != "Jan 2025,Feb 2025,Mar 2025" {
		t.Errorf("months = %s", got)
	}
	if resp.Statement.PeriodMonths != 3 || resp.Statement.PeriodKey != "T12" {
		t.Errorf("trailing statement = %s over %d months", resp.Statement.PeriodKey, resp.Statement.PeriodMonths)
	}
	if resp.Analysis == nil || resp.Analysis.Revenue.Trend != analysis.TrendImproving {
		t.Errorf("analysis = %+v", resp.Analysis)
	}
	if resp.Analysis != nil && resp.Analysis.NetIncome.Total != 2680 {
		t.Errorf("net income total = %v, want 2680", resp.Analysis.NetIncome.Total)
	}

	reversed := `{"from": "2025-03-01", "to": "2025-01-01", "records": []}`
	if rec := do(t, mux, http.MethodPost, "/api/financials/timeseries", reversed); rec.Code != http.StatusBadRequest {
		t.Errorf("reversed range status = %d, want 400", rec.Code)
	}
	unbounded := `{"from": "0001-01-01", "to": "9999-12-31", "records": []}`
	if rec := do(t, mux, http.MethodPost, "/api/financials/timeseries", unbounded); rec.Code != http.StatusBadRequest {
		t.Errorf("unbounded range status = %d, want 400", rec.Code)
	}
}

func TestHandleExport(t *testing.T) {
	_, mux := newTestHandler(t, false)
	body := `{"records": ` + totalsRecords + `, "statement_type": "cash_flow", "title": "S0010 <Maple>"}`

	rec := do(t, mux, http.MethodPost, "/api/financials/export?format=html", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %s", ct)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "<table>") || !strings.Contains(html, "<title>S0010 &lt;Maple&gt;</title>") {
		t.Errorf("html export:\n%s", html)
	}

	rec = do(t, mux, http.MethodPost, "/api/financials/export", body)
	if !strings.Contains(rec.Body.String(), "$41,664.00") {
		t.Errorf("markdown export missing NOI:\n%s", rec.Body.String())
	}

	if rec := do(t, mux, http.MethodPost, "/api/financials/export?format=pdf", body); rec.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %d, want 400", rec.Code)
	}
}

func TestHandlePortfolio(t *testing.T) {
	_, mux := newTestHandler(t, false)

	workbook := `<html><body>
<table><caption>Notes</caption><tr><td>free text</td></tr></table>
<table><caption>Summary</caption>
<tr><td>Portfolio Summary</td></tr>
<tr><td>Account</td><td>S0010 - 228 Maple</td><td>S0022 - 14 Oak</td></tr>
<tr><td>Rent Income</td><td>$5,600.00</td><td>4,100</td></tr>
<tr><td>Total Operating Expense</td><td>2,128.00</td><td>1,900</td></tr>
<tr><td>Net Operating Income</td><td>3,472</td><td>2,200</td></tr>
</table></body></html>`

	var buf bytes.Buffer
	buf.WriteString(workbook)
	req := httptest.NewRequest(http.MethodPost, "/api/financials/portfolio", &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp PortfolioResponse
	decodeBody(t, rec, &resp)
	if len(resp.Properties) != 2 || len(resp.Statements) != 2 {
		t.Fatalf("properties = %d, statements = %d", len(resp.Properties), len(resp.Statements))
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "Notes" {
		t.Errorf("skipped = %v", resp.Skipped)
	}
	if noi := resp.Statements[1].NOI(); noi.IntPart() != 2200 {
		t.Errorf("oak noi = %s, want 2200", noi)
	}

	if rec := do(t, mux, http.MethodPost, "/api/financials/portfolio?format=csv", "a,b\n"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("headerless status = %d, want 422", rec.Code)
	}
}
