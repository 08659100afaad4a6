package financials

import (
	"encoding/json"
	"net/http"
	"strings"

	"portfolio_financials/pkg/api/middleware"
	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/report"
	"portfolio_financials/pkg/core/statement"
	"portfolio_financials/pkg/core/timeseries"
)

// =============================================================================
// TIME SERIES
// =============================================================================

// TimeSeriesRequest carries a monthly report (0-based Slice00..Slice11
// columns) and the date range Slice00 starts at.
type TimeSeriesRequest struct {
	Records json.RawMessage `json:"records"`
	From    string          `json:"from"`
	To      string          `json:"to"`
}

// TimeSeriesResponse is the series, its trailing statement and its profile.
type TimeSeriesResponse struct {
	TimeSeries timeseries.TimeSeries        `json:"time_series"`
	Statement  statement.Statement          `json:"statement"`
	Analysis   *analysis.TimeSeriesAnalysis `json:"analysis"`
}

// HandleTimeSeries rebuilds month-by-month account amounts.
func (h *Handler) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	var req TimeSeriesRequest
	if !decode(w, r, &req) {
		return
	}

	dr, err := timeseries.ParseDateRange(req.From, req.To)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if dr.Months() == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "date range covers no months")
		return
	}
	records, err := extract.ParseRecords(req.Records)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "records: "+err.Error())
		return
	}

	ts := timeseries.Build(records, dr, h.Classifier)
	profile, err := h.engine.Analyze(ts)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, TimeSeriesResponse{
		TimeSeries: ts,
		Statement:  statement.FromTimeSeries(ts, h.Classifier),
		Analysis:   profile,
	})
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportRequest is a statement request plus a document title.
type ExportRequest struct {
	StatementRequest
	Title string `json:"title,omitempty"`
}

// HandleExport renders a statement as markdown, or as an HTML page with
// ?format=html.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decode(w, r, &req) {
		return
	}

	s, _, err := h.build(r.Context(), req.StatementRequest)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	title := req.Title
	if title == "" {
		title = "Statement"
	}
	md := report.Statement(title, s)

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
	case "html":
		fragment, err := report.HTML(md)
		if err != nil {
			h.Log.Error().Err(err).Msg("export render failed")
			middleware.WriteError(w, http.StatusInternalServerError, "failed to render statement")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(report.Page(title, fragment)))
	default:
		middleware.WriteError(w, http.StatusBadRequest, "unsupported export format")
	}
}

// =============================================================================
// WORKBOOK UPLOADS
// =============================================================================

// loadWorkbook reads the raw request body as a workbook. ?format picks the
// loader (html by default), ?sheet names a CSV sheet.
func loadWorkbook(w http.ResponseWriter, r *http.Request) ([]*extract.Grid, bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = extract.FormatHTML
	}
	name := r.URL.Query().Get("sheet")
	if name == "" {
		name = "Sheet1"
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	grids, err := extract.LoadWorkbook(body, format, name)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return grids, true
}

// PortfolioResponse carries per-property values and the income statement
// each one yields.
type PortfolioResponse struct {
	Properties []extract.PropertyValues `json:"properties"`
	Statements []statement.Statement    `json:"statements"`
	Skipped    []string                 `json:"skipped_sheets,omitempty"`
}

// HandlePortfolio extracts the target rows of every property column in an
// uploaded portfolio workbook.
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	grids, ok := loadWorkbook(w, r)
	if !ok {
		return
	}

	values, skipped := h.Extractor.ExtractPortfolio(grids)
	if len(values) == 0 {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "no property header found in any sheet")
		return
	}

	resp := PortfolioResponse{
		Properties: values,
		Statements: make([]statement.Statement, 0, len(values)),
		Skipped:    skipped,
	}
	for _, pv := range values {
		resp.Statements = append(resp.Statements, statement.FromPropertyValues(pv, statement.PeriodSelected, h.Classifier))
	}

	l := logger.FromContext(r.Context())
	l.Info().Int("properties", len(values)).Int("skipped", len(skipped)).Msg("portfolio extracted")
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// InvestmentsResponse lists the parsed master sheet and the proforma
// statement of each row.
type InvestmentsResponse struct {
	Investments []extract.Investment  `json:"investments"`
	Proforma    []statement.Statement `json:"proforma_statements"`
	Persisted   bool                  `json:"persisted"`
}

// HandleInvestments parses the acquisitions master sheet. Purchase prices
// are kept for later estimates; ?persist=true also upserts them.
func (h *Handler) HandleInvestments(w http.ResponseWriter, r *http.Request) {
	grids, ok := loadWorkbook(w, r)
	if !ok {
		return
	}

	var investments []extract.Investment
	found := false
	for _, g := range grids {
		if investments, found = extract.ParseInvestments(g, h.HeaderWindow); found {
			break
		}
	}
	if !found {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "no Asset ID header found in any sheet")
		return
	}

	h.mu.Lock()
	for id, inv := range extract.IndexInvestments(investments) {
		h.purchases[strings.ToUpper(id)] = inv
	}
	h.mu.Unlock()

	resp := InvestmentsResponse{
		Investments: investments,
		Proforma:    make([]statement.Statement, 0, len(investments)),
	}
	for _, inv := range investments {
		resp.Proforma = append(resp.Proforma, statement.FromInvestment(inv))
	}
	if r.URL.Query().Get("persist") == "true" {
		if h.Investments == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "persistence is not configured")
			return
		}
		if err := h.Investments.SaveAll(r.Context(), investments); err != nil {
			h.Log.Error().Err(err).Msg("failed to persist investments")
			middleware.WriteError(w, http.StatusInternalServerError, "failed to persist investments")
			return
		}
		resp.Persisted = true
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
