// Package financials exposes statement extraction, time-series
// reconstruction, variance analysis and fallback estimation over HTTP.
package financials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"portfolio_financials/pkg/api/middleware"
	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/statement"
	"portfolio_financials/pkg/core/store"
)

// maxBodyBytes caps uploads; portfolio workbooks run a few MB.
const maxBodyBytes = 32 << 20

// Deps are the components the routes call into. Assistant, Vault and
// Investments are optional.
type Deps struct {
	Classifier   *classify.Classifier
	Assistant    *classify.Assistant
	Estimator    *estimate.Estimator
	Extractor    *extract.Extractor
	Thresholds   analysis.Thresholds
	HeaderWindow int
	Vault        *store.StatementVault
	Investments  *store.InvestmentRepo
	Log          zerolog.Logger
}

// Handler holds dependencies for the financials endpoints.
type Handler struct {
	Deps

	engine *analysis.Engine

	mu        sync.RWMutex
	purchases map[string]extract.Investment
}

// NewHandler creates a new financials handler.
func NewHandler(d Deps) *Handler {
	if d.HeaderWindow <= 0 {
		d.HeaderWindow = extract.DefaultOptions().HeaderWindow
	}
	if d.Thresholds.Low == 0 && d.Thresholds.Medium == 0 {
		d.Thresholds = analysis.DefaultThresholds()
	}
	d.Log = logger.Component(d.Log, "api")
	return &Handler{
		Deps:      d,
		engine:    analysis.NewEngine(d.Thresholds),
		purchases: make(map[string]extract.Investment),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/financials/statement", h.HandleStatement)
	mux.HandleFunc("POST /api/financials/timeseries", h.HandleTimeSeries)
	mux.HandleFunc("POST /api/financials/variance", h.HandleVariance)
	mux.HandleFunc("POST /api/financials/estimate", h.HandleEstimate)
	mux.HandleFunc("POST /api/financials/export", h.HandleExport)
	mux.HandleFunc("POST /api/financials/portfolio", h.HandlePortfolio)
	mux.HandleFunc("POST /api/financials/investments", h.HandleInvestments)
	mux.HandleFunc("GET /api/financials/statements", h.HandleListStatements)
	mux.HandleFunc("GET /api/financials/statements/latest", h.HandleLatestStatement)
	mux.HandleFunc("GET /api/financials/statements/{id}", h.HandleGetStatement)
}

// =============================================================================
// REQUESTS
// =============================================================================

// StatementRequest carries an upstream report body and what to build from it.
type StatementRequest struct {
	// Records is the upstream body as received: an array of rows or an object
	// wrapping one. Slightly malformed JSON is repaired.
	Records       json.RawMessage `json:"records"`
	StatementType string          `json:"statement_type"`
	PeriodKey     string          `json:"period_key,omitempty"`
	PeriodMonths  int             `json:"period_months,omitempty"`
	PurchasePrice float64         `json:"purchase_price,omitempty"`
	// Assist sends accounts the rules leave unclassified to the LLM.
	Assist bool `json:"assist,omitempty"`
}

// StatementResponse is a statement plus its headline figures.
type StatementResponse struct {
	Statement statement.Statement  `json:"statement"`
	Revenue   float64              `json:"revenue"`
	Expenses  float64              `json:"expenses"`
	NOI       float64              `json:"noi"`
	CapRate   *float64             `json:"cap_rate,omitempty"`
	Unplaced  []statement.LineItem `json:"unplaced,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// build parses and assembles one statement request.
func (h *Handler) build(ctx context.Context, req StatementRequest) (statement.Statement, classify.Labeler, error) {
	t := statement.TypeIncome
	if req.StatementType != "" {
		parsed, err := statement.ParseType(req.StatementType)
		if err != nil {
			return statement.Statement{}, nil, err
		}
		t = parsed
	}
	periodKey := req.PeriodKey
	if periodKey == "" {
		periodKey = statement.PeriodSelected
	}

	if len(bytes.TrimSpace(req.Records)) == 0 {
		return statement.Statement{}, nil, fmt.Errorf("records are required")
	}
	records, err := extract.ParseRecords(req.Records)
	if err != nil {
		return statement.Statement{}, nil, fmt.Errorf("records: %w", err)
	}

	labeler := h.labeler(ctx, records, req.Assist)
	s := statement.ExtractStatement(records, t, periodKey, labeler)
	if req.PeriodMonths > 0 {
		s = s.WithPeriodMonths(req.PeriodMonths)
	}
	return s, labeler, nil
}

// labeler returns the rule classifier, or an LLM overlay on top of it when
// assist is requested and an assistant is configured. A failed assistant
// call degrades to the rules.
func (h *Handler) labeler(ctx context.Context, records []extract.Record, assist bool) classify.Labeler {
	if !assist || h.Assistant == nil {
		return h.Classifier
	}
	accounts := make([]classify.Account, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, classify.Account{Code: r.AccountCode(), Name: r.AccountName()})
	}
	overlay, err := h.Assistant.Overlay(ctx, h.Classifier, accounts)
	if err != nil {
		l := logger.FromContext(ctx)
		l.Warn().Err(err).Msg("assisted classification failed, using rules only")
	}
	return overlay
}

func respond(s statement.Statement, c classify.Labeler, price float64) StatementResponse {
	resp := StatementResponse{
		Statement: s,
		Revenue:   s.Revenue().InexactFloat64(),
		Expenses:  s.Expenses().InexactFloat64(),
		NOI:       s.NOI().InexactFloat64(),
		Unplaced:  s.Unplaced(c),
	}
	if price > 0 {
		rate := s.CapRate(price)
		resp.CapRate = &rate
	}
	return resp
}

// =============================================================================
// STATEMENTS
// =============================================================================

// HandleStatement assembles one statement from upstream records.
func (h *Handler) HandleStatement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if !decode(w, r, &req) {
		return
	}

	s, labeler, err := h.build(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, respond(s, labeler, req.PurchasePrice))
}

// VarianceRequest compares two periods of the same report.
type VarianceRequest struct {
	Current  StatementRequest `json:"current"`
	Previous StatementRequest `json:"previous"`
}

// VarianceResponse maps account keys (and the total:* keys) to results.
type VarianceResponse struct {
	Thresholds analysis.Thresholds                `json:"thresholds"`
	Results    map[string]analysis.VarianceResult `json:"results"`
}

// HandleVariance compares two statements account by account.
func (h *Handler) HandleVariance(w http.ResponseWriter, r *http.Request) {
	var req VarianceRequest
	if !decode(w, r, &req) {
		return
	}

	current, _, err := h.build(r.Context(), req.Current)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "current: "+err.Error())
		return
	}
	previous, _, err := h.build(r.Context(), req.Previous)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "previous: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, VarianceResponse{
		Thresholds: h.Thresholds,
		Results:    statement.CompareVariance(current, previous, h.Thresholds),
	})
}

// =============================================================================
// ESTIMATE
// =============================================================================

// EstimateRequest carries the primary report (optional) and the rent roll the
// estimator falls back to.
type EstimateRequest struct {
	PropertyCode  string            `json:"property_code"`
	AssetID       string            `json:"asset_id,omitempty"`
	Statement     *StatementRequest `json:"statement,omitempty"`
	RentRoll      json.RawMessage   `json:"rent_roll,omitempty"`
	PurchasePrice float64           `json:"purchase_price,omitempty"`
	Persist       bool              `json:"persist,omitempty"`
}

// EstimateResponse is the outcome plus its stored entry when persisted.
type EstimateResponse struct {
	Outcome estimate.Outcome `json:"outcome"`
	Entry   *store.Entry     `json:"entry,omitempty"`
}

// HandleEstimate returns the primary statement when it is complete and an
// estimate otherwise.
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !decode(w, r, &req) {
		return
	}
	code := req.PropertyCode
	if code == "" {
		code = req.AssetID
	}
	if req.Persist {
		if h.Vault == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "persistence is not configured")
			return
		}
		if code == "" {
			middleware.WriteError(w, http.StatusBadRequest, "property_code or asset_id is required to persist")
			return
		}
	}

	var primary *statement.Statement
	if req.Statement != nil && len(req.Statement.Records) > 0 {
		s, _, err := h.build(r.Context(), *req.Statement)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "statement: "+err.Error())
			return
		}
		primary = &s
	}

	var units []estimate.Unit
	if len(req.RentRoll) > 0 {
		records, err := extract.ParseRecords(req.RentRoll)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "rent_roll: "+err.Error())
			return
		}
		units = estimate.ParseUnits(records)
	}

	price := req.PurchasePrice
	if price <= 0 && req.AssetID != "" {
		price = h.purchasePrice(r.Context(), req.AssetID)
	}

	out := h.Estimator.EstimateIfIncomplete(primary, units, price)
	resp := EstimateResponse{Outcome: out}

	if req.Persist {
		entry, err := h.Vault.Save(r.Context(), code, out)
		if err != nil {
			h.Log.Error().Err(err).Str("property", code).Msg("failed to persist statement")
			middleware.WriteError(w, http.StatusInternalServerError, "failed to persist statement")
			return
		}
		resp.Entry = &entry
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// purchasePrice looks in the uploaded investment sheet first, then the
// database. 0 means unknown.
func (h *Handler) purchasePrice(ctx context.Context, assetID string) float64 {
	h.mu.RLock()
	inv, ok := h.purchases[strings.ToUpper(assetID)]
	h.mu.RUnlock()
	if ok && inv.PurchasePrice.IsPositive() {
		return inv.PurchasePrice.InexactFloat64()
	}
	if h.Investments != nil {
		return h.Investments.PurchasePrice(ctx, assetID)
	}
	return 0
}

// =============================================================================
// STORED STATEMENTS
// =============================================================================

// HandleListStatements lists stored outcomes, newest first.
func (h *Handler) HandleListStatements(w http.ResponseWriter, r *http.Request) {
	if h.Vault == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	entries, err := h.Vault.List(r.Context(), r.URL.Query().Get("property"))
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list statements")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	middleware.WriteJSON(w, http.StatusOK, entries)
}

// HandleLatestStatement returns the newest stored outcome for ?property,
// ?type (income by default) and ?period (SelectedPeriod by default).
func (h *Handler) HandleLatestStatement(w http.ResponseWriter, r *http.Request) {
	if h.Vault == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	q := r.URL.Query()
	property := q.Get("property")
	if property == "" {
		middleware.WriteError(w, http.StatusBadRequest, "property is required")
		return
	}
	t := statement.TypeIncome
	if raw := q.Get("type"); raw != "" {
		parsed, err := statement.ParseType(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		t = parsed
	}
	period := q.Get("period")
	if period == "" {
		period = statement.PeriodSelected
	}

	entry, err := h.Vault.Latest(r.Context(), property, t, period)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "no stored statement for "+property)
	case err != nil:
		h.Log.Error().Err(err).Msg("failed to load latest statement")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load latest statement")
	default:
		middleware.WriteJSON(w, http.StatusOK, entry)
	}
}

// HandleGetStatement returns one stored outcome.
func (h *Handler) HandleGetStatement(w http.ResponseWriter, r *http.Request) {
	if h.Vault == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}
	entry, err := h.Vault.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case err != nil:
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		middleware.WriteJSON(w, http.StatusOK, entry)
	}
}
