package config

import (
	"encoding/json"
	"net/http"

	"portfolio_financials/pkg/api/middleware"
	"portfolio_financials/pkg/core/analysis"
	coreconfig "portfolio_financials/pkg/core/config"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/llm"
)

// Response describes the active LLM provider and the business assumptions
// the analyzers run with. Secrets are never included.
type Response struct {
	ActiveProvider       string              `json:"active_provider"`
	Available            []string            `json:"available"`
	AssistClassification bool                `json:"assist_classification"`
	Variance             analysis.Thresholds `json:"variance"`
	Estimate             estimate.Config     `json:"estimate"`
	HeaderWindow         int                 `json:"header_window"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	LLM    *llm.Manager
	Config *coreconfig.Config
}

// NewHandler creates a new config handler
func NewHandler(mgr *llm.Manager, cfg *coreconfig.Config) *Handler {
	return &Handler{LLM: mgr, Config: cfg}
}

// Routes registers the config endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/config", h.HandleConfig)
	mux.HandleFunc("POST /api/config/provider", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, Response{
		ActiveProvider:       h.LLM.GetActiveProvider(),
		Available:            h.LLM.Available(),
		AssistClassification: h.Config.AssistClassification,
		Variance:             h.Config.Variance,
		Estimate:             h.Config.Estimate,
		HeaderWindow:         h.Config.Extract.HeaderWindow,
	})
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.LLM.SetGlobalProvider(req.Provider); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"active_provider": req.Provider})
}
