package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coreconfig "portfolio_financials/pkg/core/config"
	"portfolio_financials/pkg/core/llm"
)

func newMux() (*http.ServeMux, *llm.Manager) {
	mgr := llm.NewManager(llm.Config{ActiveProvider: "gemini", GeminiAPIKey: "secret-key"})
	mux := http.NewServeMux()
	NewHandler(mgr, coreconfig.Default()).Routes(mux)
	return mux, mgr
}

func TestHandleConfig(t *testing.T) {
	mux, _ := newMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-key") {
		t.Error("config response leaks the api key")
	}

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveProvider != "gemini" {
		t.Errorf("ActiveProvider = %s, want gemini", resp.ActiveProvider)
	}
	if strings.Join(resp.Available, ",") != "deepseek,gemini" {
		t.Errorf("Available = %v", resp.Available)
	}
	if resp.Estimate.NOIMargin != 0.60 || resp.Variance.Low != 5 || resp.Variance.Medium != 10 {
		t.Errorf("business defaults = %+v / %+v", resp.Estimate, resp.Variance)
	}
	if resp.HeaderWindow != 10 {
		t.Errorf("HeaderWindow = %d, want 10", resp.HeaderWindow)
	}
}

func TestHandleSwitch(t *testing.T) {
	mux, mgr := newMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config/provider", strings.NewReader(`{"provider": "deepseek"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if mgr.GetActiveProvider() != "deepseek" {
		t.Errorf("active provider = %s, want deepseek", mgr.GetActiveProvider())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config/provider", strings.NewReader(`{"provider": "openai"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d, want 400", rec.Code)
	}
	if mgr.GetActiveProvider() != "deepseek" {
		t.Errorf("failed switch changed provider to %s", mgr.GetActiveProvider())
	}
}
