package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Variance.Low != 5 || cfg.Variance.Medium != 10 {
		t.Errorf("Variance = %+v, want 5/10", cfg.Variance)
	}
	if cfg.Estimate.NOIMargin != 0.60 {
		t.Errorf("NOIMargin = %v, want 0.60", cfg.Estimate.NOIMargin)
	}
	if cfg.Estimate.Occupancy.Healthy != 95 || cfg.Estimate.Occupancy.Watch != 90 {
		t.Errorf("Occupancy = %+v, want 95/90", cfg.Estimate.Occupancy)
	}
	if cfg.Extract.HeaderWindow != 10 {
		t.Errorf("HeaderWindow = %d, want 10", cfg.Extract.HeaderWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "9090"
variance:
  low: 3
  medium: 8
estimate:
  noi_margin: 0.55
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Variance.Low != 3 || cfg.Variance.Medium != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Estimate.NOIMargin != 0.55 {
		t.Errorf("NOIMargin = %v, want 0.55", cfg.Estimate.NOIMargin)
	}
	if cfg.Estimate.Occupancy.Healthy != 95 {
		t.Error("fields absent from the file must keep their defaults")
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Server.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("NOI_MARGIN", "0.5")
	t.Setenv("DATABASE_URL", "postgres://localhost/financials")
	t.Setenv("RULES_PATH", "/etc/rules.hjson")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "7070" || cfg.Estimate.NOIMargin != 0.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Database.URL != "postgres://localhost/financials" || cfg.RulesPath != "/etc/rules.hjson" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     string
	}{
		{"Inverted thresholds", "variance:\n  low: 10\n  medium: 5\n", ""},
		{"Margin above one", "estimate:\n  noi_margin: 1.5\n", ""},
		{"Bad yaml", "variance: [", ""},
		{"Bad env margin", "", "sixty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("NOI_MARGIN", tt.env)
			}
			path := writeFile(t, "config.yaml", tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "FINANCIALS_TEST_VALUE=from-dotenv\n")
	os.Unsetenv("FINANCIALS_TEST_VALUE")
	defer os.Unsetenv("FINANCIALS_TEST_VALUE")

	LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if got := os.Getenv("FINANCIALS_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("FINANCIALS_TEST_VALUE = %q, want from-dotenv", got)
	}
}
