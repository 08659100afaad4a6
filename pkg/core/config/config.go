// Package config loads the service configuration: a YAML file, an optional
// .env file, then environment overrides. Default holds every business default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/llm"
)

type Config struct {
	Server   ServerConfig        `yaml:"server"`
	Database DatabaseConfig      `yaml:"database"`
	Variance analysis.Thresholds `yaml:"variance"`
	Estimate estimate.Config     `yaml:"estimate"`
	Extract  extract.Options     `yaml:"extract"`
	// RulesPath replaces the embedded classification rules when set.
	RulesPath string `yaml:"rules_path"`
	// AssistClassification sends unclassified accounts to the LLM.
	AssistClassification bool       `yaml:"assist_classification"`
	LLM                  llm.Config `yaml:"llm"`
}

type ServerConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	// URL is a Postgres connection string; empty disables persistence.
	URL string `yaml:"url"`
}

// Default returns the dashboard's observed defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", LogLevel: "info"},
		Variance: analysis.DefaultThresholds(),
		Estimate: estimate.DefaultConfig(),
		Extract:  extract.DefaultOptions(),
		LLM:      llm.Config{ActiveProvider: "gemini"},
	}
}

// LoadEnv reads .env files into the process environment. Missing files are ignored.
func LoadEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	if len(files) == 0 {
		_ = godotenv.Load()
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("RULES_PATH"); v != "" {
		c.RulesPath = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.ActiveProvider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.GeminiAPIKey = v
	}
	if v := os.Getenv("NOI_MARGIN"); v != "" {
		margin, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid NOI_MARGIN %q: %w", v, err)
		}
		c.Estimate.NOIMargin = margin
	}
	return nil
}

// Validate rejects assumptions the analyzers cannot use.
func (c *Config) Validate() error {
	if c.Variance.Low < 0 || c.Variance.Medium < c.Variance.Low {
		return fmt.Errorf("variance thresholds must satisfy 0 <= low <= medium, got %v/%v", c.Variance.Low, c.Variance.Medium)
	}
	if c.Estimate.NOIMargin <= 0 || c.Estimate.NOIMargin > 1 {
		return fmt.Errorf("noi_margin must be in (0, 1], got %v", c.Estimate.NOIMargin)
	}
	if c.Estimate.Occupancy.Watch > c.Estimate.Occupancy.Healthy {
		return fmt.Errorf("occupancy watch threshold %v exceeds healthy %v", c.Estimate.Occupancy.Watch, c.Estimate.Occupancy.Healthy)
	}
	if c.Extract.HeaderWindow < 0 {
		return fmt.Errorf("extract.header_window must not be negative")
	}
	return nil
}
