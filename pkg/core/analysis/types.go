package analysis

import (
	"time"

	"portfolio_financials/pkg/core/classify"
)

// SeriesAnalysis summarizes one monthly series (an account or a total row).
type SeriesAnalysis struct {
	Name     string            `json:"name"`
	Category classify.Category `json:"category,omitempty"`

	Total      float64 `json:"total"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Volatility float64 `json:"volatility"`
	Trend      Trend   `json:"trend"`

	// MonthOverMonth holds the percent change against the prior month; the
	// first month is always 0.
	MonthOverMonth []float64 `json:"month_over_month"`
	// Spikes lists the months whose change reached the alert threshold.
	Spikes []Spike `json:"spikes,omitempty"`
}

// Spike is a single month-over-month move at Alert level.
type Spike struct {
	Month  string         `json:"month"`
	Change VarianceResult `json:"change"`
}

// TimeSeriesAnalysis is the full profile of a reconstructed time series.
type TimeSeriesAnalysis struct {
	Months     []string  `json:"months"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Revenue   SeriesAnalysis   `json:"revenue"`
	Expenses  SeriesAnalysis   `json:"expenses"`
	NetIncome SeriesAnalysis   `json:"net_income"`
	Accounts  []SeriesAnalysis `json:"accounts"`

	// Benford checks the leading digits of every non-summary monthly amount.
	Benford BenfordResult `json:"benford"`
}
