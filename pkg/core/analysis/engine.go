package analysis

import (
	"fmt"
	"time"

	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/timeseries"
)

// Engine profiles a reconstructed time series: per-account statistics,
// month-over-month moves and a Benford check.
type Engine struct {
	thresholds Thresholds
	now        func() time.Time
}

// NewEngine creates an engine; zero thresholds fall back to the defaults.
func NewEngine(th Thresholds) *Engine {
	if th.Low == 0 && th.Medium == 0 {
		th = DefaultThresholds()
	}
	return &Engine{thresholds: th, now: time.Now}
}

// Analyze runs the full suite over ts. Summary rows are reported like any
// other account but kept out of the Benford sample.
func (e *Engine) Analyze(ts timeseries.TimeSeries) (*TimeSeriesAnalysis, error) {
	if len(ts.Months) == 0 {
		return nil, fmt.Errorf("time series has no months")
	}

	out := &TimeSeriesAnalysis{
		Months:     ts.Months,
		AnalyzedAt: e.now(),
		Revenue:    e.series("Total Revenue", "", ts.Months, ts.Totals.Revenue),
		Expenses:   e.series("Total Expenses", "", ts.Months, ts.Totals.Expenses),
		NetIncome:  e.series("Net Income", "", ts.Months, ts.Totals.NetIncome),
		Accounts:   make([]SeriesAnalysis, 0, len(ts.Accounts)),
	}

	var sample []float64
	for _, acct := range ts.Accounts {
		out.Accounts = append(out.Accounts, e.series(acct.AccountName, acct.Category, ts.Months, acct.MonthlyAmounts))
		if !acct.Summary {
			sample = append(sample, acct.MonthlyAmounts...)
		}
	}
	out.Benford = Benford(sample)

	return out, nil
}

func (e *Engine) series(name string, category classify.Category, months []string, values []float64) SeriesAnalysis {
	sa := SeriesAnalysis{
		Name:           name,
		Category:       category,
		Total:          timeseries.Sum(values),
		Mean:           Mean(values),
		StdDev:         StdDev(values),
		Volatility:     Volatility(values),
		Trend:          TrendOf(values),
		MonthOverMonth: make([]float64, len(values)),
	}
	for i := 1; i < len(values); i++ {
		change := Compare(values[i], values[i-1], e.thresholds)
		sa.MonthOverMonth[i] = change.VariancePercent
		if change.Status == StatusAlert && i < len(months) {
			sa.Spikes = append(sa.Spikes, Spike{Month: months[i], Change: change})
		}
	}
	return sa
}
