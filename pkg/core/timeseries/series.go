// Package timeseries rebuilds aligned monthly series from wide trailing-period
// reports, where each row carries one "slice" field per month offset.
package timeseries

import (
	"fmt"
	"math"
	"time"

	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/normalize"
)

// MonthLayout is the label format for a materialized month ("Jan 2025").
const MonthLayout = "Jan 2006"

// SliceCount is the width of a trailing-period report: slices 0..11.
const SliceCount = 12

// DateRange is the inclusive requested period.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ParseDateRange reads ISO calendar dates. A range wider than the report's
// SliceCount months is rejected.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	r := DateRange{From: f, To: t}
	if n := r.Months(); n > SliceCount {
		return DateRange{}, fmt.Errorf("date range spans %d months, reports carry at most %d", n, SliceCount)
	}
	return r, nil
}

// Months is the inclusive calendar-month span of the range.
func (r DateRange) Months() int {
	return MonthSpan(r.From, r.To)
}

// MonthSpan counts calendar months from..to inclusive; 0 when to precedes from.
func MonthSpan(from, to time.Time) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n < 0 {
		return 0
	}
	return n
}

// MonthLabels generates n labels starting at the month containing from.
func MonthLabels(from time.Time, n int) []string {
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = start.AddDate(0, i, 0).Format(MonthLayout)
	}
	return labels
}

// SliceFields are the field names a report may use for month offset i.
func SliceFields(i int) []string {
	return []string{fmt.Sprintf("Slice%02d", i), fmt.Sprintf("Slice%d", i)}
}

// =============================================================================
// SERIES
// =============================================================================

// Account is one ledger account across the requested months.
type Account struct {
	AccountCode    string            `json:"account_code,omitempty"`
	AccountName    string            `json:"account_name"`
	Category       classify.Category `json:"category,omitempty"`
	MonthlyAmounts []float64         `json:"monthly_amounts"`
	Total          float64           `json:"total"`
	IsRevenue      bool              `json:"is_revenue"`
	// Summary rows are reported totals; they never feed Totals.
	Summary bool `json:"summary,omitempty"`
}

// Totals are per-month aggregates, each len(Months).
type Totals struct {
	Revenue   []float64 `json:"revenue"`
	Expenses  []float64 `json:"expenses"`
	NetIncome []float64 `json:"net_income"`
}

// TimeSeries is the aligned monthly view of a trailing-period report.
// Every MonthlyAmounts and Totals slice has exactly len(Months) entries.
type TimeSeries struct {
	Months   []string  `json:"months"`
	Accounts []Account `json:"accounts"`
	Totals   Totals    `json:"totals"`
}

// Build materializes one entry per month in the range. A missing or empty
// slice reads as 0.
func Build(rows []extract.Record, r DateRange, c *classify.Classifier) TimeSeries {
	n := r.Months()
	ts := TimeSeries{
		Months:   MonthLabels(r.From, n),
		Accounts: make([]Account, 0, len(rows)),
		Totals: Totals{
			Revenue:   make([]float64, n),
			Expenses:  make([]float64, n),
			NetIncome: make([]float64, n),
		},
	}

	for _, row := range rows {
		name := row.AccountName()
		if name == "" {
			continue
		}
		code := row.AccountCode()

		acct := Account{
			AccountCode:    code,
			AccountName:    name,
			MonthlyAmounts: make([]float64, n),
		}
		if _, ok := c.Summary(name); ok {
			acct.Summary = true
		} else {
			acct.Category = c.Classify(code, name).Category
			acct.IsRevenue = acct.Category.IsRevenue()
		}

		for i := 0; i < n; i++ {
			v, _ := row.First(SliceFields(i)...)
			amount := normalize.ParseMonetary(v)
			acct.MonthlyAmounts[i] = amount
			acct.Total += amount

			switch {
			case acct.Summary:
			case acct.IsRevenue:
				ts.Totals.Revenue[i] += amount
			case acct.Category.IsExpense():
				ts.Totals.Expenses[i] += math.Abs(amount)
			}
		}
		ts.Accounts = append(ts.Accounts, acct)
	}

	for i := 0; i < n; i++ {
		ts.Totals.NetIncome[i] = ts.Totals.Revenue[i] - ts.Totals.Expenses[i]
	}
	return ts
}

// Account finds an account by exact name.
func (ts TimeSeries) Account(name string) (Account, bool) {
	for _, a := range ts.Accounts {
		if a.AccountName == name {
			return a, true
		}
	}
	return Account{}, false
}

// Sum adds up a per-month series.
func Sum(series []float64) float64 {
	var total float64
	for _, v := range series {
		total += v
	}
	return total
}
