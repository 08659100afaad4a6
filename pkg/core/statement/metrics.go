package statement

import (
	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
)

// Revenue prefers the reported total, else the revenue category total.
func (s Statement) Revenue() decimal.Decimal {
	if v, ok := s.Reported[ReportedRevenue]; ok {
		return v
	}
	return s.CategoryTotals[classify.CategoryRevenue]
}

// Expenses prefers the reported total, else the sum of expense categories as
// positive magnitudes.
func (s Statement) Expenses() decimal.Decimal {
	if v, ok := s.Reported[ReportedExpenses]; ok {
		return v.Abs()
	}
	total := decimal.Zero
	for cat, v := range s.CategoryTotals {
		if cat.IsExpense() {
			total = total.Add(v)
		}
	}
	return total
}

// NOI prefers a reported NOI row, else revenue less expenses. The figure
// covers PeriodMonths months.
func (s Statement) NOI() decimal.Decimal {
	if v, ok := s.Reported[ReportedNOI]; ok {
		return v
	}
	return s.Revenue().Sub(s.Expenses())
}

// CapRate annualizes NOI over the statement's period against price.
func (s Statement) CapRate(price float64) float64 {
	return CapRate(s.NOI().InexactFloat64(), s.PeriodMonths, price)
}

// CapRate is annualized NOI / price in percent (un-scaled, 14.88 not 0.1488).
// NOI covering periodMonths months is scaled by 12/periodMonths; 0 when the
// price or period is unknown.
func CapRate(noi float64, periodMonths int, price float64) float64 {
	if price <= 0 || periodMonths <= 0 {
		return 0
	}
	annual := noi * 12 / float64(periodMonths)
	return annual / price * 100
}

// =============================================================================
// VARIANCE
// =============================================================================

// Keys for statement-level totals in CompareVariance results.
const (
	TotalRevenueKey  = "total:revenue"
	TotalExpensesKey = "total:expenses"
	TotalNOIKey      = "total:noi"
)

// CompareVariance compares every placed account present in either statement,
// keyed by LineItem.Key, plus the revenue, expense and NOI totals. An account
// missing from one side compares against 0.
func CompareVariance(current, previous Statement, th analysis.Thresholds) map[string]analysis.VarianceResult {
	cur := accountAmounts(current)
	prev := accountAmounts(previous)

	results := make(map[string]analysis.VarianceResult, len(cur)+3)
	for key, v := range cur {
		results[key] = analysis.Compare(v, prev[key], th)
	}
	for key, v := range prev {
		if _, ok := cur[key]; !ok {
			results[key] = analysis.Compare(0, v, th)
		}
	}

	results[TotalRevenueKey] = analysis.Compare(current.Revenue().InexactFloat64(), previous.Revenue().InexactFloat64(), th)
	results[TotalExpensesKey] = analysis.Compare(current.Expenses().InexactFloat64(), previous.Expenses().InexactFloat64(), th)
	results[TotalNOIKey] = analysis.Compare(current.NOI().InexactFloat64(), previous.NOI().InexactFloat64(), th)
	return results
}

func accountAmounts(s Statement) map[string]float64 {
	out := make(map[string]float64)
	for _, item := range s.Items() {
		out[item.Key()] += item.SectionAmount().InexactFloat64()
	}
	return out
}
