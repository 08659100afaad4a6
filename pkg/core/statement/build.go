package statement

import (
	"sort"

	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/normalize"
	"portfolio_financials/pkg/core/timeseries"
)

// Period keys the accounting API reports.
const (
	PeriodSelected         = "SelectedPeriod"
	PeriodFiscalYearToDate = "FiscalYearToDate"
	PeriodTrailing12       = "T12"
	PeriodProforma         = "Proforma"
)

// ExtractStatement reads one amount per record from the periodKey field and
// assembles the result. Records without an account name are dropped; a
// missing or malformed amount reads as 0.
func ExtractStatement(records []extract.Record, t Type, periodKey string, c classify.Labeler) Statement {
	items := make([]LineItem, 0, len(records))
	for _, r := range records {
		name := r.AccountName()
		if name == "" {
			continue
		}
		items = append(items, LineItem{
			AccountCode: r.AccountCode(),
			AccountName: name,
			Amount:      normalize.ParseAmount(r[periodKey]),
			PeriodKey:   periodKey,
		})
	}
	return Assemble(t, periodKey, items, c)
}

// FromPropertyValues turns one property column of a portfolio sheet into an
// income statement. Targets that were not found are left out, so their
// absence shows as a zero total rather than a reported zero.
func FromPropertyValues(pv extract.PropertyValues, periodKey string, c classify.Labeler) Statement {
	missing := make(map[string]bool, len(pv.Missing))
	for _, phrase := range pv.Missing {
		missing[phrase] = true
	}

	var items []LineItem
	found := make(map[string]decimal.Decimal)
	for _, key := range orderedKeys(pv.Values) {
		phrase := pv.Phrases[key]
		if phrase == "" {
			phrase = key
		}
		if missing[phrase] {
			continue
		}
		items = append(items, LineItem{AccountName: phrase, Amount: pv.Values[key], PeriodKey: periodKey})
		found[key] = pv.Values[key]
	}

	s := Assemble(TypeIncome, periodKey, items, c)
	for key, amount := range found {
		switch key {
		case extract.KeyRevenue, extract.KeyExpenses, extract.KeyNOI:
			s.Reported[key] = amount
		}
	}
	return s
}

// FromInvestment builds the annual proforma income statement of one master
// sheet row: proforma revenue plus one expense line per bucket column. The
// sheet's NOI and operating-expense figures are kept as reported totals.
func FromInvestment(inv extract.Investment) Statement {
	var items []ClassifiedLineItem
	if !inv.ProformaRevenue.IsZero() {
		items = append(items, ClassifiedLineItem{
			LineItem: LineItem{AccountName: "Proforma Revenue", Amount: inv.ProformaRevenue, PeriodKey: PeriodProforma},
			Category: classify.CategoryRevenue,
			FlowType: classify.FlowOperating,
			Layer:    classify.LayerBucket,
		})
	}
	for _, col := range extract.ExpenseColumns {
		amount, ok := inv.Expenses[col.Label]
		if !ok {
			continue
		}
		items = append(items, ClassifiedLineItem{
			LineItem: LineItem{AccountName: col.Label, Amount: amount, PeriodKey: PeriodProforma},
			Category: classify.ExpenseCategory(col.Bucket),
			FlowType: classify.FlowOperating,
			Layer:    classify.LayerBucket,
		})
	}

	s := FromClassified(TypeIncome, PeriodProforma, items)
	if !inv.ProformaRevenue.IsZero() {
		s.Reported[ReportedRevenue] = inv.ProformaRevenue
	}
	if !inv.ProformaOpex.IsZero() {
		s.Reported[ReportedExpenses] = inv.ProformaOpex
	}
	if !inv.NOI.IsZero() {
		s.Reported[ReportedNOI] = inv.NOI
	}
	return s
}

// orderedKeys puts revenue, expenses and NOI first, then the rest sorted.
func orderedKeys(values map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(values))
	for _, k := range []string{extract.KeyRevenue, extract.KeyExpenses, extract.KeyNOI} {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range values {
		switch k {
		case extract.KeyRevenue, extract.KeyExpenses, extract.KeyNOI:
		default:
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// FromTimeSeries assembles the trailing income statement from per-account totals.
func FromTimeSeries(ts timeseries.TimeSeries, c classify.Labeler) Statement {
	items := make([]LineItem, 0, len(ts.Accounts))
	for _, a := range ts.Accounts {
		items = append(items, LineItem{
			AccountCode: a.AccountCode,
			AccountName: a.AccountName,
			Amount:      decimal.NewFromFloat(a.Total),
			PeriodKey:   PeriodTrailing12,
		})
	}
	return Assemble(TypeIncome, PeriodTrailing12, items, c).WithPeriodMonths(len(ts.Months))
}
