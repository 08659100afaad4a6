// Package report renders statements, series and variance tables as markdown,
// and markdown as HTML for export.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/statement"
	"portfolio_financials/pkg/core/timeseries"
)

var sectionTitles = map[string]string{
	statement.SectionOperating:           "Operating Activities",
	statement.SectionInvesting:           "Investing Activities",
	statement.SectionFinancing:           "Financing Activities",
	statement.SectionCurrentAssets:       "Current Assets",
	statement.SectionFixedAssets:         "Fixed Assets",
	statement.SectionCurrentLiabilities:  "Current Liabilities",
	statement.SectionLongTermLiabilities: "Long-Term Liabilities",
	statement.SectionEquity:              "Equity",
	statement.SectionRevenue:             "Revenue",
	statement.SectionExpenses:            "Expenses",
}

var typeTitles = map[statement.Type]string{
	statement.TypeCashFlow:     "Cash Flow Statement",
	statement.TypeBalanceSheet: "Balance Sheet",
	statement.TypeIncome:       "Income Statement",
}

// Money formats an amount with thousands separators and parentheses for negatives.
func Money(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if d.IsNegative() {
		return "(" + out + ")"
	}
	return out
}

// Statement renders a statement as markdown.
func Statement(title string, s statement.Statement) string {
	var b strings.Builder
	heading := typeTitles[s.Type]
	if title != "" {
		heading = title + " - " + heading
	}
	fmt.Fprintf(&b, "# %s\n\nPeriod: %s (%d months)\n\n", heading, s.PeriodKey, s.PeriodMonths)
	writeSections(&b, s)
	writeSummary(&b, s)
	return b.String()
}

// Outcome renders whichever statement an outcome carries, with the
// completeness badge for estimates.
func Outcome(title string, out estimate.Outcome) string {
	switch {
	case out.Estimate != nil:
		est := out.Estimate
		var b strings.Builder
		b.WriteString(Statement(title, est.Statement))
		fmt.Fprintf(&b, "\n> **Data completeness: %s** (source: %s)\n", est.DataCompleteness, est.DataSource)
		if len(est.MissingFields) > 0 {
			fmt.Fprintf(&b, ">\n> Missing from primary source: %s\n", strings.Join(est.MissingFields, ", "))
		}
		fmt.Fprintf(&b, ">\n> NOI margin assumption: %.0f%%. Estimated NOI: %s. Cap rate: %.2f%%\n",
			est.NOIMargin*100, Money(est.EstimatedNOI), est.CapRate)
		if est.Occupancy.Total > 0 {
			fmt.Fprintf(&b, ">\n> Occupancy: %d/%d (%.1f%%, %s)\n", est.Occupancy.Occupied, est.Occupancy.Total, est.Occupancy.Rate, est.Occupancy.Label)
		}
		return b.String()
	case out.Statement != nil:
		return Statement(title, *out.Statement)
	}
	return ""
}

func writeSections(b *strings.Builder, s statement.Statement) {
	for _, name := range statement.SectionNames(s.Type) {
		items := s.Sections[name]
		fmt.Fprintf(b, "## %s\n\n", sectionTitles[name])
		if len(items) == 0 {
			b.WriteString("_No items._\n\n")
			continue
		}
		b.WriteString("| Account | Code | Category | Amount |\n|---|---|---|---:|\n")
		for _, item := range items {
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", escape(item.AccountName), item.AccountCode, item.Category, Money(item.Amount))
		}
		fmt.Fprintf(b, "| **Total** | | | **%s** |\n\n", Money(s.Totals[name]))
	}
}

func writeSummary(b *strings.Builder, s statement.Statement) {
	b.WriteString("## Summary\n\n| Measure | Amount |\n|---|---:|\n")
	switch s.Type {
	case statement.TypeBalanceSheet:
		fmt.Fprintf(b, "| Assets - Liabilities - Equity | %s |\n", Money(s.GrandTotal))
	default:
		fmt.Fprintf(b, "| Revenue | %s |\n", Money(s.Revenue()))
		fmt.Fprintf(b, "| Expenses | %s |\n", Money(s.Expenses()))
		fmt.Fprintf(b, "| NOI | %s |\n", Money(s.NOI()))
	}
}

// TimeSeries renders monthly totals plus trend and volatility per measure.
func TimeSeries(ts timeseries.TimeSeries) string {
	var b strings.Builder
	b.WriteString("# Monthly Totals\n\n| Month | Revenue | Expenses | Net Income |\n|---|---:|---:|---:|\n")
	for i, month := range ts.Months {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", month,
			Money(decimal.NewFromFloat(ts.Totals.Revenue[i])),
			Money(decimal.NewFromFloat(ts.Totals.Expenses[i])),
			Money(decimal.NewFromFloat(ts.Totals.NetIncome[i])))
	}

	b.WriteString("\n## Trend\n\n| Measure | Trend | Volatility |\n|---|---|---:|\n")
	measures := []struct {
		name   string
		series []float64
	}{
		{"Revenue", ts.Totals.Revenue},
		{"Expenses", ts.Totals.Expenses},
		{"Net Income", ts.Totals.NetIncome},
	}
	for _, m := range measures {
		fmt.Fprintf(&b, "| %s | %s | %.1f%% |\n", m.name, analysis.TrendOf(m.series), analysis.Volatility(m.series))
	}
	return b.String()
}

// Variance renders comparison results sorted by key.
func Variance(results map[string]analysis.VarianceResult) string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# Variance\n\n| Account | Current | Previous | Variance | Status |\n|---|---:|---:|---:|---|\n")
	for _, k := range keys {
		r := results[k]
		fmt.Fprintf(&b, "| %s | %s | %s | %.1f%% | %s |\n", escape(k),
			Money(decimal.NewFromFloat(r.Current)), Money(decimal.NewFromFloat(r.Previous)), r.VariancePercent, r.Status)
	}
	return b.String()
}

// =============================================================================
// HTML
// =============================================================================

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML converts rendered markdown to an HTML fragment.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// Page wraps an HTML fragment in a minimal standalone document.
func Page(title, fragment string) string {
	return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" + htmlEscape(title) +
		"</title></head><body>\n" + fragment + "</body></html>\n"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
