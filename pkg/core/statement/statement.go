// Package statement assembles classified line items into sectioned financial
// statements with per-section and per-category totals.
package statement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/classify"
)

// Type selects the section layout of a statement.
type Type string

const (
	TypeCashFlow     Type = "cash_flow"
	TypeBalanceSheet Type = "balance_sheet"
	TypeIncome       Type = "income"
)

// ParseType accepts the wire names plus a few common spellings.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "cash_flow", "cashflow", "cf":
		return TypeCashFlow, nil
	case "balance_sheet", "balancesheet", "bs":
		return TypeBalanceSheet, nil
	case "income", "income_statement", "pnl", "t12":
		return TypeIncome, nil
	}
	return "", fmt.Errorf("unknown statement type %q", s)
}

// Section names.
const (
	SectionOperating           = "operating"
	SectionInvesting           = "investing"
	SectionFinancing           = "financing"
	SectionCurrentAssets       = "current_assets"
	SectionFixedAssets         = "fixed_assets"
	SectionCurrentLiabilities  = "current_liabilities"
	SectionLongTermLiabilities = "long_term_liabilities"
	SectionEquity              = "equity"
	SectionRevenue             = "revenue"
	SectionExpenses            = "expenses"
)

// SectionNames lists a type's sections in presentation order.
func SectionNames(t Type) []string {
	switch t {
	case TypeCashFlow:
		return []string{SectionOperating, SectionInvesting, SectionFinancing}
	case TypeBalanceSheet:
		return []string{SectionCurrentAssets, SectionFixedAssets, SectionCurrentLiabilities, SectionLongTermLiabilities, SectionEquity}
	case TypeIncome:
		return []string{SectionRevenue, SectionExpenses}
	}
	return nil
}

// Reported-total keys carried by summary rows.
const (
	ReportedRevenue   = "revenue"
	ReportedExpenses  = "expenses"
	ReportedNOI       = "noi"
	ReportedNetIncome = "net_income"
)

// DefaultPeriodMonths is assumed for report-defined periods ("SelectedPeriod").
const DefaultPeriodMonths = 12

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is one extracted account amount.
type LineItem struct {
	AccountCode string          `json:"account_code,omitempty"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodKey   string          `json:"period_key"`
}

// Key identifies the account across periods: its code, or its lowercased name.
func (li LineItem) Key() string {
	if code := classify.NormalizeCode(li.AccountCode); code != "" {
		return code
	}
	return strings.ToLower(strings.TrimSpace(li.AccountName))
}

// ClassifiedLineItem is a LineItem tagged by the classifier.
type ClassifiedLineItem struct {
	LineItem
	Category classify.Category `json:"category"`
	FlowType classify.FlowType `json:"flow_type"`
	Layer    classify.Layer    `json:"layer,omitempty"`
}

// Classify tags an item.
func Classify(li LineItem, c classify.Labeler) ClassifiedLineItem {
	cl := c.Classify(li.AccountCode, li.AccountName)
	return ClassifiedLineItem{LineItem: li, Category: cl.Category, FlowType: cl.FlowType, Layer: cl.Layer}
}

// SectionAmount is the item's contribution to a section total: expenses count
// as positive magnitudes, everything else keeps its sign.
func (ci ClassifiedLineItem) SectionAmount() decimal.Decimal {
	if ci.Category.IsExpense() {
		return ci.Amount.Abs()
	}
	return ci.Amount
}

// =============================================================================
// STATEMENT
// =============================================================================

// Statement is a sectioned view of one property and period. It is built once
// and treated as immutable.
type Statement struct {
	Type           Type                                  `json:"type"`
	PeriodKey      string                                `json:"period_key"`
	PeriodMonths   int                                   `json:"period_months"`
	Sections       map[string][]ClassifiedLineItem       `json:"sections"`
	Totals         map[string]decimal.Decimal            `json:"totals"`
	GrandTotal     decimal.Decimal                       `json:"grand_total"`
	CategoryTotals map[classify.Category]decimal.Decimal `json:"category_totals"`
	// Reported holds totals taken from summary rows ("Total Income").
	Reported map[string]decimal.Decimal `json:"reported,omitempty"`
	// RawData is the verbatim input, summary and unclassified rows included.
	RawData []LineItem `json:"raw_data"`
}

// Assemble classifies items and groups them into the sections of t. Summary
// rows become reported totals; items with no category, or whose category has
// no section in t, stay in RawData only.
func Assemble(t Type, periodKey string, items []LineItem, c classify.Labeler) Statement {
	s := newStatement(t, periodKey, items)
	for _, li := range items {
		if key, ok := c.Summary(li.AccountName); ok {
			if _, seen := s.Reported[key]; key != "" && !seen {
				s.Reported[key] = li.Amount
			}
			continue
		}
		s.place(Classify(li, c))
	}
	s.balance()
	return s
}

// FromClassified assembles items that already carry their categories.
func FromClassified(t Type, periodKey string, items []ClassifiedLineItem) Statement {
	raw := make([]LineItem, len(items))
	for i, ci := range items {
		raw[i] = ci.LineItem
	}
	s := newStatement(t, periodKey, raw)
	for _, ci := range items {
		s.place(ci)
	}
	s.balance()
	return s
}

func newStatement(t Type, periodKey string, raw []LineItem) Statement {
	s := Statement{
		Type:           t,
		PeriodKey:      periodKey,
		PeriodMonths:   periodMonthsFor(periodKey),
		Sections:       make(map[string][]ClassifiedLineItem),
		Totals:         make(map[string]decimal.Decimal),
		CategoryTotals: make(map[classify.Category]decimal.Decimal),
		Reported:       make(map[string]decimal.Decimal),
		RawData:        append([]LineItem(nil), raw...),
	}
	for _, name := range SectionNames(t) {
		s.Sections[name] = []ClassifiedLineItem{}
		s.Totals[name] = decimal.Zero
	}
	return s
}

func (s *Statement) place(ci ClassifiedLineItem) {
	if !ci.Category.Valid() {
		return
	}
	s.CategoryTotals[ci.Category] = s.CategoryTotals[ci.Category].Add(ci.SectionAmount())

	section := sectionFor(s.Type, ci)
	if section == "" {
		return
	}
	s.Sections[section] = append(s.Sections[section], ci)
	s.Totals[section] = s.Totals[section].Add(ci.SectionAmount())
}

// balance sets the balance-sheet check figure: assets - liabilities - equity.
// An unbalanced sheet is reported as-is.
func (s *Statement) balance() {
	if s.Type != TypeBalanceSheet {
		return
	}
	assets := s.Totals[SectionCurrentAssets].Add(s.Totals[SectionFixedAssets])
	liabilities := s.Totals[SectionCurrentLiabilities].Add(s.Totals[SectionLongTermLiabilities])
	s.GrandTotal = assets.Sub(liabilities).Sub(s.Totals[SectionEquity])
}

func sectionFor(t Type, ci ClassifiedLineItem) string {
	switch t {
	case TypeCashFlow:
		switch ci.FlowType {
		case classify.FlowInvesting:
			return SectionInvesting
		case classify.FlowFinancing:
			return SectionFinancing
		default:
			return SectionOperating
		}
	case TypeBalanceSheet:
		switch ci.Category {
		case classify.CategoryAssetCurrent:
			return SectionCurrentAssets
		case classify.CategoryAssetFixed:
			return SectionFixedAssets
		case classify.CategoryLiabilityCurrent:
			return SectionCurrentLiabilities
		case classify.CategoryLiabilityLongTerm:
			return SectionLongTermLiabilities
		case classify.CategoryEquity:
			return SectionEquity
		}
	case TypeIncome:
		switch {
		case ci.Category.IsRevenue():
			return SectionRevenue
		case ci.Category.IsExpense():
			return SectionExpenses
		}
	}
	return ""
}

// periodMonthsFor reads a month label ("Jan 2025") as one month.
func periodMonthsFor(periodKey string) int {
	if _, err := time.Parse("Jan 2006", periodKey); err == nil {
		return 1
	}
	return DefaultPeriodMonths
}

// WithPeriodMonths returns a copy covering n months.
func (s Statement) WithPeriodMonths(n int) Statement {
	if n > 0 {
		s.PeriodMonths = n
	}
	return s
}

// Items lists placed items in section order.
func (s Statement) Items() []ClassifiedLineItem {
	var out []ClassifiedLineItem
	for _, name := range SectionNames(s.Type) {
		out = append(out, s.Sections[name]...)
	}
	return out
}

// Unplaced lists raw items that are neither summary rows nor section members.
func (s Statement) Unplaced(c classify.Labeler) []LineItem {
	var out []LineItem
	for _, li := range s.RawData {
		if _, ok := c.Summary(li.AccountName); ok {
			continue
		}
		ci := Classify(li, c)
		if ci.Category.Valid() && sectionFor(s.Type, ci) != "" {
			continue
		}
		out = append(out, li)
	}
	return out
}

// Empty reports whether the statement was built from no rows.
func (s Statement) Empty() bool {
	return len(s.RawData) == 0
}
