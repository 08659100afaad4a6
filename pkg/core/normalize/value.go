// Package normalize turns raw spreadsheet cells and API fields into numeric primitives.
//
// Every exported Parse* function is total: it never panics and returns the zero
// value for blank or unparseable input. The matching error-returning forms
// (Monetary, Percent, Date, Bool, Int) report a *ParseIssue so callers that care
// about diagnostics can tell "blank" from "garbage" before coercing to zero.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseIssue describes why a raw value could not be normalized.
type ParseIssue struct {
	Raw    string
	Reason string
}

func (e *ParseIssue) Error() string {
	return fmt.Sprintf("cannot normalize %q: %s", e.Raw, e.Reason)
}

const (
	ReasonBlank       = "blank"
	ReasonUnparseable = "unparseable"
	ReasonType        = "unsupported type"
)

// blankTokens are placeholder strings exports use for "no value".
var blankTokens = map[string]bool{
	"":    true,
	"-":   true,
	"—":   true,
	"–":   true,
	"n/a": true,
	"na":  true,
}

// currencyCutset holds characters stripped before numeric parsing.
const currencyCutset = "$€£¥, \t\u00a0"

// =============================================================================
// MONETARY
// =============================================================================

// Monetary parses a currency value. "(1,234.50)" and "-$1,234.50" are negative.
func Monetary(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, &ParseIssue{Raw: "", Reason: ReasonBlank}
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return Monetary(v.String())
	case string:
		return parseMonetaryString(v)
	default:
		return decimal.Zero, &ParseIssue{Raw: fmt.Sprint(raw), Reason: ReasonType}
	}
}

func parseMonetaryString(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if blankTokens[strings.ToLower(s)] {
		return decimal.Zero, &ParseIssue{Raw: raw, Reason: ReasonBlank}
	}

	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(currencyCutset, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}
	if cleaned == "" || cleaned == "." || strings.ContainsAny(cleaned, "()-+") {
		return decimal.Zero, &ParseIssue{Raw: raw, Reason: ReasonUnparseable}
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseIssue{Raw: raw, Reason: ReasonUnparseable}
	}
	if negative {
		value = value.Abs().Neg()
	}
	return value, nil
}

// ParseAmount is Monetary coerced to zero on any issue.
func ParseAmount(raw any) decimal.Decimal {
	v, err := Monetary(raw)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// ParseMonetary is Monetary as a float64, coerced to zero on any issue.
func ParseMonetary(raw any) float64 {
	return ParseAmount(raw).InexactFloat64()
}

// =============================================================================
// PERCENT
// =============================================================================

// Percent parses "4.87%" as 4.87. Values are never rescaled to fractions.
func Percent(raw any) (float64, error) {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
		v, err := Monetary(trimmed)
		if err != nil {
			return 0, &ParseIssue{Raw: s, Reason: err.(*ParseIssue).Reason}
		}
		return v.InexactFloat64(), nil
	}
	v, err := Monetary(raw)
	if err != nil {
		return 0, err
	}
	return v.InexactFloat64(), nil
}

// ParsePercent is Percent coerced to zero on any issue.
func ParsePercent(raw any) float64 {
	v, err := Percent(raw)
	if err != nil {
		return 0
	}
	return v
}

// =============================================================================
// DATES, FLAGS, COUNTS
// =============================================================================

var dateLayouts = []string{"01/02/2006", "1/2/2006", "01/02/06", "1/2/06", "2006-01-02"}

// Date parses the date layouts seen in investment sheets.
func Date(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if blankTokens[strings.ToLower(s)] {
			return time.Time{}, &ParseIssue{Raw: v, Reason: ReasonBlank}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, &ParseIssue{Raw: v, Reason: ReasonUnparseable}
	case nil:
		return time.Time{}, &ParseIssue{Reason: ReasonBlank}
	default:
		return time.Time{}, &ParseIssue{Raw: fmt.Sprint(raw), Reason: ReasonType}
	}
}

// ParseDate returns nil when the value is not a recognizable date.
func ParseDate(raw any) *time.Time {
	t, err := Date(raw)
	if err != nil {
		return nil
	}
	return &t
}

// Bool understands yes/no, true/false and 1/0.
func Bool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y", "true", "1":
			return true, nil
		case "no", "n", "false", "0":
			return false, nil
		case "":
			return false, &ParseIssue{Raw: v, Reason: ReasonBlank}
		}
		return false, &ParseIssue{Raw: v, Reason: ReasonUnparseable}
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case nil:
		return false, &ParseIssue{Reason: ReasonBlank}
	default:
		return false, &ParseIssue{Raw: fmt.Sprint(raw), Reason: ReasonType}
	}
}

// ParseBool returns nil when the flag is blank or unrecognized.
func ParseBool(raw any) *bool {
	b, err := Bool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// Int truncates numeric input ("12.0" -> 12, "1,204" -> 1204).
func Int(raw any) (int, error) {
	if s, ok := raw.(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	v, err := Monetary(raw)
	if err != nil {
		return 0, err
	}
	return int(v.IntPart()), nil
}

// ParseInt is Int coerced to zero on any issue.
func ParseInt(raw any) int {
	n, err := Int(raw)
	if err != nil {
		return 0
	}
	return n
}

// Text renders a cell as trimmed text; numbers keep their shortest form.
func Text(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
