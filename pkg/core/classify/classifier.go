package classify

import (
	"strings"

	"portfolio_financials/pkg/core/normalize"
)

// Layer records which precedence layer decided a category.
type Layer string

const (
	LayerNone      Layer = ""
	LayerBucket    Layer = "bucket"
	LayerCodeRange Layer = "code_range"
	LayerKeyword   Layer = "keyword"
	LayerAssisted  Layer = "assisted"
)

// Classification is the result of classifying one (code, name) pair.
type Classification struct {
	Category Category `json:"category"`
	FlowType FlowType `json:"flow_type"`
	Layer    Layer    `json:"layer,omitempty"`
	Rule     string   `json:"rule,omitempty"`
}

// Classified reports whether the account landed in a placeable category.
func (c Classification) Classified() bool {
	return c.Category != CategoryUnclassified
}

// Classifier evaluates a RuleTable. It holds no mutable state, so one value
// may be shared by concurrent extractions.
type Classifier struct {
	rules *RuleTable
}

// New builds a classifier over a compiled rule table.
func New(rules *RuleTable) *Classifier {
	return &Classifier{rules: rules}
}

// NewDefault builds a classifier over the embedded rule table.
func NewDefault() (*Classifier, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}

// Rules exposes the table the classifier evaluates.
func (c *Classifier) Rules() *RuleTable {
	return c.rules
}

// Classify returns category and flow type for an account. The two are
// evaluated independently.
func (c *Classifier) Classify(code, name string) Classification {
	code = NormalizeCode(code)
	result := c.category(code, name)
	result.FlowType = c.FlowType(code, name)
	return result
}

// ClassifyCode is Classify for raw cell values (codes may arrive as numbers).
func (c *Classifier) ClassifyCode(code any, name string) Classification {
	return c.Classify(normalize.Text(code), name)
}

func (c *Classifier) category(code, name string) Classification {
	// 1. Exact bucket membership.
	if code != "" {
		if r := firstMatch(c.rules.Buckets, code, name); r != nil {
			return Classification{Category: r.Category, Layer: LayerBucket, Rule: r.Name}
		}
	}

	// 2. Code-prefix ranges, with keyword disambiguation inside a range.
	if code != "" {
		if r := firstMatch(c.rules.CodeRanges, code, name); r != nil {
			return c.refineExpense(Classification{Category: r.Category, Layer: LayerCodeRange, Rule: r.Name}, name)
		}
	}

	// 3. Keywords in the account name.
	if r := firstMatch(c.rules.Keywords, "", name); r != nil {
		return c.refineExpense(Classification{Category: r.Category, Layer: LayerKeyword, Rule: r.Name}, name)
	}

	// 4. Unclassified: retained by callers, excluded from totals.
	return Classification{Category: CategoryUnclassified, Layer: LayerNone}
}

// refineExpense moves a generic expense into a named bucket when the name says which.
func (c *Classifier) refineExpense(cl Classification, name string) Classification {
	if cl.Category != CategoryExpenseOther {
		return cl
	}
	if r := firstMatch(c.rules.ExpenseBuckets, "", name); r != nil {
		cl.Category = r.Category
	}
	return cl
}

// FlowType is the separate operating/investing/financing pass.
func (c *Classifier) FlowType(code, name string) FlowType {
	if r := firstMatch(c.rules.FlowTypes, NormalizeCode(code), name); r != nil {
		return r.FlowType
	}
	if c.rules.DefaultFlowType != FlowUnknown {
		return c.rules.DefaultFlowType
	}
	return FlowOperating
}

// Summary reports whether a row is a reported total rather than a line item.
// key is the canonical total it carries ("revenue", "expenses", "noi") or ""
// for subtotals the table does not name.
func (c *Classifier) Summary(name string) (key string, ok bool) {
	if r := firstMatch(c.rules.Summaries, "", name); r != nil {
		return r.Key, true
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range c.rules.SummaryPrefixes {
		if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return "", true
		}
	}
	return "", false
}

// IsRevenue is the revenue test the time-series reconstructor tags accounts with.
func (c *Classifier) IsRevenue(code, name string) bool {
	return c.Classify(code, name).Category.IsRevenue()
}

// NormalizeCode trims an account code and drops a float suffix ("4100.0").
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasSuffix(code, ".0") {
		code = strings.TrimSuffix(code, ".0")
	}
	return code
}
