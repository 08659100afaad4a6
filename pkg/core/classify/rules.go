// Package classify assigns semantic categories and cash-flow types to ledger accounts.
//
// The heuristics live in a declarative RuleTable (see rules/default_rules.yaml)
// evaluated by one generic matcher, so a new GL code mapping is a data change.
package classify

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

//go:embed rules/default_rules.yaml
var defaultRulesFS embed.FS

// =============================================================================
// CATEGORIES
// =============================================================================

// Category is the semantic bucket of an account.
type Category string

const (
	CategoryUnclassified       Category = ""
	CategoryRevenue            Category = "revenue"
	CategoryExpenseOther       Category = "expense-other"
	CategoryExpenseMaintenance Category = "expense-maintenance"
	CategoryExpenseUtilities   Category = "expense-utilities"
	CategoryExpenseManagement  Category = "expense-management"
	CategoryExpensePropertyTax Category = "expense-property-tax"
	CategoryExpenseInsurance   Category = "expense-insurance"
	CategoryExpensePayroll     Category = "expense-payroll"
	CategoryAssetCurrent       Category = "asset-current"
	CategoryAssetFixed         Category = "asset-fixed"
	CategoryLiabilityCurrent   Category = "liability-current"
	CategoryLiabilityLongTerm  Category = "liability-long-term"
	CategoryEquity             Category = "equity"
)

const expensePrefix = "expense-"

// ExpenseCategory builds the category for a named expense bucket.
func ExpenseCategory(bucket string) Category {
	return Category(expensePrefix + bucket)
}

func (c Category) IsRevenue() bool { return c == CategoryRevenue }
func (c Category) IsExpense() bool { return strings.HasPrefix(string(c), expensePrefix) }
func (c Category) IsAsset() bool { return c == CategoryAssetCurrent || c == CategoryAssetFixed }
func (c Category) IsLiability() bool { return c == CategoryLiabilityCurrent || c == CategoryLiabilityLongTerm }
func (c Category) IsEquity() bool { return c == CategoryEquity }

// Bucket returns the expense bucket name ("utilities"), or "" for non-expenses.
func (c Category) Bucket() string {
	if !c.IsExpense() {
		return ""
	}
	return strings.TrimPrefix(string(c), expensePrefix)
}

// Valid reports whether the category is one the statement assembler can place.
func (c Category) Valid() bool {
	return c.IsRevenue() || (c.IsExpense() && c.Bucket() != "") || c.IsAsset() || c.IsLiability() || c.IsEquity()
}

// FlowType is the cash-flow activity of an account.
type FlowType string

const (
	FlowUnknown   FlowType = ""
	FlowOperating FlowType = "operating"
	FlowInvesting FlowType = "investing"
	FlowFinancing FlowType = "financing"
)

func (f FlowType) Valid() bool {
	return f == FlowOperating || f == FlowInvesting || f == FlowFinancing
}

// =============================================================================
// RULES
// =============================================================================

// Rule is one (predicate, result) pair. Every declared condition must hold.
type Rule struct {
	Name        string   `yaml:"name" json:"name"`
	Codes       []string `yaml:"codes" json:"codes"`
	CodePattern string   `yaml:"code_pattern" json:"code_pattern"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Category    Category `yaml:"category" json:"category"`
	FlowType    FlowType `yaml:"flow_type" json:"flow_type"`
	Key         string   `yaml:"key" json:"key"`

	codeRe     *regexp.Regexp
	keywordRes []*regexp.Regexp
}

// RuleTable holds every layer the classifier evaluates, in precedence order.
type RuleTable struct {
	Buckets         []Rule   `yaml:"buckets" json:"buckets"`
	CodeRanges      []Rule   `yaml:"code_ranges" json:"code_ranges"`
	ExpenseBuckets  []Rule   `yaml:"expense_buckets" json:"expense_buckets"`
	Keywords        []Rule   `yaml:"keywords" json:"keywords"`
	FlowTypes       []Rule   `yaml:"flow_types" json:"flow_types"`
	DefaultFlowType FlowType `yaml:"default_flow_type" json:"default_flow_type"`
	Summaries       []Rule   `yaml:"summaries" json:"summaries"`
	SummaryPrefixes []string `yaml:"summary_prefixes" json:"summary_prefixes"`
}

// compile validates the table and prepares its patterns.
func (t *RuleTable) compile() error {
	layers := []struct {
		name  string
		rules []Rule
	}{
		{"buckets", t.Buckets},
		{"code_ranges", t.CodeRanges},
		{"expense_buckets", t.ExpenseBuckets},
		{"keywords", t.Keywords},
	}
	for _, layer := range layers {
		for i := range layer.rules {
			r := &layer.rules[i]
			if !r.Category.Valid() {
				return fmt.Errorf("%s rule %q: invalid category %q", layer.name, r.Name, r.Category)
			}
			if err := r.compile(false); err != nil {
				return fmt.Errorf("%s rule %q: %w", layer.name, r.Name, err)
			}
		}
	}
	for i := range t.FlowTypes {
		r := &t.FlowTypes[i]
		if !r.FlowType.Valid() {
			return fmt.Errorf("flow_types rule %q: invalid flow type %q", r.Name, r.FlowType)
		}
		if err := r.compile(false); err != nil {
			return fmt.Errorf("flow_types rule %q: %w", r.Name, err)
		}
	}
	for i := range t.Summaries {
		r := &t.Summaries[i]
		if r.Key == "" {
			return fmt.Errorf("summaries rule %q: missing key", r.Name)
		}
		if err := r.compile(true); err != nil {
			return fmt.Errorf("summaries rule %q: %w", r.Name, err)
		}
	}
	if t.DefaultFlowType != FlowUnknown && !t.DefaultFlowType.Valid() {
		return fmt.Errorf("invalid default_flow_type %q", t.DefaultFlowType)
	}
	return nil
}

// compile builds the rule's regexps. Keywords match at the start of a word so
// "rent" does not fire inside "current"; anchored keywords must open the name.
func (r *Rule) compile(anchored bool) error {
	if len(r.Codes) == 0 && r.CodePattern == "" && len(r.Keywords) == 0 {
		return fmt.Errorf("rule declares no condition")
	}
	if r.CodePattern != "" {
		re, err := regexp.Compile(r.CodePattern)
		if err != nil {
			return fmt.Errorf("bad code_pattern: %w", err)
		}
		r.codeRe = re
	}
	r.keywordRes = r.keywordRes[:0]
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		expr := `(^|[^a-z0-9])` + regexp.QuoteMeta(kw)
		if anchored {
			expr = `^` + regexp.QuoteMeta(kw) + `($|[^a-z0-9])`
		}
		r.keywordRes = append(r.keywordRes, regexp.MustCompile(expr))
	}
	return nil
}

// Matches is the single generic predicate behind every layer.
func (r *Rule) Matches(code, name string) bool {
	if len(r.Codes) > 0 {
		if code == "" || !containsString(r.Codes, code) {
			return false
		}
	}
	if r.codeRe != nil {
		if code == "" || !r.codeRe.MatchString(code) {
			return false
		}
	}
	if len(r.keywordRes) > 0 {
		lower := strings.ToLower(strings.TrimSpace(name))
		hit := false
		for _, re := range r.keywordRes {
			if re.MatchString(lower) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// firstMatch returns the first rule in order that matches, or nil.
func firstMatch(rules []Rule, code, name string) *Rule {
	for i := range rules {
		if rules[i].Matches(code, name) {
			return &rules[i]
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == s {
			return true
		}
	}
	return false
}

// =============================================================================
// LOADING
// =============================================================================

// DefaultRules returns the embedded rule table.
func DefaultRules() (*RuleTable, error) {
	data, err := defaultRulesFS.ReadFile("rules/default_rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded rules: %w", err)
	}
	return ParseRules(data, "yaml")
}

// LoadRules reads a rule table from disk. YAML (.yaml/.yml) and Hjson/JSON
// (.hjson/.json) are accepted, so hand-edited tables may carry comments.
func LoadRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ParseRules(data, format)
}

// ParseRules decodes and validates a rule table in the given format.
func ParseRules(data []byte, format string) (*RuleTable, error) {
	var table RuleTable
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse yaml rules: %w", err)
		}
	case "hjson", "json":
		if err := hjson.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse hjson rules: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported rules format %q", format)
	}
	if err := table.compile(); err != nil {
		return nil, err
	}
	return &table, nil
}
