package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"portfolio_financials/pkg/core/llm"
	"portfolio_financials/pkg/core/utils"
)

// Labeler is what statement assembly needs from a classifier.
type Labeler interface {
	Classify(code, name string) Classification
	Summary(name string) (key string, ok bool)
}

var (
	_ Labeler = (*Classifier)(nil)
	_ Labeler = (*Overlay)(nil)
)

// Account identifies a ledger account to classify.
type Account struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

func (a Account) key() string {
	return NormalizeCode(a.Code) + "\x00" + strings.ToLower(strings.TrimSpace(a.Name))
}

// Overlay answers from per-account overrides before falling back to the rules.
type Overlay struct {
	base      *Classifier
	overrides map[string]Classification
}

// NewOverlay wraps base with fixed answers for specific accounts.
func NewOverlay(base *Classifier, overrides map[Account]Classification) *Overlay {
	o := &Overlay{base: base, overrides: make(map[string]Classification, len(overrides))}
	for acct, cl := range overrides {
		o.overrides[acct.key()] = cl
	}
	return o
}

func (o *Overlay) Classify(code, name string) Classification {
	if cl, ok := o.overrides[Account{Code: code, Name: name}.key()]; ok {
		return cl
	}
	return o.base.Classify(code, name)
}

func (o *Overlay) Summary(name string) (string, bool) {
	return o.base.Summary(name)
}

// Overrides is the number of accounts the overlay answers itself.
func (o *Overlay) Overrides() int {
	return len(o.overrides)
}

// =============================================================================
// ASSISTANT
// =============================================================================

// Prompter sends one prompt on behalf of an agent.
type Prompter interface {
	ExecutePrompt(ctx context.Context, agentType, prompt, systemPrompt string, opts llm.Options) (string, error)
}

// Assistant asks a model to place accounts the rule table leaves unclassified.
// The model chooses from the closed category list; anything else is dropped.
type Assistant struct {
	prompter Prompter
	log      zerolog.Logger
}

func NewAssistant(p Prompter, log zerolog.Logger) *Assistant {
	return &Assistant{prompter: p, log: log}
}

const assistSystemPrompt = "You classify real-estate general ledger accounts. " +
	"Reply with JSON only, using exactly the category and flow_type values offered."

type assistAnswer struct {
	Results []struct {
		Index    int    `json:"index"`
		Category string `json:"category"`
		FlowType string `json:"flow_type"`
	} `json:"results"`
}

// Overlay classifies accounts with the rules and sends only the unclassified
// ones to the model. On a provider error the overlay still carries the rule
// results (no overrides) and the error is returned for the caller to log.
func (a *Assistant) Overlay(ctx context.Context, c *Classifier, accounts []Account) (*Overlay, error) {
	var pending []Account
	seen := make(map[string]bool)
	for _, acct := range accounts {
		if acct.Name == "" || seen[acct.key()] {
			continue
		}
		seen[acct.key()] = true
		if _, summary := c.Summary(acct.Name); summary {
			continue
		}
		if !c.Classify(acct.Code, acct.Name).Classified() {
			pending = append(pending, acct)
		}
	}
	if len(pending) == 0 {
		return NewOverlay(c, nil), nil
	}

	reply, err := a.prompter.ExecutePrompt(ctx, llm.AgentClassifier, buildAssistPrompt(pending), assistSystemPrompt, llm.Options{JSON: true})
	if err != nil {
		return NewOverlay(c, nil), fmt.Errorf("classification assistant: %w", err)
	}

	answers, err := parseAssistReply(reply)
	if err != nil {
		return NewOverlay(c, nil), fmt.Errorf("classification assistant: %w", err)
	}

	overrides := make(map[Account]Classification)
	for _, r := range answers.Results {
		if r.Index < 0 || r.Index >= len(pending) {
			continue
		}
		cat := Category(strings.TrimSpace(r.Category))
		if !cat.Valid() || !offered(cat) {
			a.log.Debug().Str("account", pending[r.Index].Name).Str("category", r.Category).Msg("assistant answer outside category list, ignored")
			continue
		}
		flow := FlowType(strings.TrimSpace(r.FlowType))
		if flow != FlowOperating && flow != FlowInvesting && flow != FlowFinancing {
			flow = c.FlowType(pending[r.Index].Code, pending[r.Index].Name)
		}
		overrides[pending[r.Index]] = Classification{Category: cat, FlowType: flow, Layer: LayerAssisted, Rule: "assistant"}
	}

	a.log.Info().Int("pending", len(pending)).Int("classified", len(overrides)).Msg("assistant classification complete")
	return NewOverlay(c, overrides), nil
}

// AssistCategories is the closed list offered to the model.
var AssistCategories = []Category{
	CategoryRevenue,
	CategoryExpenseMaintenance,
	CategoryExpenseUtilities,
	CategoryExpenseManagement,
	CategoryExpensePropertyTax,
	CategoryExpenseInsurance,
	CategoryExpensePayroll,
	CategoryExpenseOther,
	CategoryAssetCurrent,
	CategoryAssetFixed,
	CategoryLiabilityCurrent,
	CategoryLiabilityLongTerm,
	CategoryEquity,
}

func offered(cat Category) bool {
	for _, c := range AssistCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func buildAssistPrompt(pending []Account) string {
	var b strings.Builder
	b.WriteString("Categories: ")
	for i, c := range AssistCategories {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString("\nFlow types: operating, investing, financing\n\nAccounts:\n")
	for i, acct := range pending {
		if acct.Code != "" {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i, acct.Code, acct.Name)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i, acct.Name)
		}
	}
	b.WriteString("\nAnswer as {\"results\": [{\"index\": 0, \"category\": \"...\", \"flow_type\": \"...\"}]}. ")
	b.WriteString("Leave out accounts you cannot place.")
	return b.String()
}

func parseAssistReply(reply string) (assistAnswer, error) {
	var answers assistAnswer
	if err := utils.SmartParse(utils.StripCodeFence(reply), &answers); err != nil {
		return answers, fmt.Errorf("unreadable reply: %w", err)
	}
	return answers, nil
}
