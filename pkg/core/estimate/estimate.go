// Package estimate substitutes a rent-roll estimate when a property's primary
// statement is missing or carries zero core totals. Every substitution is
// tagged with its completeness so an estimate is never shown as reported data.
package estimate

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/statement"
)

// Completeness tags where a statement's figures came from.
type Completeness string

const (
	Complete   Completeness = "complete"
	Partial    Completeness = "partial"
	Calculated Completeness = "calculated"
	Missing    Completeness = "missing"
)

// Data sources.
const (
	SourcePrimary        = "primary"
	SourcePrimaryWithNOI = "primary_noi_margin"
	SourceRentRoll       = "rent_roll_calculated"
	SourceNone           = "none"
)

// PeriodRentRoll is the period key of a rent-roll estimate, which is monthly.
const PeriodRentRoll = "RentRoll"

const (
	rentRollRevenueAccount = "Rent Roll Revenue"
	estimatedExpenseName   = "Estimated Operating Expense"
)

// Primary-source field names reported in MissingFields.
const (
	FieldNOI               = "NOI"
	FieldRevenue           = "Proforma Revenue"
	FieldOperatingExpenses = "Operating Expenses"
)

// Config holds the business assumptions behind an estimate.
type Config struct {
	// NOIMargin is the share of monthly revenue kept as NOI.
	NOIMargin float64 `yaml:"noi_margin" json:"noi_margin"`
	// OccupiedStatuses are rent-roll status prefixes counted as occupied.
	OccupiedStatuses []string                     `yaml:"occupied_statuses" json:"occupied_statuses"`
	Occupancy        analysis.OccupancyThresholds `yaml:"occupancy" json:"occupancy"`
}

// DefaultConfig is a 60% margin over occupied and on-notice units.
func DefaultConfig() Config {
	return Config{
		NOIMargin:        0.60,
		OccupiedStatuses: []string{"occupied", "current", "notice"},
		Occupancy:        analysis.DefaultOccupancyThresholds(),
	}
}

// EstimatedStatement is a statement plus the tags describing how it was built.
type EstimatedStatement struct {
	statement.Statement
	DataCompleteness Completeness       `json:"data_completeness"`
	MissingFields    []string           `json:"missing_fields"`
	DataSource       string             `json:"data_source"`
	NOIMargin        float64            `json:"noi_margin"`
	MonthlyRevenue   decimal.Decimal    `json:"monthly_revenue"`
	EstimatedNOI     decimal.Decimal    `json:"estimated_noi"`
	CapRate          float64            `json:"cap_rate"`
	Occupancy        analysis.Occupancy `json:"occupancy"`
}

// Outcome is either the primary statement or an estimate, never both.
type Outcome struct {
	Statement *statement.Statement `json:"statement,omitempty"`
	Estimate  *EstimatedStatement  `json:"estimate,omitempty"`
}

// Completeness of whichever statement the outcome carries.
func (o Outcome) Completeness() Completeness {
	if o.Estimate != nil {
		return o.Estimate.DataCompleteness
	}
	return Complete
}

// NOI of whichever statement the outcome carries.
func (o Outcome) NOI() decimal.Decimal {
	switch {
	case o.Estimate != nil:
		return o.Estimate.EstimatedNOI
	case o.Statement != nil:
		return o.Statement.NOI()
	}
	return decimal.Zero
}

// Estimator applies a Config.
type Estimator struct {
	cfg Config
	log zerolog.Logger
}

// NewEstimator fills unset assumptions from DefaultConfig.
func NewEstimator(cfg Config, log zerolog.Logger) *Estimator {
	def := DefaultConfig()
	if cfg.NOIMargin <= 0 {
		cfg.NOIMargin = def.NOIMargin
	}
	if len(cfg.OccupiedStatuses) == 0 {
		cfg.OccupiedStatuses = def.OccupiedStatuses
	}
	if cfg.Occupancy == (analysis.OccupancyThresholds{}) {
		cfg.Occupancy = def.Occupancy
	}
	return &Estimator{cfg: cfg, log: log}
}

// Config returns the assumptions in effect.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Needed reports whether the primary statement has no rows or a zero revenue
// or NOI total.
func Needed(primary *statement.Statement) bool {
	if primary == nil || primary.Empty() {
		return true
	}
	return primary.Revenue().IsZero() || primary.NOI().IsZero()
}

// EstimateIfIncomplete returns the primary statement untouched when it is
// complete. Otherwise:
//   - revenue present, NOI zero: Partial, NOI = revenue x margin over the
//     primary period.
//   - no primary revenue: Calculated from occupied units' current rent
//     (monthly), or Missing when the rent roll yields no revenue either.
//
// purchasePrice <= 0 leaves the cap rate at 0.
func (e *Estimator) EstimateIfIncomplete(primary *statement.Statement, units []Unit, purchasePrice float64) Outcome {
	if !Needed(primary) {
		return Outcome{Statement: primary}
	}

	missing := missingFields(primary)
	var est *EstimatedStatement
	if primary != nil && !primary.Empty() && !primary.Revenue().IsZero() {
		est = e.partial(*primary, purchasePrice)
	} else {
		est = e.fromRentRoll(units, purchasePrice)
	}
	est.MissingFields = missing
	est.Occupancy = e.occupancy(units)

	e.log.Info().
		Str("data_completeness", string(est.DataCompleteness)).
		Str("data_source", est.DataSource).
		Strs("missing_fields", missing).
		Float64("noi_margin", est.NOIMargin).
		Msg("primary statement incomplete, substituting estimate")
	return Outcome{Estimate: est}
}

func missingFields(primary *statement.Statement) []string {
	if primary == nil || primary.Empty() {
		return []string{FieldNOI, FieldRevenue, FieldOperatingExpenses}
	}
	var missing []string
	if primary.NOI().IsZero() {
		missing = append(missing, FieldNOI)
	}
	if primary.Revenue().IsZero() {
		missing = append(missing, FieldRevenue)
	}
	if primary.Expenses().IsZero() {
		missing = append(missing, FieldOperatingExpenses)
	}
	return missing
}

func (e *Estimator) partial(primary statement.Statement, price float64) *EstimatedStatement {
	margin := decimal.NewFromFloat(e.cfg.NOIMargin)
	noi := primary.Revenue().Mul(margin)
	return &EstimatedStatement{
		Statement:        primary,
		DataCompleteness: Partial,
		DataSource:       SourcePrimaryWithNOI,
		NOIMargin:        e.cfg.NOIMargin,
		EstimatedNOI:     noi,
		CapRate:          statement.CapRate(noi.InexactFloat64(), primary.PeriodMonths, price),
	}
}

func (e *Estimator) fromRentRoll(units []Unit, price float64) *EstimatedStatement {
	revenue := e.MonthlyRevenue(units)
	if revenue.IsZero() {
		return &EstimatedStatement{
			Statement:        statement.FromClassified(statement.TypeIncome, PeriodRentRoll, nil).WithPeriodMonths(1),
			DataCompleteness: Missing,
			DataSource:       SourceNone,
			NOIMargin:        e.cfg.NOIMargin,
		}
	}

	margin := decimal.NewFromFloat(e.cfg.NOIMargin)
	noi := revenue.Mul(margin)
	items := []statement.ClassifiedLineItem{
		{
			LineItem: statement.LineItem{AccountName: rentRollRevenueAccount, Amount: revenue, PeriodKey: PeriodRentRoll},
			Category: classify.CategoryRevenue,
			FlowType: classify.FlowOperating,
		},
		{
			LineItem: statement.LineItem{AccountName: estimatedExpenseName, Amount: revenue.Sub(noi), PeriodKey: PeriodRentRoll},
			Category: classify.CategoryExpenseOther,
			FlowType: classify.FlowOperating,
		},
	}
	return &EstimatedStatement{
		Statement:        statement.FromClassified(statement.TypeIncome, PeriodRentRoll, items).WithPeriodMonths(1),
		DataCompleteness: Calculated,
		DataSource:       SourceRentRoll,
		NOIMargin:        e.cfg.NOIMargin,
		MonthlyRevenue:   revenue,
		EstimatedNOI:     noi,
		CapRate:          statement.CapRate(noi.InexactFloat64(), 1, price),
	}
}

// MonthlyRevenue sums current rent over occupied units.
func (e *Estimator) MonthlyRevenue(units []Unit) decimal.Decimal {
	total := decimal.Zero
	for _, u := range units {
		if e.Occupied(u) {
			total = total.Add(decimal.NewFromFloat(u.CurrentRent))
		}
	}
	return total
}

// Occupied matches the unit status against the configured prefixes.
func (e *Estimator) Occupied(u Unit) bool {
	status := strings.ToLower(strings.TrimSpace(u.Status))
	if status == "" {
		return false
	}
	for _, s := range e.cfg.OccupiedStatuses {
		if s != "" && strings.HasPrefix(status, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func (e *Estimator) occupancy(units []Unit) analysis.Occupancy {
	occupied := 0
	for _, u := range units {
		if e.Occupied(u) {
			occupied++
		}
	}
	return analysis.NewOccupancy(occupied, len(units), e.cfg.Occupancy)
}
