package estimate

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/statement"
)

func newEstimator() *Estimator {
	return NewEstimator(DefaultConfig(), logger.Nop())
}

func primaryStatement(t *testing.T, records []extract.Record) *statement.Statement {
	t.Helper()
	c, err := classify.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	s := statement.ExtractStatement(records, statement.TypeCashFlow, statement.PeriodSelected, c)
	return &s
}

var rentRoll = []Unit{
	{Unit: "101", Status: "Occupied", CurrentRent: 1000},
	{Unit: "102", Status: "Vacant-Unrented", CurrentRent: 900},
	{Unit: "103", Status: "Notice-Rented", CurrentRent: 1100},
}

func TestEstimateIfIncomplete_CompletePrimaryPassesThrough(t *testing.T) {
	primary := primaryStatement(t, []extract.Record{
		{"AccountName": "Total Income", "SelectedPeriod": "67200.00"},
		{"AccountName": "Total Expense", "SelectedPeriod": "25536.00"},
	})
	out := newEstimator().EstimateIfIncomplete(primary, rentRoll, 280000)
	if out.Estimate != nil || out.Statement != primary {
		t.Fatalf("complete primary must be returned untouched, got %+v", out)
	}
	if out.Completeness() != Complete {
		t.Errorf("Completeness() = %s, want complete", out.Completeness())
	}
	if !out.NOI().Equal(decimal.NewFromInt(41664)) {
		t.Errorf("NOI() = %s, want 41664", out.NOI())
	}
}

func TestEstimateIfIncomplete_CalculatedFromRentRoll(t *testing.T) {
	out := newEstimator().EstimateIfIncomplete(nil, rentRoll, 280000)
	est := out.Estimate
	if est == nil {
		t.Fatal("expected an estimate for a missing primary statement")
	}
	if est.DataCompleteness != Calculated || est.DataSource != SourceRentRoll {
		t.Errorf("tags = %s/%s, want calculated/rent_roll_calculated", est.DataCompleteness, est.DataSource)
	}
	wantMissing := []string{FieldNOI, FieldRevenue, FieldOperatingExpenses}
	if strings.Join(est.MissingFields, ",") != strings.Join(wantMissing, ",") {
		t.Errorf("MissingFields = %v, want %v", est.MissingFields, wantMissing)
	}
	if !est.MonthlyRevenue.Equal(decimal.NewFromInt(2100)) {
		t.Errorf("MonthlyRevenue = %s, want 2100", est.MonthlyRevenue)
	}
	if !est.EstimatedNOI.Equal(decimal.NewFromInt(1260)) {
		t.Errorf("EstimatedNOI = %s, want 1260", est.EstimatedNOI)
	}
	if !est.NOI().Equal(est.EstimatedNOI) {
		t.Errorf("statement NOI() = %s, want it to match EstimatedNOI", est.NOI())
	}
	if est.NOIMargin != 0.60 {
		t.Errorf("NOIMargin = %v, must be surfaced as 0.60", est.NOIMargin)
	}
	if est.PeriodMonths != 1 {
		t.Errorf("PeriodMonths = %d, rent-roll estimates are monthly", est.PeriodMonths)
	}
	// (1260 * 12) / 280000
	if math.Abs(est.CapRate-5.4) > 1e-9 {
		t.Errorf("CapRate = %v, want 5.4", est.CapRate)
	}
	if est.Occupancy.Occupied != 2 || est.Occupancy.Total != 3 || est.Occupancy.Label != analysis.OccupancyConcern {
		t.Errorf("Occupancy = %+v", est.Occupancy)
	}
}

func TestEstimateIfIncomplete_EmptyRentRollIsMissing(t *testing.T) {
	tests := []struct {
		name    string
		primary *statement.Statement
		units   []Unit
	}{
		{"No primary, no units", nil, nil},
		{"Zero primary, vacant units", primaryStatement(t, []extract.Record{
			{"AccountName": "Total Income", "SelectedPeriod": "0.00"},
		}), []Unit{{Unit: "1", Status: "Vacant", CurrentRent: 950}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newEstimator().EstimateIfIncomplete(tt.primary, tt.units, 280000)
			if out.Estimate == nil {
				t.Fatal("expected an estimate")
			}
			if out.Completeness() != Missing {
				t.Errorf("Completeness() = %s, want missing", out.Completeness())
			}
			if !out.NOI().IsZero() || out.Estimate.CapRate != 0 {
				t.Errorf("missing estimate must not fabricate figures: NOI %s cap %v", out.NOI(), out.Estimate.CapRate)
			}
			if out.Estimate.DataSource != SourceNone {
				t.Errorf("DataSource = %s, want none", out.Estimate.DataSource)
			}
		})
	}
}

func TestEstimateIfIncomplete_PartialKeepsPrimaryRevenue(t *testing.T) {
	primary := primaryStatement(t, []extract.Record{
		{"AccountCode": "4100", "AccountName": "Rent Income", "SelectedPeriod": "10,000.00"},
		{"AccountCode": "6100", "AccountName": "Repairs", "SelectedPeriod": "10,000.00"},
	})
	out := newEstimator().EstimateIfIncomplete(primary, rentRoll, 240000)
	est := out.Estimate
	if est == nil || est.DataCompleteness != Partial {
		t.Fatalf("expected partial estimate, got %+v", out)
	}
	if len(est.MissingFields) != 1 || est.MissingFields[0] != FieldNOI {
		t.Errorf("MissingFields = %v, want [NOI]", est.MissingFields)
	}
	if !est.EstimatedNOI.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("EstimatedNOI = %s, want 6000", est.EstimatedNOI)
	}
	if !est.Revenue().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Revenue() = %s, primary revenue must be kept", est.Revenue())
	}
	// 12-month period: 6000 / 240000
	if math.Abs(est.CapRate-2.5) > 1e-9 {
		t.Errorf("CapRate = %v, want 2.5", est.CapRate)
	}
}

func TestEstimateIfIncomplete_UnknownPriceLeavesCapRateZero(t *testing.T) {
	out := newEstimator().EstimateIfIncomplete(nil, rentRoll, 0)
	if out.Estimate.CapRate != 0 {
		t.Errorf("CapRate = %v, want 0", out.Estimate.CapRate)
	}
}

func TestEstimateIfIncomplete_ConfiguredMargin(t *testing.T) {
	e := NewEstimator(Config{NOIMargin: 0.5}, logger.Nop())
	out := e.EstimateIfIncomplete(nil, rentRoll, 0)
	if !out.Estimate.EstimatedNOI.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("EstimatedNOI = %s, want 1050 at 50%%", out.Estimate.EstimatedNOI)
	}
	if len(e.Config().OccupiedStatuses) == 0 {
		t.Error("unset OccupiedStatuses should fall back to defaults")
	}
}

func TestEstimateIfIncomplete_LogsSubstitution(t *testing.T) {
	var buf bytes.Buffer
	e := NewEstimator(DefaultConfig(), logger.NewWithWriter(&buf))
	e.EstimateIfIncomplete(nil, rentRoll, 0)
	if !strings.Contains(buf.String(), `"data_completeness":"calculated"`) {
		t.Errorf("expected substitution log, got %q", buf.String())
	}
}

func TestNeeded(t *testing.T) {
	if !Needed(nil) {
		t.Error("Needed(nil) = false")
	}
	empty := primaryStatement(t, nil)
	if !Needed(empty) {
		t.Error("Needed(no rows) = false")
	}
	full := primaryStatement(t, []extract.Record{
		{"AccountName": "Total Income", "SelectedPeriod": "100"},
		{"AccountName": "Net Operating Income", "SelectedPeriod": "40"},
	})
	if Needed(full) {
		t.Error("Needed(complete) = true")
	}
}

func TestParseUnits(t *testing.T) {
	units := ParseUnits([]extract.Record{
		{"Unit": "101", "Status": "Occupied", "CurrentRent": "$1,250.00", "MarketRent": "1,300"},
		{"unit": "102", "status": "Vacant", "currentRent": ""},
		{"Notes": "footer"},
	})
	if len(units) != 2 {
		t.Fatalf("len(units) = %d, want 2", len(units))
	}
	if units[0].CurrentRent != 1250 || units[0].MarketRent == nil || *units[0].MarketRent != 1300 {
		t.Errorf("units[0] = %+v", units[0])
	}
	if units[1].CurrentRent != 0 || units[1].MarketRent != nil {
		t.Errorf("units[1] = %+v", units[1])
	}
}
