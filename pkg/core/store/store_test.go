package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/statement"
)

func sampleOutcome(t *testing.T) estimate.Outcome {
	t.Helper()
	c, err := classify.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	s := statement.ExtractStatement([]extract.Record{
		{"AccountName": "Total Income", "SelectedPeriod": "67200.00"},
		{"AccountName": "Total Expense", "SelectedPeriod": "25536.00"},
	}, statement.TypeCashFlow, statement.PeriodSelected, c)
	return estimate.Outcome{Statement: &s}
}

func TestStatementVault_FileRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, err := NewStatementVault(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewStatementVault() error = %v", err)
	}

	saved, err := v.Save(ctx, "S0010", sampleOutcome(t))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.StatementType != statement.TypeCashFlow || saved.DataCompleteness != estimate.Complete || saved.DataSource != estimate.SourcePrimary {
		t.Errorf("saved = %+v", saved)
	}

	got, err := v.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Outcome.Statement == nil || !got.Outcome.NOI().Equal(decimal.NewFromInt(41664)) {
		t.Errorf("loaded NOI = %s, want 41664", got.Outcome.NOI())
	}
}

func TestStatementVault_LatestAndList(t *testing.T) {
	ctx := context.Background()
	v, _ := NewStatementVault(nil, t.TempDir())

	first, _ := v.Save(ctx, "S0010", sampleOutcome(t))
	time.Sleep(5 * time.Millisecond)
	est := estimate.NewEstimator(estimate.DefaultConfig(), logger.Nop()).
		EstimateIfIncomplete(nil, []estimate.Unit{{Unit: "1", Status: "Occupied", CurrentRent: 1000}}, 0)
	second, _ := v.Save(ctx, "S0010", est)
	v.Save(ctx, "S0022", sampleOutcome(t))

	entries, err := v.List(ctx, "S0010")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Errorf("List() returned %d entries in wrong order", len(entries))
	}
	if entries[0].DataCompleteness != estimate.Calculated || entries[0].DataSource != estimate.SourceRentRoll {
		t.Errorf("estimate entry = %+v", entries[0])
	}

	latest, err := v.Latest(ctx, "S0010", statement.TypeCashFlow, statement.PeriodSelected)
	if err != nil || latest.ID != first.ID {
		t.Errorf("Latest(cash_flow) = %s, %v; want %s", latest.ID, err, first.ID)
	}
	if _, err := v.Latest(ctx, "S0010", statement.TypeBalanceSheet, statement.PeriodSelected); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(balance_sheet) error = %v, want ErrNotFound", err)
	}
}

func TestStatementVault_GetErrors(t *testing.T) {
	v, _ := NewStatementVault(nil, t.TempDir())
	if _, err := v.Get(context.Background(), "not-a-uuid"); err == nil {
		t.Error("expected error for malformed id")
	}
	if _, err := v.Get(context.Background(), "6f1c2a4e-3b7d-4c1e-9a0f-2d5b8e7c6a91"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := v.Save(context.Background(), "", sampleOutcome(t)); err == nil {
		t.Error("expected error for empty property code")
	}
}

func TestInvestmentRepo_NoPool(t *testing.T) {
	r := NewInvestmentRepo(nil)
	if err := r.SaveAll(context.Background(), []extract.Investment{{AssetID: "S0010"}}); err == nil {
		t.Error("SaveAll without pool should fail")
	}
	if _, err := r.Get(context.Background(), "S0010"); err == nil {
		t.Error("Get without pool should fail")
	}
	if got := r.PurchasePrice(context.Background(), "S0010"); got != 0 {
		t.Errorf("PurchasePrice() = %v, want 0", got)
	}
}

func TestMigrate_NoPool(t *testing.T) {
	if err := Migrate(context.Background(), nil); err == nil {
		t.Error("Migrate(nil) should fail")
	}
}
