package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio_financials/pkg/core/extract"
)

// InvestmentRepo stores the acquisitions master sheet keyed by asset id.
type InvestmentRepo struct {
	pool *pgxpool.Pool
}

// NewInvestmentRepo creates a new investment repository
func NewInvestmentRepo(pool *pgxpool.Pool) *InvestmentRepo {
	return &InvestmentRepo{pool: pool}
}

// SaveAll upserts every investment in one batch.
func (r *InvestmentRepo) SaveAll(ctx context.Context, investments []extract.Investment) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}

	query := `
		INSERT INTO investments (asset_id, asset_name, portfolio_name, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (asset_id)
		DO UPDATE SET
			asset_name = EXCLUDED.asset_name,
			portfolio_name = EXCLUDED.portfolio_name,
			data = EXCLUDED.data,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, inv := range investments {
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("failed to marshal investment %s: %w", inv.AssetID, err)
		}
		batch.Queue(query, inv.AssetID, inv.AssetIDPlusName, inv.PortfolioName, data)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, inv := range investments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save investment %s: %w", inv.AssetID, err)
		}
	}
	return nil
}

// Get loads one investment.
func (r *InvestmentRepo) Get(ctx context.Context, assetID string) (*extract.Investment, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}

	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM investments WHERE asset_id = $1`, assetID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no investment found for asset %s", assetID)
		}
		return nil, fmt.Errorf("failed to load investment: %w", err)
	}

	var inv extract.Investment
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal investment: %w", err)
	}
	return &inv, nil
}

// PurchasePrice is the price the estimator divides by, 0 when unknown.
func (r *InvestmentRepo) PurchasePrice(ctx context.Context, assetID string) float64 {
	inv, err := r.Get(ctx, assetID)
	if err != nil {
		return 0
	}
	return inv.PurchasePrice.InexactFloat64()
}
