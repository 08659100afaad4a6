package extract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"portfolio_financials/pkg/core/normalize"
)

// Investment is one row of the acquisitions master sheet.
type Investment struct {
	AssetID         string          `json:"asset_id"`
	AssetIDPlusName string          `json:"asset_id_plus_name,omitempty"`
	PortfolioName   string          `json:"portfolio_name,omitempty"`
	Address         string          `json:"address,omitempty"`
	City            string          `json:"city,omitempty"`
	State           string          `json:"state,omitempty"`
	Units           int             `json:"units"`
	ProformaRevenue decimal.Decimal `json:"proforma_revenue"`
	EGI             decimal.Decimal `json:"egi"`
	NOI             decimal.Decimal `json:"noi"`
	GoingInNOI      decimal.Decimal `json:"going_in_noi"`
	GoingInCapRate  float64         `json:"going_in_cap_rate"`
	ProformaOpex    decimal.Decimal `json:"proforma_operating_expenses"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	DownPayment     decimal.Decimal `json:"down_payment"`
	AppraisedValue  decimal.Decimal `json:"appraised_value"`
	AssessedValue   decimal.Decimal `json:"assessed_value"`
	DebtInitial     decimal.Decimal `json:"debt1_initial"`
	DebtService     decimal.Decimal `json:"debt_service"`
	LTVRatio        float64         `json:"ltv_ratio"`
	DSVRatio        float64         `json:"dsv_ratio"`
	InterestRate    float64         `json:"debt1_int_rate"`
	MaturityDate    *time.Time      `json:"maturity_date,omitempty"`
	NewConstruction *bool           `json:"new_construction,omitempty"`
	Section8Units   *bool           `json:"section_8_units,omitempty"`

	// Expenses holds the proforma expense columns that carry a value, keyed
	// by column label ("Exp - Utilities").
	Expenses      map[string]decimal.Decimal `json:"expenses,omitempty"`
	MissingFields []string                   `json:"missing_fields,omitempty"`
}

// ExpenseColumn ties a proforma expense column to its expense bucket.
type ExpenseColumn struct {
	Label  string
	Bucket string
}

// ExpenseColumns lists the master sheet's per-bucket expense columns in
// sheet order.
var ExpenseColumns = []ExpenseColumn{
	{Label: "Exp - Tax - Prop", Bucket: "property-tax"},
	{Label: "Exp - Prop Ins.", Bucket: "insurance"},
	{Label: "Exp - Utilities", Bucket: "utilities"},
	{Label: "Exp - R&M", Bucket: "maintenance"},
	{Label: "Exp - Payroll", Bucket: "payroll"},
	{Label: "Exp - Garbage", Bucket: "utilities"},
	{Label: "Exp - PM Fee + Admin", Bucket: "management"},
}

// investment sheet column labels.
const (
	colAssetID         = "Asset ID"
	colAssetIDPlusName = "Asset ID + Name"
	colPortfolio       = "Portfolio Name"
	colAddress         = "Address"
	colCity            = "City"
	colState           = "State"
	colUnits           = "Units"
	colProformaRevenue = "Proforma Revenue"
	colEGI             = "EGI"
	colNOI             = "NOI"
	colGoingInNOI      = "Going-in NOI"
	colGoingInCap      = "Going-In Cap Rate"
	colProformaOpex    = "Proforma Operating Expenses"
	colPurchasePrice   = "Purchase Price"
	colDownPayment     = "Down Payment"
	colAppraised       = "APPRAISED VALUE"
	colAssessed        = "Assessed Value"
	colDebtInitial     = "Debt1 - Initial"
	colDebtService     = "Debt Service"
	colLTV             = "LTV Ratio"
	colDSV             = "DSV Ratio"
	colInterestRate    = "Debt1 - Int Rate"
	colMaturity        = "Maturity Date"
	colNewConst        = "New Const?"
	colSection8        = "Sect 8 Units?"
)

// requiredFinancials are reported in MissingFields when blank.
var requiredFinancials = []string{colNOI, colProformaRevenue, colProformaOpex, colPurchasePrice}

// ParseInvestments reads the acquisitions master sheet. The header row is the
// first row within window holding an "Asset ID" cell; rows without an Asset ID
// are dropped. ok is false when no header row exists.
func ParseInvestments(g *Grid, window int) (investments []Investment, ok bool) {
	headerRow, _, found := FindLabelRow(g, colAssetID, window)
	if !found {
		return nil, false
	}

	columns := make(map[string]int)
	for c := range g.Rows[headerRow] {
		label := strings.ToLower(g.Text(headerRow, c))
		if label == "" {
			continue
		}
		if _, dup := columns[label]; !dup {
			columns[label] = c
		}
	}
	cell := func(row int, label string) any {
		c, ok := columns[strings.ToLower(label)]
		if !ok {
			return nil
		}
		return g.Cell(row, c)
	}

	for row := headerRow + 1; row < g.NumRows(); row++ {
		assetID := normalize.Text(cell(row, colAssetID))
		if assetID == "" {
			continue
		}

		inv := Investment{
			AssetID:         assetID,
			AssetIDPlusName: normalize.Text(cell(row, colAssetIDPlusName)),
			PortfolioName:   normalize.Text(cell(row, colPortfolio)),
			Address:         normalize.Text(cell(row, colAddress)),
			City:            normalize.Text(cell(row, colCity)),
			State:           normalize.Text(cell(row, colState)),
			Units:           normalize.ParseInt(cell(row, colUnits)),
			ProformaRevenue: normalize.ParseAmount(cell(row, colProformaRevenue)),
			EGI:             normalize.ParseAmount(cell(row, colEGI)),
			NOI:             normalize.ParseAmount(cell(row, colNOI)),
			GoingInNOI:      normalize.ParseAmount(cell(row, colGoingInNOI)),
			GoingInCapRate:  normalize.ParsePercent(cell(row, colGoingInCap)),
			ProformaOpex:    normalize.ParseAmount(cell(row, colProformaOpex)),
			PurchasePrice:   normalize.ParseAmount(cell(row, colPurchasePrice)),
			DownPayment:     normalize.ParseAmount(cell(row, colDownPayment)),
			AppraisedValue:  normalize.ParseAmount(cell(row, colAppraised)),
			AssessedValue:   normalize.ParseAmount(cell(row, colAssessed)),
			DebtInitial:     normalize.ParseAmount(cell(row, colDebtInitial)),
			DebtService:     normalize.ParseAmount(cell(row, colDebtService)),
			LTVRatio:        normalize.ParsePercent(cell(row, colLTV)),
			DSVRatio:        normalize.ParsePercent(cell(row, colDSV)),
			InterestRate:    normalize.ParsePercent(cell(row, colInterestRate)),
			MaturityDate:    normalize.ParseDate(cell(row, colMaturity)),
			NewConstruction: normalize.ParseBool(cell(row, colNewConst)),
			Section8Units:   normalize.ParseBool(cell(row, colSection8)),
		}
		for _, col := range ExpenseColumns {
			amount, err := normalize.Monetary(cell(row, col.Label))
			if err != nil {
				continue
			}
			if inv.Expenses == nil {
				inv.Expenses = make(map[string]decimal.Decimal)
			}
			inv.Expenses[col.Label] = amount
		}
		for _, label := range requiredFinancials {
			if _, err := normalize.Monetary(cell(row, label)); err != nil {
				inv.MissingFields = append(inv.MissingFields, label)
			}
		}
		investments = append(investments, inv)
	}
	return investments, true
}

// IndexInvestments keys investments by asset id for purchase-price lookups.
func IndexInvestments(investments []Investment) map[string]Investment {
	out := make(map[string]Investment, len(investments))
	for _, inv := range investments {
		out[inv.AssetID] = inv
	}
	return out
}
