package estimate

import (
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/normalize"
)

// Unit is one rent-roll row.
type Unit struct {
	Unit        string   `json:"unit"`
	Status      string   `json:"status"`
	CurrentRent float64  `json:"current_rent"`
	MarketRent  *float64 `json:"market_rent,omitempty"`
}

// Rent-roll field spellings seen in upstream exports.
var (
	unitFields        = []string{"unit", "Unit", "UnitNumber", "unit_number"}
	statusFields      = []string{"status", "Status", "UnitStatus", "unit_status"}
	currentRentFields = []string{"currentRent", "CurrentRent", "current_rent", "Rent"}
	marketRentFields  = []string{"marketRent", "MarketRent", "market_rent"}
)

// ParseUnits reads rent-roll records. Rows with neither a unit nor a status
// are dropped; rents that do not parse read as 0.
func ParseUnits(records []extract.Record) []Unit {
	units := make([]Unit, 0, len(records))
	for _, r := range records {
		u := Unit{
			Unit:        r.Text(unitFields...),
			Status:      r.Text(statusFields...),
			CurrentRent: normalize.ParseMonetary(first(r, currentRentFields)),
		}
		if u.Unit == "" && u.Status == "" {
			continue
		}
		if v, ok := r.First(marketRentFields...); ok {
			if m, err := normalize.Monetary(v); err == nil {
				f := m.InexactFloat64()
				u.MarketRent = &f
			}
		}
		units = append(units, u)
	}
	return units
}

func first(r extract.Record, keys []string) any {
	v, _ := r.First(keys...)
	return v
}
