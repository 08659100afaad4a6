// Package extract locates structure inside loosely laid out spreadsheet grids
// and upstream report records and yields raw per-property, per-account values.
//
// Extraction is total: out-of-range cells, missing rows and unparseable values
// degrade to zero (and to a MissingFields entry) instead of failing the sheet.
package extract

import (
	"portfolio_financials/pkg/core/normalize"

	"github.com/shopspring/decimal"
)

// Grid is one already-loaded sheet: rows of cells holding string, number or nil.
type Grid struct {
	Name string
	Rows [][]any
}

// NewGrid wraps rows as a named sheet.
func NewGrid(name string, rows [][]any) *Grid {
	return &Grid{Name: name, Rows: rows}
}

// GridFromStrings is a convenience for text-only sources (CSV, tests).
func GridFromStrings(name string, rows [][]string) *Grid {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return NewGrid(name, out)
}

// NumRows returns the number of rows in the sheet.
func (g *Grid) NumRows() int {
	if g == nil {
		return 0
	}
	return len(g.Rows)
}

// Cell returns the raw cell, or nil when (row, col) is outside the sheet.
func (g *Grid) Cell(row, col int) any {
	if g == nil || row < 0 || row >= len(g.Rows) {
		return nil
	}
	cells := g.Rows[row]
	if col < 0 || col >= len(cells) {
		return nil
	}
	return cells[col]
}

// Text returns the cell as trimmed text.
func (g *Grid) Text(row, col int) string {
	return normalize.Text(g.Cell(row, col))
}

// Amount returns the cell as a monetary amount, zero when absent or malformed.
func (g *Grid) Amount(row, col int) decimal.Decimal {
	return normalize.ParseAmount(g.Cell(row, col))
}

// Value returns the cell as a float, zero when absent or malformed.
func (g *Grid) Value(row, col int) float64 {
	return normalize.ParseMonetary(g.Cell(row, col))
}
