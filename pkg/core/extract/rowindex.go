package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RowIndex finds account rows by phrase and remembers where they were.
// A RowIndex belongs to one sheet extraction; never share it across sheets.
type RowIndex struct {
	grid       *Grid
	nameColumn int
	startRow   int
	cache      map[string]int
}

// NewRowIndex indexes grid rows from startRow on, reading names from nameColumn.
func NewRowIndex(g *Grid, nameColumn, startRow int) *RowIndex {
	if startRow < 0 {
		startRow = 0
	}
	return &RowIndex{
		grid:       g,
		nameColumn: nameColumn,
		startRow:   startRow,
		cache:      make(map[string]int),
	}
}

// Find returns the first row whose name contains phrase (case-insensitive), or -1.
// Misses are cached too.
func (ri *RowIndex) Find(phrase string) int {
	key := strings.ToLower(strings.TrimSpace(phrase))
	if row, ok := ri.cache[key]; ok {
		return row
	}

	found := -1
	if key != "" {
		for row := ri.startRow; row < ri.grid.NumRows(); row++ {
			if strings.Contains(strings.ToLower(ri.grid.Text(row, ri.nameColumn)), key) {
				found = row
				break
			}
		}
	}
	ri.cache[key] = found
	return found
}

// Amount returns the value at (row of phrase, column). found is false when the
// row does not exist; the amount is then zero.
func (ri *RowIndex) Amount(phrase string, column int) (amount decimal.Decimal, found bool) {
	row := ri.Find(phrase)
	if row < 0 {
		return decimal.Zero, false
	}
	return ri.grid.Amount(row, column), true
}

// Cached reports how many phrases have been resolved.
func (ri *RowIndex) Cached() int {
	return len(ri.cache)
}
