package extract

import (
	"regexp"
	"strings"
)

// DefaultHeaderWindow bounds how many leading rows header discovery inspects.
const DefaultHeaderWindow = 10

var propertyCodePattern = regexp.MustCompile(`^[A-Za-z]+[0-9]+$`)

// PropertyColumn is one property found in a header row.
type PropertyColumn struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Column int    `json:"column"`
}

// Header is the row that carries property codes and where each one sits.
type Header struct {
	Row     int              `json:"row"`
	Columns []PropertyColumn `json:"columns"`
}

// SplitPropertyCode separates "S0010 - 228 Maple" into ("S0010", "228 Maple").
// Only the first " - " splits, so display names may contain the separator.
func SplitPropertyCode(cell string) (code, name string) {
	cell = strings.TrimSpace(cell)
	if idx := strings.Index(cell, " - "); idx >= 0 {
		return strings.TrimSpace(cell[:idx]), strings.TrimSpace(cell[idx+3:])
	}
	return cell, ""
}

// IsPropertyCode reports whether s looks like a property identifier (letters then digits).
func IsPropertyCode(s string) bool {
	return propertyCodePattern.MatchString(strings.TrimSpace(s))
}

// FindPropertyHeader scans the first window rows for property codes. The first
// row holding at least one code is the header; ok is false when none does.
func FindPropertyHeader(g *Grid, window int) (Header, bool) {
	if window <= 0 {
		window = DefaultHeaderWindow
	}
	limit := window
	if n := g.NumRows(); n < limit {
		limit = n
	}

	for row := 0; row < limit; row++ {
		var cols []PropertyColumn
		for col := range g.Rows[row] {
			code, name := SplitPropertyCode(g.Text(row, col))
			if IsPropertyCode(code) {
				cols = append(cols, PropertyColumn{Code: code, Name: name, Column: col})
			}
		}
		if len(cols) > 0 {
			return Header{Row: row, Columns: cols}, true
		}
	}
	return Header{}, false
}

// FindLabelRow returns the first row within window holding a cell equal
// (case-insensitively) to label, and the column of that cell.
func FindLabelRow(g *Grid, label string, window int) (row, col int, ok bool) {
	if window <= 0 {
		window = DefaultHeaderWindow
	}
	want := strings.ToLower(strings.TrimSpace(label))
	for r := 0; r < window && r < g.NumRows(); r++ {
		for c := range g.Rows[r] {
			if strings.ToLower(g.Text(r, c)) == want {
				return r, c, true
			}
		}
	}
	return -1, -1, false
}
