package extract

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Target names one account row to pull for every property column.
type Target struct {
	Key    string `yaml:"key" json:"key"`
	Phrase string `yaml:"phrase" json:"phrase"`
}

// Options control sheet extraction.
type Options struct {
	HeaderWindow int      `yaml:"header_window" json:"header_window"`
	NameColumn   int      `yaml:"name_column" json:"name_column"`
	Targets      []Target `yaml:"targets" json:"targets"`
}

// Well-known target keys.
const (
	KeyRevenue  = "revenue"
	KeyExpenses = "expenses"
	KeyNOI      = "noi"
)

// DefaultOptions matches the portfolio summary exports: names in column A,
// property codes within the first ten rows.
func DefaultOptions() Options {
	return Options{
		HeaderWindow: DefaultHeaderWindow,
		NameColumn:   0,
		Targets: []Target{
			{Key: KeyRevenue, Phrase: "Rent Income"},
			{Key: KeyExpenses, Phrase: "Total Operating Expense"},
			{Key: KeyNOI, Phrase: "Net Operating Income"},
		},
	}
}

// PropertyValues are the raw target values for one property column of one sheet.
type PropertyValues struct {
	Sheet   string                     `json:"sheet"`
	Code    string                     `json:"code"`
	Name    string                     `json:"name,omitempty"`
	Values  map[string]decimal.Decimal `json:"values"`
	Phrases map[string]string          `json:"phrases"`
	Missing []string                   `json:"missing_fields,omitempty"`
}

// Complete reports whether every target row was found.
func (pv PropertyValues) Complete() bool {
	return len(pv.Missing) == 0
}

// Extractor pulls target rows for every property column of a workbook.
type Extractor struct {
	opts Options
	log  zerolog.Logger
}

// NewExtractor applies defaults for unset options.
func NewExtractor(opts Options, log zerolog.Logger) *Extractor {
	if opts.HeaderWindow <= 0 {
		opts.HeaderWindow = DefaultHeaderWindow
	}
	if len(opts.Targets) == 0 {
		opts.Targets = DefaultOptions().Targets
	}
	return &Extractor{opts: opts, log: log}
}

// ExtractSheet returns one PropertyValues per property column. ok is false
// when the sheet is nil or header discovery failed and the sheet was skipped.
func (e *Extractor) ExtractSheet(g *Grid) (values []PropertyValues, ok bool) {
	if g == nil {
		return nil, false
	}
	header, found := FindPropertyHeader(g, e.opts.HeaderWindow)
	if !found {
		e.log.Warn().Str("sheet", g.Name).Int("window", e.opts.HeaderWindow).Msg("no property header found, skipping sheet")
		return nil, false
	}

	rows := NewRowIndex(g, e.opts.NameColumn, header.Row+1)
	for _, col := range header.Columns {
		pv := PropertyValues{
			Sheet:   g.Name,
			Code:    col.Code,
			Name:    col.Name,
			Values:  make(map[string]decimal.Decimal, len(e.opts.Targets)),
			Phrases: make(map[string]string, len(e.opts.Targets)),
		}
		for _, target := range e.opts.Targets {
			amount, found := rows.Amount(target.Phrase, col.Column)
			pv.Values[target.Key] = amount
			pv.Phrases[target.Key] = target.Phrase
			if !found {
				pv.Missing = append(pv.Missing, target.Phrase)
			}
		}
		values = append(values, pv)
	}

	e.log.Debug().Str("sheet", g.Name).Int("properties", len(values)).Int("header_row", header.Row).Msg("sheet extracted")
	return values, true
}

// ExtractPortfolio runs ExtractSheet over every sheet. Sheets without a header
// are skipped; the names of skipped sheets are returned for diagnostics.
func (e *Extractor) ExtractPortfolio(workbook []*Grid) (values []PropertyValues, skipped []string) {
	for _, g := range workbook {
		if g == nil {
			continue
		}
		sheetValues, ok := e.ExtractSheet(g)
		if !ok {
			skipped = append(skipped, g.Name)
			continue
		}
		values = append(values, sheetValues...)
	}
	return values, skipped
}
