// Command extract runs the extraction pipeline over a local file and prints
// the result as JSON (or as a markdown/HTML statement with -format).
//
//	extract -mode portfolio summary.xls
//	extract -mode investments -format csv investments.csv
//	extract -mode statement -type cash_flow -price 280000 report.json
//	extract -mode timeseries -from 2025-01-01 -to 2025-12-31 monthly.json
//	extract -mode estimate -rentroll units.json report.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"portfolio_financials/pkg/core/analysis"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/config"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/report"
	"portfolio_financials/pkg/core/statement"
	"portfolio_financials/pkg/core/timeseries"
)

type options struct {
	mode       string
	format     string
	stmtType   string
	period     string
	months     int
	price      float64
	from, to   string
	rentRoll   string
	output     string
	cfg        *config.Config
	log        zerolog.Logger
	classifier *classify.Classifier
}

func main() {
	var o options
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.StringVar(&o.mode, "mode", "portfolio", "portfolio | investments | statement | timeseries | estimate")
	flag.StringVar(&o.format, "format", "", "input workbook format (html, xls, csv); for statement mode the output format (json, markdown, html)")
	flag.StringVar(&o.stmtType, "type", "income", "statement type: income, cash_flow or balance_sheet")
	flag.StringVar(&o.period, "period", statement.PeriodSelected, "record field holding the amount")
	flag.IntVar(&o.months, "months", 0, "months the period covers (default: inferred from -period)")
	flag.Float64Var(&o.price, "price", 0, "purchase price for the cap rate")
	flag.StringVar(&o.from, "from", "", "first month of the series (YYYY-MM-DD)")
	flag.StringVar(&o.to, "to", "", "last month of the series (YYYY-MM-DD)")
	flag.StringVar(&o.rentRoll, "rentroll", "", "rent-roll JSON file for estimate mode")
	flag.StringVar(&o.output, "o", "", "write output to this file instead of stdout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	config.LoadEnv()
	o.log = logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		o.log.Fatal().Err(err).Msg("Failed to load config")
	}
	o.cfg = cfg

	if cfg.RulesPath != "" {
		rules, err := classify.LoadRules(cfg.RulesPath)
		if err != nil {
			o.log.Fatal().Err(err).Msg("Failed to load classification rules")
		}
		o.classifier = classify.New(rules)
	} else if o.classifier, err = classify.NewDefault(); err != nil {
		o.log.Fatal().Err(err).Msg("Failed to load classification rules")
	}

	out := io.Writer(os.Stdout)
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			o.log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	if err := run(o, flag.Arg(0), out); err != nil {
		o.log.Fatal().Err(err).Str("mode", o.mode).Msg("Extraction failed")
	}
}

func run(o options, path string, out io.Writer) error {
	switch o.mode {
	case "portfolio":
		return runPortfolio(o, path, out)
	case "investments":
		return runInvestments(o, path, out)
	case "statement":
		return runStatement(o, path, out)
	case "timeseries":
		return runTimeSeries(o, path, out)
	case "estimate":
		return runEstimate(o, path, out)
	}
	return fmt.Errorf("unknown mode %q", o.mode)
}

// =============================================================================
// WORKBOOKS
// =============================================================================

func loadWorkbook(o options, path string) ([]*extract.Grid, error) {
	format := o.format
	if format == "" {
		format = filepath.Ext(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return extract.LoadWorkbook(f, format, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func runPortfolio(o options, path string, out io.Writer) error {
	grids, err := loadWorkbook(o, path)
	if err != nil {
		return err
	}
	values, skipped := extract.NewExtractor(o.cfg.Extract, logger.Component(o.log, "extractor")).ExtractPortfolio(grids)
	if len(values) == 0 {
		return fmt.Errorf("no property header found in %d sheets", len(grids))
	}

	statements := make([]statement.Statement, 0, len(values))
	for _, pv := range values {
		statements = append(statements, statement.FromPropertyValues(pv, statement.PeriodSelected, o.classifier))
		if !pv.Complete() {
			o.log.Warn().Str("property", pv.Code).Strs("missing", pv.Missing).Msg("incomplete property column")
		}
	}
	return writeJSON(out, map[string]any{
		"properties":     values,
		"statements":     statements,
		"skipped_sheets": skipped,
	})
}

func runInvestments(o options, path string, out io.Writer) error {
	grids, err := loadWorkbook(o, path)
	if err != nil {
		return err
	}
	for _, g := range grids {
		if investments, ok := extract.ParseInvestments(g, o.cfg.Extract.HeaderWindow); ok {
			o.log.Info().Str("sheet", g.Name).Int("investments", len(investments)).Msg("investment sheet parsed")
			proforma := make([]statement.Statement, 0, len(investments))
			for _, inv := range investments {
				proforma = append(proforma, statement.FromInvestment(inv))
			}
			return writeJSON(out, map[string]any{
				"investments":         investments,
				"proforma_statements": proforma,
			})
		}
	}
	return fmt.Errorf("no Asset ID header found")
}

// =============================================================================
// REPORTS
// =============================================================================

func readRecords(path string) ([]extract.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extract.ParseRecords(data)
}

func buildStatement(o options, path string) (statement.Statement, error) {
	t, err := statement.ParseType(o.stmtType)
	if err != nil {
		return statement.Statement{}, err
	}
	records, err := readRecords(path)
	if err != nil {
		return statement.Statement{}, err
	}
	s := statement.ExtractStatement(records, t, o.period, o.classifier)
	if o.months > 0 {
		s = s.WithPeriodMonths(o.months)
	}
	return s, nil
}

func runStatement(o options, path string, out io.Writer) error {
	s, err := buildStatement(o, path)
	if err != nil {
		return err
	}
	if unplaced := s.Unplaced(o.classifier); len(unplaced) > 0 {
		o.log.Warn().Int("count", len(unplaced)).Msg("accounts left unclassified")
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch o.format {
	case "markdown", "md":
		_, err = io.WriteString(out, report.Statement(title, s))
		return err
	case "html":
		fragment, err := report.HTML(report.Statement(title, s))
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, report.Page(title, fragment))
		return err
	}

	result := map[string]any{
		"statement": s,
		"revenue":   s.Revenue(),
		"expenses":  s.Expenses(),
		"noi":       s.NOI(),
	}
	if o.price > 0 {
		result["cap_rate"] = s.CapRate(o.price)
	}
	return writeJSON(out, result)
}

func runTimeSeries(o options, path string, out io.Writer) error {
	dr, err := timeseries.ParseDateRange(o.from, o.to)
	if err != nil {
		return err
	}
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	ts := timeseries.Build(records, dr, o.classifier)
	profile, err := analysis.NewEngine(o.cfg.Variance).Analyze(ts)
	if err != nil {
		return err
	}
	if o.format == "markdown" || o.format == "md" {
		_, err = io.WriteString(out, report.TimeSeries(ts))
		return err
	}
	return writeJSON(out, map[string]any{"time_series": ts, "analysis": profile})
}

func runEstimate(o options, path string, out io.Writer) error {
	primary, err := buildStatement(o, path)
	if err != nil {
		return err
	}
	var units []estimate.Unit
	if o.rentRoll != "" {
		records, err := readRecords(o.rentRoll)
		if err != nil {
			return fmt.Errorf("rent roll: %w", err)
		}
		units = estimate.ParseUnits(records)
	}

	outcome := estimate.NewEstimator(o.cfg.Estimate, logger.Component(o.log, "estimator")).EstimateIfIncomplete(&primary, units, o.price)
	if o.format == "markdown" || o.format == "md" {
		_, err = io.WriteString(out, report.Outcome(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), outcome))
		return err
	}
	return writeJSON(out, outcome)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
