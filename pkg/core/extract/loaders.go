package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// =============================================================================
// HTML WORKBOOKS - property-management "Excel" exports are HTML tables
// =============================================================================

// LoadHTMLWorkbook turns every <table> in an HTML export into a Grid. Sheet
// names come from <caption>, the table id, or the position. colspan cells are
// padded with nil so columns stay aligned with the header row.
func LoadHTMLWorkbook(r io.Reader) ([]*Grid, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html workbook: %w", err)
	}

	var sheets []*Grid
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		// Nested tables are read as part of their parent.
		if table.ParentsFiltered("table").Length() > 0 {
			return
		}

		name := strings.TrimSpace(table.ChildrenFiltered("caption").Text())
		if name == "" {
			name, _ = table.Attr("id")
		}
		if name == "" {
			name = "Sheet" + strconv.Itoa(len(sheets)+1)
		}

		var rows [][]any
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []any
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				text := strings.TrimSpace(strings.ReplaceAll(cell.Text(), "\u00a0", " "))
				if text == "" {
					cells = append(cells, nil)
				} else {
					cells = append(cells, text)
				}
				if span, err := strconv.Atoi(cell.AttrOr("colspan", "1")); err == nil {
					for k := 1; k < span; k++ {
						cells = append(cells, nil)
					}
				}
			})
			rows = append(rows, cells)
		})
		sheets = append(sheets, NewGrid(name, rows))
	})

	if len(sheets) == 0 {
		return nil, fmt.Errorf("html workbook contains no tables")
	}
	return sheets, nil
}

// =============================================================================
// CSV
// =============================================================================

// LoadCSVGrid reads a CSV export into a single sheet. Ragged rows are kept and a
// UTF-8 byte-order mark is dropped.
func LoadCSVGrid(r io.Reader, name string) (*Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return GridFromStrings(name, records), nil
}

// Workbook formats accepted by LoadWorkbook.
const (
	FormatHTML = "html"
	FormatCSV  = "csv"
)

// LoadWorkbook dispatches on format ("html", "xls" and "htm" read as HTML
// tables; "csv" as a single sheet called name).
func LoadWorkbook(r io.Reader, format, name string) ([]*Grid, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case FormatHTML, "htm", "xls":
		return LoadHTMLWorkbook(r)
	case FormatCSV:
		g, err := LoadCSVGrid(r, name)
		if err != nil {
			return nil, err
		}
		return []*Grid{g}, nil
	default:
		return nil, fmt.Errorf("unsupported workbook format %q", format)
	}
}
