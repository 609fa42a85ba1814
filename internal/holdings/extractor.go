package holdings

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fundtracker/internal/fetcher"
)

// DefaultTableSelector matches the holdings table on a fund page
const DefaultTableSelector = "table.holdings101Table"

// Extractor parses a fund page into its holdings rows
type Extractor interface {
	Extract(doc []byte) ([]Record, error)
}

// TableExtractor reads a four-column holdings table:
// name (optionally a link), sector, instrument, asset weight.
type TableExtractor struct {
	Selector string
}

// NewTableExtractor creates an extractor for the table matched by selector.
// An empty selector falls back to DefaultTableSelector.
func NewTableExtractor(selector string) *TableExtractor {
	if selector == "" {
		selector = DefaultTableSelector
	}
	return &TableExtractor{Selector: selector}
}

// Extract implements Extractor. Rows without exactly four cells are skipped.
func (e *TableExtractor) Extract(doc []byte) ([]Record, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fetcher.NewDataError("parse holdings HTML", err)
	}

	table := page.Find(e.Selector).First()
	if table.Length() == 0 {
		return nil, fetcher.NewParseError("holdings table not found on the page")
	}

	var (
		records []Record
		rowErr  error
	)
	table.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() != 4 {
			return true
		}

		first := cells.Eq(0)
		name := strings.TrimSpace(first.Text())
		var link string
		if a := first.Find("a").First(); a.Length() > 0 {
			name = strings.TrimSpace(a.Text())
			link, _ = a.Attr("href")
		}

		assets := strings.TrimSpace(cells.Eq(3).Text())
		weight, err := ParseWeight(assets)
		if err != nil {
			rowErr = fetcher.NewDataError(fmt.Sprintf("row %d (%s): bad asset weight %q", i, name, assets), err)
			return false
		}

		records = append(records, Record{
			Name:          name,
			Sector:        strings.TrimSpace(cells.Eq(1).Text()),
			Instrument:    InstrumentType(strings.TrimSpace(cells.Eq(2).Text())),
			AssetsPercent: weight,
			Link:          strings.TrimSpace(link),
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return records, nil
}

// ParseWeight converts an asset cell such as "4.35%" to 4.35.
// A dash or an empty cell means no weight.
func ParseWeight(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" || s == "--" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative weight %v", v)
	}
	return v, nil
}
