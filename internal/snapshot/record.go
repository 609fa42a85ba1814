package snapshot

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"fundtracker/internal/fetcher"
)

// Record is a point-in-time price reading scraped from a stock's price widget
type Record struct {
	Currency         string `json:"currency,omitempty"`
	Price            string `json:"price"`
	AbsoluteChange   string `json:"absolute_change"`
	PercentageChange string `json:"percentage_change"`
	TimeFrame        string `json:"time_frame"`
}

// EnrichedStock is a candidate with its snapshot merged in.
// Record is nil when the fetch failed, so the snapshot fields are
// serialised if and only if the fetch succeeded.
type EnrichedStock struct {
	Name string `json:"name"`
	Link string `json:"link"`
	*Record
}

var percentToken = regexp.MustCompile(`^\(\s*[+\-−]?[\d,]*\.?\d+\s*%\)$`)

// Parse splits the widget text into a Record.
//
// The widget renders the price on its own line and "change (pct%) frame" on
// the last line, e.g. "₹1,234.50\n-12.30 (0.99%) 1D". Some layouts put the
// currency symbol on a separate first line, giving five tokens instead of four.
// Any other token count is rejected.
func Parse(text string) (Record, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return Record{}, fetcher.NewDataError("empty price widget", nil)
	}

	tokens := append(lines[:len(lines)-1:len(lines)-1], strings.Fields(lines[len(lines)-1])...)

	var rec Record
	switch {
	case len(tokens) == 4:
		rec = Record{Price: tokens[0], AbsoluteChange: tokens[1], PercentageChange: tokens[2], TimeFrame: tokens[3]}
	case len(tokens) == 5 && !hasDigit(tokens[0]):
		rec = Record{Currency: tokens[0], Price: tokens[1], AbsoluteChange: tokens[2], PercentageChange: tokens[3], TimeFrame: tokens[4]}
	default:
		return Record{}, fetcher.NewDataError(fmt.Sprintf("unexpected price widget layout: %d fields in %q", len(tokens), text), nil)
	}

	if !percentToken.MatchString(rec.PercentageChange) {
		return Record{}, fetcher.NewDataError(fmt.Sprintf("malformed percentage change %q", rec.PercentageChange), nil)
	}
	return rec, nil
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
