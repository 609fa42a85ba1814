package aggregate

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/shopspring/decimal"

	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
	"fundtracker/internal/snapshot"
)

// MissingPolicy decides how equity holdings without a usable snapshot affect the result
type MissingPolicy string

const (
	// PolicyZero counts a missing snapshot as a 0% change at full weight
	PolicyZero MissingPolicy = "zero"
	// PolicyRenormalize spreads the equity weight over the holdings that were priced
	PolicyRenormalize MissingPolicy = "renormalize"
)

// ParsePolicy validates a policy name; an empty name selects PolicyZero
func ParsePolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyZero:
		return PolicyZero, nil
	case PolicyRenormalize:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing snapshot policy %q (want %q or %q)", s, PolicyZero, PolicyRenormalize)
	}
}

var hundred = decimal.NewFromInt(100)

// FundReport is the weighted percentage change of one fund
type FundReport struct {
	FundName         string
	PercentageChange float64
	// Equities is the number of equity holdings considered
	Equities int
	Priced   int
	Missing  int
}

// Percent renders the change rounded half away from zero to two decimals,
// e.g. "0.80%". A change that rounds to zero is always "0.00%".
func (r FundReport) Percent() string {
	return decimal.NewFromFloat(r.PercentageChange).StringFixed(2) + "%"
}

// Identifier is the key a stock is stored under: the trailing path segment of its link
func Identifier(link string) string {
	link = strings.TrimRight(link, "/")
	if link == "" {
		return ""
	}
	return path.Base(link)
}

// Index keys enriched stocks by Identifier
func Index(stocks []snapshot.EnrichedStock) map[string]snapshot.EnrichedStock {
	out := make(map[string]snapshot.EnrichedStock, len(stocks))
	for _, s := range stocks {
		out[Identifier(s.Link)] = s
	}
	return out
}

// SignedChange returns the percentage change of a snapshot with the sign taken
// from the absolute change, since the bracketed percentage is always unsigned.
func SignedChange(rec snapshot.Record) (decimal.Decimal, error) {
	raw := strings.TrimSpace(rec.PercentageChange)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), "%)")
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	raw = strings.TrimLeft(raw, "+-−")

	change, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fetcher.NewDataError(fmt.Sprintf("malformed percentage change %q", rec.PercentageChange), err)
	}

	abs := strings.TrimSpace(rec.AbsoluteChange)
	if strings.HasPrefix(abs, "-") || strings.HasPrefix(abs, "−") {
		change = change.Neg()
	}
	return change, nil
}

// ComputeChange sums change × weight / 100 over the fund's equity holdings.
// Holdings whose stock is absent from stocks, failed to fetch, or carries
// unparsable text are handled according to policy.
func ComputeChange(fund string, records []holdings.Record, stocks map[string]snapshot.EnrichedStock, policy MissingPolicy) FundReport {
	report := FundReport{FundName: fund}

	total := decimal.Zero
	equityWeight := decimal.Zero
	pricedWeight := decimal.Zero

	for _, h := range records {
		if !h.IsTrackable() {
			continue
		}
		report.Equities++

		weight := decimal.NewFromFloat(h.AssetsPercent)
		equityWeight = equityWeight.Add(weight)

		stock, ok := stocks[Identifier(h.Link)]
		if !ok || stock.Record == nil {
			report.Missing++
			continue
		}

		change, err := SignedChange(*stock.Record)
		if err != nil {
			slog.Warn("ignoring stock with unusable snapshot", "fund", fund, "stock", h.Name, "error", err)
			report.Missing++
			continue
		}

		report.Priced++
		pricedWeight = pricedWeight.Add(weight)
		total = total.Add(change.Mul(weight).Div(hundred))
	}

	if policy == PolicyRenormalize && report.Missing > 0 {
		if pricedWeight.IsZero() {
			total = decimal.Zero
		} else {
			total = total.Mul(equityWeight).Div(pricedWeight)
		}
	}

	report.PercentageChange = total.InexactFloat64()
	return report
}
