package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"fundtracker/internal/aggregate"
	"fundtracker/internal/collector"
	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
	"fundtracker/internal/report"
	"fundtracker/internal/snapshot"
)

// ReadFundList reads one fund identifier per line. Blank lines and lines
// starting with # are skipped, and repeated identifiers are kept once.
func ReadFundList(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fund list: %w", err)
	}
	return ids, nil
}

// ReadFundListFile reads the fund list from path
func ReadFundListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fund list: %w", err)
	}
	defer f.Close()
	return ReadFundList(f)
}

// FundURLs templates each identifier into a fund page address
func FundURLs(base string, ids []string) []string {
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = base + id
	}
	return urls
}

// Collector is the fund holdings stage
type Collector interface {
	Collect(ctx context.Context, urls []string) ([]collector.FundResult, error)
}

// Enricher is the stock snapshot stage
type Enricher interface {
	Enrich(ctx context.Context, candidates []holdings.Candidate) ([]snapshot.EnrichedStock, fetcher.Tally, error)
}

// CollectSummary describes one collection run
type CollectSummary struct {
	Funds        int
	FundsFailed  int
	Stocks       int
	StocksFailed int
	Elapsed      time.Duration
}

// Collect fetches every fund's holdings, enriches the tracked stocks with
// snapshots and saves them keyed by identifier.
func Collect(ctx context.Context, fundURLs []string, c Collector, e Enricher, store *report.Store) (CollectSummary, error) {
	start := time.Now()
	summary := CollectSummary{Funds: len(fundURLs)}

	results, err := c.Collect(ctx, fundURLs)
	if err != nil {
		return summary, err
	}
	for _, r := range results {
		if r.Err != nil {
			summary.FundsFailed++
		}
	}

	candidates := holdings.Flatten(collector.Holdings(results)...)
	summary.Stocks = len(candidates)
	slog.Info("starting stock snapshot scraping", "stocks", len(candidates))

	stocks, tally, enrichErr := e.Enrich(ctx, candidates)
	summary.StocksFailed = tally.Failed
	if stocks == nil && enrichErr != nil {
		return summary, fmt.Errorf("enrich stocks: %w", enrichErr)
	}

	if err := store.SaveStocks(aggregate.Index(stocks)); err != nil {
		return summary, fmt.Errorf("save stocks: %w", err)
	}

	summary.Elapsed = time.Since(start)
	slog.Info("collection completed",
		"funds", summary.Funds,
		"funds_failed", summary.FundsFailed,
		"stocks", summary.Stocks,
		"stocks_failed", summary.StocksFailed,
		"failures_by_type", tally.ByType,
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	if enrichErr != nil {
		return summary, fmt.Errorf("enrich stocks: %w", enrichErr)
	}
	return summary, nil
}

// Report computes every fund's weighted change from the saved artifacts,
// writes the Markdown summary and returns the reports in fund list order.
// Funds that were never collected are skipped.
func Report(fundIDs []string, store *report.Store, policy aggregate.MissingPolicy) ([]aggregate.FundReport, error) {
	stocks, err := store.LoadStocks()
	if err != nil {
		return nil, fmt.Errorf("load stocks: %w", err)
	}

	var reports []aggregate.FundReport
	for _, id := range fundIDs {
		fund := collector.FundName(id)
		records, err := store.LoadHoldings(fund)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("no holdings saved for fund, skipping", "fund", fund)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load holdings for %s: %w", fund, err)
		}

		r := aggregate.ComputeChange(fund, records, stocks, policy)
		if r.Missing > 0 {
			slog.Info("fund has unpriced equity holdings", "fund", fund, "missing", r.Missing, "priced", r.Priced)
		}
		reports = append(reports, r)
	}

	if err := store.SaveSummary(reports); err != nil {
		return nil, err
	}
	return reports, nil
}
