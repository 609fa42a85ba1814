package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
)

// DefaultMaxWorkers bounds the number of fund pages fetched at once
const DefaultMaxWorkers = 10

// HoldingsSink persists a fund's full holdings table
type HoldingsSink interface {
	SaveHoldings(fund string, records []holdings.Record) error
}

// FundResult is the outcome of collecting one fund page
type FundResult struct {
	URL      string
	FundName string
	Holdings []holdings.Record
	Status   fetcher.Status
	Err      error
}

// Collector fetches fund pages on a bounded worker pool and extracts their holdings
type Collector struct {
	pages      fetcher.PageFetcher
	extractor  holdings.Extractor
	sink       HoldingsSink
	maxWorkers int
}

// New creates a new Collector. sink may be nil when nothing should be persisted.
func New(pages fetcher.PageFetcher, extractor holdings.Extractor, sink HoldingsSink, maxWorkers int) *Collector {
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Collector{
		pages:      pages,
		extractor:  extractor,
		sink:       sink,
		maxWorkers: maxWorkers,
	}
}

type slotResult struct {
	pos    int
	result FundResult
}

// Collect processes every fund URL and returns one result per URL, in input order.
// A fund that fails is reported with StatusFailed and no holdings; it never
// stops the other funds. Results are logged as they arrive.
func (c *Collector) Collect(ctx context.Context, urls []string) ([]FundResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no funds configured")
	}

	// Create a channel for collecting results
	resultChan := make(chan slotResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)

	// Submission blocks once the pool is full, so it runs beside the collecting loop
	go func() {
		for i, u := range urls {
			g.Go(func() error {
				resultChan <- slotResult{pos: i, result: c.collectOne(gctx, u)}
				// Failures are carried in the result; returning nil keeps siblings running
				return nil
			})
		}
		_ = g.Wait()
		close(resultChan)
	}()

	results := make([]FundResult, len(urls))
	var tally fetcher.Tally
	for sr := range resultChan {
		r := sr.result
		results[sr.pos] = r
		tally.Record(r.Err)

		if r.Status == fetcher.StatusSuccess {
			slog.Info("saved fund holdings",
				"fund", r.FundName,
				"holdings", len(r.Holdings),
				"stocks_to_track", countTrackable(r.Holdings))
		} else {
			slog.Warn("failed to process fund",
				"url", r.URL,
				"error_type", fetcher.TypeOf(r.Err),
				"error", r.Err)
		}
	}

	slog.Info("fund collection finished",
		"funds", len(urls),
		"succeeded", tally.Succeeded,
		"failed", tally.Failed)

	return results, nil
}

// collectOne fetches, parses and persists a single fund
func (c *Collector) collectOne(ctx context.Context, u string) FundResult {
	name := FundName(u)
	failed := func(err error) FundResult {
		return FundResult{URL: u, FundName: name, Status: fetcher.StatusFailed, Err: err}
	}

	doc, err := c.pages.Fetch(ctx, u)
	if err != nil {
		return failed(err)
	}

	records, err := c.extractor.Extract(doc)
	if err != nil {
		return failed(fmt.Errorf("extract holdings from %s: %w", u, err))
	}

	if c.sink != nil {
		if err := c.sink.SaveHoldings(name, records); err != nil {
			return failed(fmt.Errorf("save holdings for %s: %w", name, err))
		}
	}

	return FundResult{
		URL:      u,
		FundName: name,
		Holdings: records,
		Status:   fetcher.StatusSuccess,
	}
}

// FundName is the last path segment of a fund URL
func FundName(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	return path.Base(strings.TrimRight(p, "/"))
}

// Holdings returns the holdings of successful funds, in result order
func Holdings(results []FundResult) [][]holdings.Record {
	out := make([][]holdings.Record, 0, len(results))
	for _, r := range results {
		if r.Status == fetcher.StatusSuccess {
			out = append(out, r.Holdings)
		}
	}
	return out
}

func countTrackable(records []holdings.Record) int {
	n := 0
	for _, r := range records {
		if r.IsTrackable() {
			n++
		}
	}
	return n
}
