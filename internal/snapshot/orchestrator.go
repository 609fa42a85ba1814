package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
)

// DefaultChunkSize is the number of stocks sharing one browser context
const DefaultChunkSize = 30

// Orchestrator enriches candidates with snapshots, one chunk at a time.
// Within a chunk every stock is fetched concurrently in a shared, freshly
// opened session; chunks never overlap, which bounds the number of open tabs.
type Orchestrator struct {
	browser   Browser
	fetcher   SnapshotFetcher
	chunkSize int
	baseURL   string
}

// NewOrchestrator creates an Orchestrator. baseURL is prefixed to relative stock links.
func NewOrchestrator(browser Browser, f SnapshotFetcher, chunkSize int, baseURL string) *Orchestrator {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Orchestrator{
		browser:   browser,
		fetcher:   f,
		chunkSize: chunkSize,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Enrich returns one EnrichedStock per candidate, ordered by OriginalIndex.
// A failed fetch leaves that stock's snapshot nil and is logged with its URL;
// it never affects other stocks. The returned error is non-nil only for an
// invalid candidate list or when ctx ends before every chunk was attempted;
// in the latter case the stocks processed so far are still returned.
func (o *Orchestrator) Enrich(ctx context.Context, candidates []holdings.Candidate) ([]EnrichedStock, fetcher.Tally, error) {
	var tally fetcher.Tally

	// Slots are addressed by OriginalIndex and written at most once each
	slots := make([]EnrichedStock, len(candidates))
	filled := make([]bool, len(candidates))
	for _, c := range candidates {
		if c.OriginalIndex < 0 || c.OriginalIndex >= len(candidates) || filled[c.OriginalIndex] {
			return nil, tally, fmt.Errorf("candidate %q has invalid or duplicate index %d", c.Link, c.OriginalIndex)
		}
		filled[c.OriginalIndex] = true
		slots[c.OriginalIndex] = EnrichedStock{Name: c.Name, Link: c.Link}
	}

	start := time.Now()
	chunks := Chunk(candidates, o.chunkSize)
	failures := make(map[fetcher.ErrorType]int)
	var runErr error
	for n, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("enrichment stopped before chunk %d of %d: %w", n+1, len(chunks), err)
			break
		}

		results := o.runChunk(ctx, chunk)
		for _, r := range results {
			if r.Snapshot == nil {
				if r.Err != nil {
					failures[fetcher.TypeOf(r.Err)]++
				}
				continue
			}
			if r.Index < 0 || r.Index >= len(slots) {
				slog.Error("snapshot returned with unknown index", "index", r.Index)
				continue
			}
			slots[r.Index].Record = r.Snapshot
		}

		slog.Debug("chunk processed", "chunk", n+1, "chunks", len(chunks), "stocks", len(chunk))
	}

	for _, s := range slots {
		if s.Record != nil {
			tally.Succeeded++
		} else {
			tally.Failed++
		}
	}
	tally.ByType = failures

	slog.Info("stock enrichment finished",
		"stocks", len(candidates),
		"chunks", len(chunks),
		"succeeded", tally.Succeeded,
		"failed", tally.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return slots, tally, runErr
}

// runChunk fetches every candidate of a chunk inside one session. The
// returned results are in submission order; callers must place them by Index.
func (o *Orchestrator) runChunk(ctx context.Context, chunk []holdings.Candidate) []Result {
	results := make([]Result, len(chunk))
	for i, c := range chunk {
		results[i] = Result{Index: c.OriginalIndex}
	}

	session, err := o.browser.NewSession(ctx)
	if err != nil {
		slog.Error("failed to open browser session, skipping chunk", "stocks", len(chunk), "error", err)
		sessErr := fetcher.ClassifyRequestError("open session", err)
		for i := range results {
			results[i].Err = sessErr
		}
		return results
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close browser session", "error", err)
		}
	}()

	var wg conc.WaitGroup
	for i, c := range chunk {
		url := o.StockURL(c.Link)
		wg.Go(func() {
			r := o.fetcher.Fetch(ctx, session, url, c.OriginalIndex)
			if r.Err != nil {
				slog.Warn("error scraping stock",
					"url", url,
					"error_type", fetcher.TypeOf(r.Err),
					"error", r.Err)
			}
			results[i] = r
		})
	}

	// A panicking task loses only its own result
	if recovered := wg.WaitAndRecover(); recovered != nil {
		slog.Error("stock fetch panicked", "panic", recovered.String())
	}

	return results
}

// StockURL resolves a holding link against the stock base URL
func (o *Orchestrator) StockURL(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return o.baseURL + link
}

// Chunk splits candidates into contiguous chunks of at most size, preserving order
func Chunk(candidates []holdings.Candidate, size int) [][]holdings.Candidate {
	if size < 1 {
		size = 1
	}
	var chunks [][]holdings.Candidate
	for start := 0; start < len(candidates); start += size {
		end := min(start+size, len(candidates))
		chunks = append(chunks, candidates[start:end])
	}
	return chunks
}
