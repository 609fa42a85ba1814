package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundtracker/internal/fetcher"
	"fundtracker/internal/ratelimit"
)

const (
	// DefaultSelector matches the price widget on a stock page
	DefaultSelector = ".lpu38HeadWrap div:nth-child(3)"

	DefaultPageLoadTimeout = 300 * time.Second
	DefaultElementTimeout  = 100 * time.Second
)

// Result is the outcome of one snapshot fetch. Index is always the index
// the fetch was dispatched with; Snapshot is nil whenever Err is set.
type Result struct {
	Index    int
	Snapshot *Record
	Err      error
}

// SnapshotFetcher reads one stock page inside a session
type SnapshotFetcher interface {
	Fetch(ctx context.Context, session Session, url string, idx int) Result
}

// Fetcher opens a page per stock, waits for the price widget and parses it
type Fetcher struct {
	Selector        string
	PageLoadTimeout time.Duration
	ElementTimeout  time.Duration
	Limiter         *ratelimit.Limiter
}

// NewFetcher creates a Fetcher with the default selector and timeouts
func NewFetcher(limiter *ratelimit.Limiter) *Fetcher {
	return &Fetcher{
		Selector:        DefaultSelector,
		PageLoadTimeout: DefaultPageLoadTimeout,
		ElementTimeout:  DefaultElementTimeout,
		Limiter:         limiter,
	}
}

// Fetch implements SnapshotFetcher. The returned Index always equals idx and
// the page is released on every path.
func (f *Fetcher) Fetch(ctx context.Context, session Session, url string, idx int) Result {
	rec, err := f.fetch(ctx, session, url)
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			fe.WithURL(url)
		}
		return Result{Index: idx, Err: err}
	}
	return Result{Index: idx, Snapshot: &rec}
}

func (f *Fetcher) fetch(ctx context.Context, session Session, url string) (Record, error) {
	if err := f.Limiter.Wait(ctx, ratelimit.SourceStocks); err != nil {
		return Record{}, fetcher.ClassifyRequestError("rate limit wait", err)
	}

	page, err := session.NewPage(ctx)
	if err != nil {
		return Record{}, fetcher.ClassifyRequestError("open page", err)
	}
	defer page.Close()

	navCtx, cancel := withTimeout(ctx, f.PageLoadTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, url); err != nil {
		return Record{}, fetcher.ClassifyRequestError("page load", err)
	}

	selector := f.Selector
	if selector == "" {
		selector = DefaultSelector
	}

	waitCtx, cancelWait := withTimeout(ctx, f.ElementTimeout)
	defer cancelWait()
	if err := page.WaitReady(waitCtx, selector); err != nil {
		return Record{}, fetcher.ClassifyRequestError("price widget wait", err)
	}

	text, err := page.Text(waitCtx, selector)
	if err != nil {
		return Record{}, fetcher.ClassifyRequestError("price widget read", err)
	}
	if strings.TrimSpace(text) == "" {
		return Record{}, fetcher.NewParseError("price widget missing or empty")
	}

	return Parse(text)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
