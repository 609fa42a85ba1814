package fetcher

import "context"

// PageFetcher retrieves the raw document behind a URL.
// Implementations hold no per-call state and are safe for concurrent use.
type PageFetcher interface {
	// Fetch returns the document body. Failures are *FetchError values.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageFetcherFunc adapts a plain function to the PageFetcher interface
type PageFetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements PageFetcher
func (f PageFetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
