package fetcher

import (
	"context"
	"log/slog"
	"time"

	"resty.dev/v3"

	"fundtracker/internal/ratelimit"
)

const (
	// Retries are off unless configured; the wait bounds only apply when they are on
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
	defaultTimeout          = 30 * time.Second
)

// ClientOptions tunes the HTTP client used for holdings pages
type ClientOptions struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// NewHTTPClient creates a new HTTP client. When opts.RetryCount > 0 failed
// requests are retried with exponential backoff.
func NewHTTPClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	if opts.RetryCount > 0 {
		client.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(defaultRetryWaitTime).
			SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
			AddRetryConditions(retryCondition).
			AddRetryHooks(retryHook)
	}

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	// Retry on server errors (5xx)
	if r.StatusCode() >= 500 {
		return true
	}

	// Retry on rate limit (429) and request timeout (408)
	if r.StatusCode() == 429 || r.StatusCode() == 408 {
		return true
	}

	return false
}

// retryHook logs retry attempts for observability
func retryHook(r *resty.Response, err error) {
	if err != nil {
		slog.Debug("retrying request due to error",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"error", err.Error())
		return
	}

	slog.Debug("retrying request due to status code",
		"url", r.Request.URL,
		"attempt", r.Request.Attempt,
		"status_code", r.StatusCode())
}

// HTTPPageFetcher is the resty-backed PageFetcher
type HTTPPageFetcher struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewHTTPPageFetcher creates a PageFetcher. limiter may be nil.
func NewHTTPPageFetcher(client *resty.Client, limiter *ratelimit.Limiter) *HTTPPageFetcher {
	return &HTTPPageFetcher{
		client:  client,
		limiter: limiter,
	}
}

// Fetch implements PageFetcher
func (f *HTTPPageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	// Allow takes the token when one is free; Wait only runs when throttled
	if !f.limiter.Allow(ratelimit.SourceHoldings) {
		slog.Debug("rate limit reached, waiting", "url", url)
		if err := f.limiter.Wait(ctx, ratelimit.SourceHoldings); err != nil {
			return nil, ClassifyRequestError("rate limit wait", err).WithURL(url)
		}
	}

	slog.Debug("fetching page", "url", url)

	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, ClassifyRequestError("page request", err).WithURL(url)
	}

	if !resp.IsSuccess() {
		return nil, ClassifyHTTPError(resp.StatusCode()).WithURL(url)
	}

	return []byte(resp.String()), nil
}
