package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Source represents the different sites we pull pages from
type Source string

const (
	// SourceHoldings represents fund holdings pages
	SourceHoldings Source = "holdings"
	// SourceStocks represents stock detail pages rendered in the browser
	SourceStocks Source = "stocks"
)

// Limiter manages request rates per source. The zero rate means unlimited,
// which is the default: bounded concurrency is the only throttle unless
// a rate is configured.
type Limiter struct {
	limiters map[Source]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter applying requestsPerSecond to every known source.
// A value <= 0 disables limiting.
func New(requestsPerSecond float64) *Limiter {
	l := &Limiter{
		limiters: make(map[Source]*rate.Limiter),
	}
	for _, src := range []Source{SourceHoldings, SourceStocks} {
		l.Set(src, requestsPerSecond)
	}
	return l
}

// Set replaces the rate for a single source
func (l *Limiter) Set(src Source, requestsPerSecond float64) {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	l.mu.Lock()
	l.limiters[src] = rate.NewLimiter(limit, 1)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits an event for the given source.
// It returns an error if the context is canceled before the event can proceed.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, src Source) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[src]
	l.mu.RUnlock()

	if !exists {
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given source may happen now
func (l *Limiter) Allow(src Source) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[src]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
