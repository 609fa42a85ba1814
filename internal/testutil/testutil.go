package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fundtracker/internal/fetcher"
	"fundtracker/internal/holdings"
	"fundtracker/internal/snapshot"
)

// MockPageFetcher serves canned documents keyed by URL
type MockPageFetcher struct {
	Pages  map[string]string
	Errors map[string]error
	Delay  time.Duration

	mu    sync.Mutex
	calls []string
}

// Fetch implements fetcher.PageFetcher
func (m *MockPageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fetcher.ClassifyRequestError("page request", ctx.Err())
		case <-time.After(m.Delay):
		}
	}

	if err, ok := m.Errors[url]; ok {
		return nil, err
	}
	page, ok := m.Pages[url]
	if !ok {
		return nil, fetcher.ClassifyHTTPError(404).WithURL(url)
	}
	return []byte(page), nil
}

// Calls returns the URLs fetched so far
func (m *MockPageFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MemorySink records saved holdings in memory
type MemorySink struct {
	mu    sync.Mutex
	Saved map[string][]holdings.Record
	Err   error
}

// SaveHoldings implements collector.HoldingsSink
func (s *MemorySink) SaveHoldings(fund string, records []holdings.Record) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Saved == nil {
		s.Saved = make(map[string][]holdings.Record)
	}
	s.Saved[fund] = records
	return nil
}

// StockPage scripts the behaviour of one URL in a FakeBrowser
type StockPage struct {
	Text string
	// Delay is spent in Navigate, honouring ctx
	Delay       time.Duration
	NavigateErr error
	// Missing makes WaitReady block until ctx ends
	Missing bool
}

// FakeBrowser is a scripted snapshot.Browser that tracks resource usage
type FakeBrowser struct {
	Pages      map[string]StockPage
	SessionErr error

	sessions     atomic.Int32
	openSessions atomic.Int32
	maxSessions  atomic.Int32
	openPages    atomic.Int32
	pagesOpened  atomic.Int32
}

// NewSession implements snapshot.Browser
func (b *FakeBrowser) NewSession(ctx context.Context) (snapshot.Session, error) {
	if b.SessionErr != nil {
		return nil, b.SessionErr
	}
	b.sessions.Add(1)
	open := b.openSessions.Add(1)
	for {
		peak := b.maxSessions.Load()
		if open <= peak || b.maxSessions.CompareAndSwap(peak, open) {
			break
		}
	}
	return &fakeSession{browser: b}, nil
}

// Sessions is the number of sessions opened
func (b *FakeBrowser) Sessions() int { return int(b.sessions.Load()) }

// OpenSessions is the number of sessions not yet closed
func (b *FakeBrowser) OpenSessions() int { return int(b.openSessions.Load()) }

// MaxConcurrentSessions is the highest number of sessions open at once
func (b *FakeBrowser) MaxConcurrentSessions() int { return int(b.maxSessions.Load()) }

// OpenPages is the number of pages not yet closed
func (b *FakeBrowser) OpenPages() int { return int(b.openPages.Load()) }

// PagesOpened is the number of pages ever opened
func (b *FakeBrowser) PagesOpened() int { return int(b.pagesOpened.Load()) }

type fakeSession struct {
	browser *FakeBrowser
	closed  atomic.Bool
}

func (s *fakeSession) NewPage(ctx context.Context) (snapshot.Page, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("session closed")
	}
	s.browser.openPages.Add(1)
	s.browser.pagesOpened.Add(1)
	return &fakePage{browser: s.browser}, nil
}

func (s *fakeSession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.browser.openSessions.Add(-1)
	}
	return nil
}

type fakePage struct {
	browser *FakeBrowser
	script  StockPage
	closed  atomic.Bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	script, ok := p.browser.Pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	p.script = script
	if script.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(script.Delay):
		}
	}
	return script.NavigateErr
}

func (p *fakePage) WaitReady(ctx context.Context, selector string) error {
	if p.script.Missing {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	return p.script.Text, nil
}

func (p *fakePage) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.browser.openPages.Add(-1)
	}
	return nil
}
