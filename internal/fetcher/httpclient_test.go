package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fundtracker/internal/ratelimit"
)

func TestHTTPPageFetcher_Fetch_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "fundtracker-test" {
			t.Errorf("User-Agent = %q, want fundtracker-test", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<table class="holdings101Table"></table>`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	client := NewHTTPClient(ClientOptions{Timeout: time.Second, UserAgent: "fundtracker-test"})
	pages := NewHTTPPageFetcher(client, ratelimit.New(0))

	body, err := pages.Fetch(context.Background(), server.URL+"/mutual-funds/a")
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "holdings101Table") {
		t.Errorf("Fetch() body = %q", body)
	}
}

func TestHTTPPageFetcher_Fetch_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{"not found", http.StatusNotFound, ErrorTypeClient},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimit},
		{"server error", http.StatusBadGateway, ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: time.Second}), nil)
			url := server.URL + "/mutual-funds/a"

			_, err := pages.Fetch(context.Background(), url)

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want *FetchError", err)
			}
			if fe.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", fe.Type, tt.wantType)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
			if fe.URL != url {
				t.Errorf("URL = %q, want %q", fe.URL, url)
			}
		})
	}
}

func TestHTTPPageFetcher_Fetch_NoRetryByDefault(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: time.Second}), nil)
	if _, err := pages.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Fetch() expected error, got nil")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestHTTPPageFetcher_Fetch_RetriesWhenConfigured(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: 5 * time.Second, RetryCount: 1}), nil)
	body, err := pages.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Fetch() body = %q, want ok", body)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestHTTPPageFetcher_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: time.Second}), nil)
	_, err := pages.Fetch(context.Background(), url)
	if got := TypeOf(err); got != ErrorTypeNetwork {
		t.Errorf("TypeOf() = %v, want %v (err: %v)", got, ErrorTypeNetwork, err)
	}
}

func TestHTTPPageFetcher_Fetch_Throttled(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// One request per 100ms with a burst of one
	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: time.Second}), ratelimit.New(10))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := pages.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch() #%d returned unexpected error: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	// The first fetch is free, the next two each wait for a token
	if elapsed < 150*time.Millisecond {
		t.Errorf("three fetches took %v, limiter not applied", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("three fetches took %v, limiter over-throttled", elapsed)
	}
}

func TestHTTPPageFetcher_Fetch_ThrottledUntilCancelled(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{Timeout: time.Second}), ratelimit.New(0.01))
	if _, err := pages.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("first Fetch() returned unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pages.Fetch(ctx, server.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fe.URL != server.URL {
		t.Errorf("URL = %q, want %q", fe.URL, server.URL)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1: throttled fetch must not reach the server", got)
	}
}

func TestHTTPPageFetcher_Fetch_CancelledBeforeRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := ratelimit.New(0.001)
	// Drain the single burst token so Wait has to block on ctx
	limiter.Allow(ratelimit.SourceHoldings)

	pages := NewHTTPPageFetcher(NewHTTPClient(ClientOptions{}), limiter)
	if _, err := pages.Fetch(ctx, "http://127.0.0.1:1/never"); err == nil {
		t.Fatal("Fetch() expected error, got nil")
	}
}
