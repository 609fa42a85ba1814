package snapshot

import "context"

// Browser is a long-lived browsing engine owned by the caller
type Browser interface {
	// NewSession opens an isolated browsing context (separate cookies and storage)
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated browsing context. Pages opened from it share its state.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Every method honours ctx's deadline.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until an element matching selector is attached
	WaitReady(ctx context.Context, selector string) error
	// Text returns the rendered text of the first element matching selector
	Text(ctx context.Context, selector string) (string, error)
	Close() error
}
