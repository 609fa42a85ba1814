package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless Chrome process
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides Chrome discovery when set
	ExecPath string
	// RemoteURL attaches to an already running Chrome instead of launching
	// one. Either a DevTools websocket URL or http://host:port.
	RemoteURL string
}

// ChromeBrowser is a Browser backed by one Chrome process driven over the
// DevTools protocol. It must be closed by its owner.
type ChromeBrowser struct {
	ctx           context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// LaunchChrome starts Chrome and blocks until it is ready. With
// opts.RemoteURL set it connects to that browser instead.
func LaunchChrome(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	if opts.RemoteURL != "" {
		return ConnectChrome(ctx, opts.RemoteURL)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	b, err := startBrowser(allocCtx, cancelAlloc)
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	slog.Debug("chrome launched", "headless", opts.Headless)
	return b, nil
}

// ConnectChrome attaches to a running Chrome through its DevTools endpoint
func ConnectChrome(ctx context.Context, remoteURL string) (*ChromeBrowser, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, remoteURL)
	b, err := startBrowser(allocCtx, cancelAlloc)
	if err != nil {
		return nil, fmt.Errorf("connect chrome %s: %w", remoteURL, err)
	}

	slog.Debug("chrome connected", "url", remoteURL)
	return b, nil
}

func startBrowser(allocCtx context.Context, cancelAlloc context.CancelFunc) (*ChromeBrowser, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &ChromeBrowser{
		ctx:           browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewSession implements Browser with a fresh incognito-style browser context
func (b *ChromeBrowser) NewSession(ctx context.Context) (Session, error) {
	sessCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := allocate(ctx, sessCtx, cancel); err != nil {
		return nil, fmt.Errorf("open browser context: %w", err)
	}
	return &chromeSession{ctx: sessCtx, cancel: cancel}, nil
}

// Close shuts down Chrome
func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	if err := allocate(ctx, tabCtx, cancel); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

// Close disposes the browser context and every tab in it
func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return runWith(ctx, p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context, selector string) error {
	return runWith(ctx, p.ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := runWith(ctx, p.ctx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return "", err
	}
	return text, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// allocate performs the first Run on target. chromedp ties the new target's
// event loop to the context of that Run, so it has to be target itself and
// not a cancellable child. ctx only bounds how long the caller waits; when it
// ends first, target is cancelled and ctx's error returned.
func allocate(ctx, target context.Context, cancel context.CancelFunc) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(target)
	}()

	select {
	case err := <-done:
		if err != nil {
			cancel()
		}
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// runWith executes actions on the chromedp context target while honouring the
// caller's ctx. The target must already be allocated; cancelling a child of
// it then stops the actions without closing the tab.
func runWith(ctx, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
