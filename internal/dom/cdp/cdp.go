// File: internal/dom/cdp/cdp.go
// Package cdp drives a real Chrome through the DevTools protocol and adapts
// it to the dom interfaces. One Browser owns the process; each Tab is an
// isolated target whose page, shadow and frame scopes all satisfy
// dom.Document, so the replay engine runs against live pages exactly as it
// runs against the in-memory fake.
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Browser wraps one Chrome process. Tabs are created on demand and tracked
// so shutdown can wait for them before tearing the process down.
type Browser struct {
	log *zap.Logger
	cfg *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	tabs   map[string]*Tab
	wg     sync.WaitGroup
	closed bool
}

// NewBrowser launches Chrome per the browser section of cfg and verifies the
// process answers before returning. The returned Browser must be closed.
func NewBrowser(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Browser, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Browser{
		log:  log.Named("browser"),
		cfg:  cfg,
		tabs: make(map[string]*Tab),
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, execOptions(cfg.Browser)...)

	var ctxOpts []chromedp.ContextOption
	if cfg.Browser.Debug {
		sugar := b.log.Sugar()
		ctxOpts = append(ctxOpts, chromedp.WithLogf(sugar.Debugf), chromedp.WithErrorf(sugar.Errorf))
	}
	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx, ctxOpts...)

	// The first Run starts the process and attaches the master target.
	if err := chromedp.Run(b.ctx); err != nil {
		b.cancel()
		b.allocCancel()
		return nil, fmt.Errorf("cdp: browser failed to start: %w", err)
	}

	b.log.Info("Browser launched.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Int("viewport_width", cfg.Browser.Viewport.Width),
		zap.Int("viewport_height", cfg.Browser.Viewport.Height),
	)
	return b, nil
}

// Close shuts every open tab, waits up to a grace period for them to
// detach, then tears down the browser process.
func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tabs := make([]*Tab, 0, len(b.tabs))
	for _, t := range b.tabs {
		tabs = append(tabs, t)
	}
	b.mu.Unlock()

	for _, t := range tabs {
		t.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
		b.log.Warn("Timed out waiting for tabs to close.")
	case <-ctx.Done():
	}

	b.cancel()
	b.allocCancel()
	b.log.Info("Browser closed.")
	return nil
}

// release drops a closed tab from the registry. Called from Tab.Close.
func (b *Browser) release(id string) {
	b.mu.Lock()
	if _, ok := b.tabs[id]; ok {
		delete(b.tabs, id)
		b.wg.Done()
	}
	b.mu.Unlock()
}

// execOptions translates the browser config into allocator options. Flags
// from the args list may be given bare, with a leading -- or as key=value.
func execOptions(bc config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	// The defaults include headless; drop it when a headed run is asked for.
	if !bc.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if bc.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if bc.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(bc.UserAgent))
	}
	if bc.Viewport.Width > 0 && bc.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(bc.Viewport.Width, bc.Viewport.Height))
	}

	for _, arg := range bc.Args {
		name, value, isBool := splitArg(arg)
		if isBool {
			opts = append(opts, chromedp.Flag(name, true))
		} else {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// splitArg normalizes one configured browser argument into a flag name and
// optional value.
func splitArg(arg string) (name, value string, isBool bool) {
	arg = strings.TrimPrefix(arg, "--")
	if k, v, ok := strings.Cut(arg, "="); ok {
		return k, v, false
	}
	return arg, "", true
}

// combineContext derives a context from parent that is also canceled when
// secondary is done. Protocol calls need the tab context's target binding
// but must still honor caller deadlines.
func combineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
