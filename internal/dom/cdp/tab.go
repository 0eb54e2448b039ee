// File: internal/dom/cdp/tab.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tab is one target in the browser. Its page scope, and any shadow or frame
// scopes derived from it, stay valid until the tab closes; element handles
// within them go stale on navigation and surface as dom.ErrDetached.
type Tab struct {
	id     string
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	page   *Scope

	onClose   func()
	closeOnce sync.Once
}

// NewTab opens a fresh target, arms the mutation counter on its current and
// all future documents, and applies per-tab emulation from the config.
func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("cdp: browser is closed")
	}
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	id := uuid.New().String()
	t := &Tab{
		id:     id,
		log:    b.log.Named("tab").With(zap.String("tab_id", id[:8])),
		ctx:    tabCtx,
		cancel: tabCancel,
	}
	t.page = &Scope{tab: t, kind: scopePage}

	actions := []chromedp.Action{
		page.Enable(),
		cdpdom.Enable(),
		runtime.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(mutationBootstrap).Do(ctx)
			return err
		}),
		// The injected copy only reaches documents created from here on;
		// arm the counter on the document the tab opened with too.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, exc, err := runtime.Evaluate(mutationBootstrap).Do(ctx)
			if err != nil {
				return mapErr(err)
			}
			return jsError(exc)
		}),
	}
	if b.cfg.Browser.DisableCache {
		actions = append(actions, network.Enable(), network.SetCacheDisabled(true))
	}
	if vp := b.cfg.Browser.Viewport; vp.Width > 0 && vp.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)))
	}

	initCtx, cancelInit := combineContext(tabCtx, ctx)
	err := chromedp.Run(initCtx, actions...)
	cancelInit()
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("cdp: tab init: %w", err)
	}

	b.mu.Lock()
	b.tabs[t.id] = t
	b.wg.Add(1)
	b.mu.Unlock()
	t.onClose = func() { b.release(t.id) }

	t.log.Debug("Tab opened.")
	return t, nil
}

// ID returns the tab's identifier for logs and reports.
func (t *Tab) ID() string { return t.id }

// Context exposes the tab's target context so network listeners can attach
// to the same target the scopes talk to.
func (t *Tab) Context() context.Context { return t.ctx }

// Page returns the tab's top-level scope.
func (t *Tab) Page() *Scope { return t.page }

// Navigate loads url and waits for the new document's body. A page that
// keeps streaming after load is the quiescence wait's problem, not
// navigation's; failure to see a body within the timeout is logged and left
// to resolution to surface.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		navCtx, cancelTimeout = context.WithTimeout(navCtx, timeout)
		defer cancelTimeout()
	}

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("cdp: navigate %s: %w", url, err)
	}
	if err := chromedp.Run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		t.log.Debug("No body after navigation.", zap.String("url", url), zap.Error(err))
	}
	return nil
}

// Close detaches the target. Safe to call more than once.
func (t *Tab) Close() {
	t.closeOnce.Do(func() {
		t.log.Debug("Closing tab.")
		t.cancel()
		if t.onClose != nil {
			t.onClose()
		}
	})
}

// run executes fn inside the tab's protocol session, bounded by the
// caller's context.
func (t *Tab) run(ctx context.Context, fn func(context.Context) error) error {
	runCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(fn))
}
