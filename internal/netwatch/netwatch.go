// Package netwatch tracks in-flight network requests on a browser target.
// The engine hands a Watcher to quiescence waits so a page is not declared
// settled while its requests are still in flight.
package netwatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// defaultStale caps how long one request may count as pending. Streaming
// responses (event sources, long polls) never emit a loading-finished
// event; without an age limit a single open stream would hold every
// quiescence wait on the page hostage.
const defaultStale = 15 * time.Second

// Watcher counts in-flight requests on a chromedp target. It satisfies the
// pending-counter contract of the verify package, so it can be attached to
// a quiescence wait, and it answers WaitIdle on its own.
//
// A Watcher is explicit and single-use: Start attaches it to one target,
// Stop detaches it for good.
type Watcher struct {
	log *zap.Logger

	// Interval paces WaitIdle polls. Zero means half the quiet window.
	Interval time.Duration
	// StaleAfter overrides how long a request may stay pending before it
	// stops counting. Zero means defaultStale.
	StaleAfter time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]time.Time
	cancel   context.CancelFunc
	started  bool
	stopped  bool
}

// NewWatcher creates a detached watcher. Call Start to attach it.
func NewWatcher(log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		log:      log.Named("netwatch"),
		inflight: make(map[network.RequestID]time.Time),
	}
}

// Start subscribes to network events on the target behind ctx and enables
// the CDP network domain. The ctx must be a started chromedp target
// context; canceling it detaches the listener just like Stop does.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	listenCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	chromedp.ListenTarget(listenCtx, w.observe)

	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		w.Stop()
		return fmt.Errorf("enable network events: %w", err)
	}
	w.log.Debug("network watcher attached")
	return nil
}

// Stop detaches the listener and clears all tracked state. Safe to call
// repeatedly and before Start. Events arriving after Stop are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.inflight = make(map[network.RequestID]time.Time)
}

// Pending reports how many tracked requests have neither finished nor
// failed. Entries older than the stale cutoff are dropped on the way.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	stale := w.StaleAfter
	if stale <= 0 {
		stale = defaultStale
	}
	now := time.Now()
	for id, since := range w.inflight {
		if now.Sub(since) > stale {
			w.log.Debug("dropping stale in-flight request", zap.String("request_id", string(id)))
			delete(w.inflight, id)
		}
	}
	return len(w.inflight)
}

// WaitIdle blocks until no request has been in flight for quiet, or until
// ctx expires. Idleness is only counted from the moment the wait begins.
func (w *Watcher) WaitIdle(ctx context.Context, quiet time.Duration) error {
	if quiet <= 0 {
		quiet = 500 * time.Millisecond
	}
	interval := w.Interval
	if interval <= 0 {
		interval = quiet / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := w.Pending(); n > 0 {
				lastActivity = time.Now()
				w.log.Debug("network still busy", zap.Int("pending", n))
			} else if time.Since(lastActivity) >= quiet {
				return nil
			}
		}
	}
}

// observe is the ListenTarget callback. Only the request lifecycle events
// matter here; bodies, headers and timings are somebody else's problem.
func (w *Watcher) observe(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.track(ev)
	case *network.EventLoadingFinished:
		w.settle(ev.RequestID)
	case *network.EventLoadingFailed:
		w.settle(ev.RequestID)
	}
}

func (w *Watcher) track(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil || strings.HasPrefix(ev.Request.URL, "data:") {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	// Redirect hops reuse the request ID; overwriting keeps the count at
	// one and restarts the staleness clock for the new leg.
	w.inflight[ev.RequestID] = time.Now()
}

func (w *Watcher) settle(id network.RequestID) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.mu.Unlock()
}
