// Package verify observes effects: it captures element state before an
// action, diffs it afterwards, and provides the bounded timer-based waits
// the engine and primitives block on. Every wait takes an explicit timeout
// and honors context cancellation; nothing here spins.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// ErrTimeout marks a wait that ran out of budget. Callers decide severity;
// a quiescence timeout is routinely survivable, a verification timeout is
// not.
var ErrTimeout = errors.New("wait timed out")

// defaultInterval paces polls when the caller does not configure one.
const defaultInterval = 50 * time.Millisecond

// PendingCounter reports in-flight background work, typically network
// requests. A nil counter means quiescence considers the DOM alone.
type PendingCounter interface {
	Pending() int
}

// Waiter runs polled waits at a fixed cadence.
type Waiter struct {
	log      *zap.Logger
	Interval time.Duration
}

// NewWaiter returns a Waiter polling at the default cadence. A nil logger
// disables logging.
func NewWaiter(log *zap.Logger) *Waiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Waiter{log: log.Named("verify"), Interval: defaultInterval}
}

func (w *Waiter) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return defaultInterval
}

// WaitFor polls cond until it reports true, the timeout elapses, or the
// context is canceled. The condition is evaluated immediately, then on every
// tick. what names the awaited state in the timeout error.
func (w *Waiter) WaitFor(ctx context.Context, timeout time.Duration, what string, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", what, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// QuiesceSpec bounds a quiescence wait: the document must produce no
// mutations for Quiet, within an overall Timeout. When Net is set, pending
// network activity also has to drain.
type QuiesceSpec struct {
	Quiet   time.Duration
	Timeout time.Duration
	Net     PendingCounter
}

// WaitQuiescent blocks until the document settles. The tick runs at half the
// quiet window so a settle is never missed by more than half a window.
func (w *Waiter) WaitQuiescent(ctx context.Context, doc dom.Document, spec QuiesceSpec) error {
	if spec.Quiet <= 0 {
		spec.Quiet = 300 * time.Millisecond
	}
	if spec.Timeout <= 0 {
		spec.Timeout = 10 * time.Second
	}

	last, err := doc.MutationCount(ctx)
	if err != nil {
		return fmt.Errorf("verify: mutation count: %w", err)
	}
	deadline := time.Now().Add(spec.Timeout)
	lastChange := time.Now()

	tick := spec.Quiet / 2
	if tick > w.interval() {
		tick = w.interval()
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cur, err := doc.MutationCount(ctx)
		if err != nil {
			return fmt.Errorf("verify: mutation count: %w", err)
		}
		now := time.Now()
		if cur != last {
			last = cur
			lastChange = now
		}

		settled := now.Sub(lastChange) >= spec.Quiet
		if settled && spec.Net != nil && spec.Net.Pending() > 0 {
			settled = false
		}
		if settled {
			return nil
		}
		if now.After(deadline) {
			w.log.Debug("document kept mutating past the deadline",
				zap.Duration("timeout", spec.Timeout))
			return fmt.Errorf("document did not settle within %s: %w", spec.Timeout, ErrTimeout)
		}
	}
}
