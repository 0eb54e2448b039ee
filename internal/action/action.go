// Package action implements the interaction primitives: click, text input,
// dropdown selection, toggles, tabs, modal triggers and menu walks. Every
// primitive shares one shape: an ordered list of named strategies tried
// until one executes cleanly AND its effect verifies, with each attempt
// recorded for diagnostics. Failures are result values, never panics; a
// primitive leaves the page in a sane state even when it gives up.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/signature"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// FailureClass buckets primitive failures for step results.
type FailureClass string

const (
	// FailNotInteractable is a gate veto on the target.
	FailNotInteractable FailureClass = "not_interactable"
	// FailActionFailed means every strategy ran and none verified.
	FailActionFailed FailureClass = "action_failed"
	// FailTimeout means the context expired mid-primitive.
	FailTimeout FailureClass = "timeout"
)

// Attempt records one strategy execution.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Err      string        `json:"error,omitempty"`
	Verified bool          `json:"verified"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Result is the outcome of one primitive. Options carries the visible
// option texts on dropdown failures so a broken step can be fixed without
// re-recording.
type Result struct {
	OK       bool          `json:"ok"`
	Failure  FailureClass  `json:"failure,omitempty"`
	Method   string        `json:"method,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts []Attempt     `json:"attempts,omitempty"`
	Options  []string      `json:"options,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Strategy is one way of performing a primitive's effect.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config tunes the executor's bounded loops. Zero values fall back to the
// defaults below.
type Config struct {
	// VerifyWindow bounds the per-strategy effect poll.
	VerifyWindow time.Duration
	// MenuWindow bounds the menu-appearance poll after each open attempt.
	MenuWindow time.Duration
	// ScrollAttempts bounds virtualized-list rescans.
	ScrollAttempts int
	// ScrollPause separates scroll steps during rescans.
	ScrollPause time.Duration
}

const (
	defaultVerifyWindow   = 1 * time.Second
	defaultMenuWindow     = 800 * time.Millisecond
	defaultScrollAttempts = 20
	defaultScrollPause    = 100 * time.Millisecond
)

func (c Config) verifyWindow() time.Duration {
	if c.VerifyWindow > 0 {
		return c.VerifyWindow
	}
	return defaultVerifyWindow
}

func (c Config) menuWindow() time.Duration {
	if c.MenuWindow > 0 {
		return c.MenuWindow
	}
	return defaultMenuWindow
}

func (c Config) scrollAttempts() int {
	if c.ScrollAttempts > 0 {
		return c.ScrollAttempts
	}
	return defaultScrollAttempts
}

func (c Config) scrollPause() time.Duration {
	if c.ScrollPause > 0 {
		return c.ScrollPause
	}
	return defaultScrollPause
}

// Executor runs primitives against a live document.
type Executor struct {
	log  *zap.Logger
	gate *gate.Checker
	wait *verify.Waiter
	cfg  Config
}

// NewExecutor wires an executor. Nil collaborators get quiet defaults.
func NewExecutor(log *zap.Logger, checker *gate.Checker, waiter *verify.Waiter, cfg Config) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	if checker == nil {
		checker = gate.NewChecker(nil)
	}
	if waiter == nil {
		waiter = verify.NewWaiter(nil)
	}
	return &Executor{log: log.Named("action"), gate: checker, wait: waiter, cfg: cfg}
}

// runStrategies tries strategies in priority order. A strategy wins when its
// Run returns nil and verified reports true within window. Every attempt is
// recorded; a canceled context stops the ladder immediately.
func (x *Executor) runStrategies(ctx context.Context, name string, strategies []Strategy, window time.Duration, verified func(context.Context) (bool, error)) (method string, attempts []Attempt, ok bool) {
	for _, s := range strategies {
		start := time.Now()
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name, Err: err.Error()})
			return "", attempts, false
		}

		if err := s.Run(ctx); err != nil {
			attempts = append(attempts, Attempt{Strategy: s.Name, Err: err.Error(), Elapsed: time.Since(start)})
			x.log.Debug("strategy errored", zap.String("primitive", name),
				zap.String("strategy", s.Name), zap.Error(err))
			if ctx.Err() != nil {
				return "", attempts, false
			}
			continue
		}

		err := x.wait.WaitFor(ctx, window, name+" effect", verified)
		a := Attempt{Strategy: s.Name, Elapsed: time.Since(start)}
		switch {
		case err == nil:
			a.Verified = true
			attempts = append(attempts, a)
			x.log.Debug("strategy verified", zap.String("primitive", name),
				zap.String("strategy", s.Name))
			return s.Name, attempts, true
		case errors.Is(err, verify.ErrTimeout):
			attempts = append(attempts, a)
		default:
			a.Err = err.Error()
			attempts = append(attempts, a)
			if ctx.Err() != nil {
				return "", attempts, false
			}
		}
	}
	return "", attempts, false
}

// maxClimb bounds the interactive-ancestor search after a gate veto.
const maxClimb = 8

// admit gate-checks el. On a veto with climb enabled it searches once for
// the nearest interactive, visible ancestor and admits that instead. The
// failed Result is ready to return when ok is false.
func (x *Executor) admit(ctx context.Context, doc dom.Document, el dom.Element, climb bool) (dom.Element, Result, bool) {
	report, err := x.gate.Check(ctx, doc, el)
	if err != nil {
		return nil, failure(ctx, FailActionFailed, err.Error()), false
	}
	if report.OK {
		return el, Result{}, true
	}
	if climb {
		if anc := x.interactiveAncestor(ctx, doc, el); anc != nil {
			x.log.Debug("retargeted to interactive ancestor",
				zap.String("reason", report.Reason))
			return anc, Result{}, true
		}
	}
	return nil, Result{
		Failure: FailNotInteractable,
		Reason:  report.Reason,
	}, false
}

// interactiveAncestor walks up from el and returns the first ancestor that
// is a plausible control and passes the full gate, or nil. The search runs
// once per primitive, not once per strategy.
func (x *Executor) interactiveAncestor(ctx context.Context, doc dom.Document, el dom.Element) dom.Element {
	cur := el
	for i := 0; i < maxClimb; i++ {
		parent, err := cur.Parent(ctx)
		if err != nil || parent == nil {
			return nil
		}
		cur = parent
		snap, err := cur.Snapshot(ctx)
		if err != nil {
			return nil
		}
		if !signature.IsSemanticTarget(snap) || !gate.Visible(snap) {
			continue
		}
		report, err := x.gate.Check(ctx, doc, cur)
		if err == nil && report.OK {
			return cur
		}
	}
	return nil
}

// failure assembles a failed Result, upgrading the class to FailTimeout when
// the context has expired.
func failure(ctx context.Context, class FailureClass, reason string) Result {
	if ctx.Err() != nil {
		class = FailTimeout
	}
	return Result{Failure: class, Reason: reason}
}

// aimPoint is where pointer strategies click: the element center, re-aimed
// by the recorded click-target offset when the offset still lands inside
// the element's current box.
func aimPoint(r dom.Rect, tgt *signature.ClickTargetInfo) (float64, float64) {
	cx, cy := r.Center()
	if tgt == nil {
		return cx, cy
	}
	px, py := cx+tgt.OffsetX, cy+tgt.OffsetY
	if !r.Contains(px, py) {
		return cx, cy
	}
	return px, py
}

// pressRelease dispatches a minimal primary-button click at the point.
func pressRelease(ctx context.Context, el dom.Element, x, y float64) error {
	press := dom.MouseEvent{Type: dom.MousePressed, X: x, Y: y,
		Button: dom.MouseButtonLeft, ClickCount: 1, Buttons: 1}
	if err := el.DispatchMouse(ctx, press); err != nil {
		return err
	}
	release := dom.MouseEvent{Type: dom.MouseReleased, X: x, Y: y,
		Button: dom.MouseButtonLeft, ClickCount: 1}
	return el.DispatchMouse(ctx, release)
}

// hoverPressRelease adds the hover move real pages often require before the
// press lands.
func hoverPressRelease(ctx context.Context, el dom.Element, x, y float64) error {
	move := dom.MouseEvent{Type: dom.MouseMoved, X: x, Y: y, Button: dom.MouseButtonNone}
	if err := el.DispatchMouse(ctx, move); err != nil {
		return err
	}
	return pressRelease(ctx, el, x, y)
}

// pointAt reads the element's current box and computes the strategy's click
// point fresh, so post-scroll geometry is honored.
func pointAt(ctx context.Context, el dom.Element, tgt *signature.ClickTargetInfo) (float64, float64, error) {
	snap, err := el.Snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	px, py := aimPoint(snap.Rect, tgt)
	return px, py, nil
}

// overlaySelector matches the containers that modal, listbox and menu
// overlays render into.
const overlaySelector = `dialog, [role="dialog"], [role="alertdialog"], [role="listbox"], [role="menu"], [aria-modal="true"], .modal`

// countOverlays counts currently visible overlay containers. Click
// verification treats an increase as an observable effect.
func countOverlays(ctx context.Context, doc dom.Document) (int, error) {
	els, err := doc.QueryAll(ctx, overlaySelector)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, el := range els {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			continue
		}
		if gate.Visible(snap) {
			n++
		}
	}
	return n, nil
}

// activeKey identifies the focused element, or "" when nothing holds focus.
func activeKey(ctx context.Context, doc dom.Document) (string, error) {
	el, err := doc.ActiveElement(ctx)
	if err != nil {
		return "", err
	}
	if el == nil {
		return "", nil
	}
	return el.NodeKey(), nil
}

// sleep waits d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// describeAttempts renders a short trail for failure reasons.
func describeAttempts(attempts []Attempt) string {
	names := make([]string, 0, len(attempts))
	for _, a := range attempts {
		names = append(names, a.Strategy)
	}
	return fmt.Sprintf("tried %d strategies (%s)", len(attempts), joinMax(names, 6))
}

func joinMax(parts []string, max int) string {
	if len(parts) > max {
		parts = append(parts[:max:max], "...")
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
