package action

import (
	"context"
	"strings"
	"time"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/signature"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// ClickSpec parameterizes a click. Target re-aims pointer strategies at the
// recorded descendant offset; Expect replaces implicit change detection with
// the recorded outcome checks.
type ClickSpec struct {
	Target *signature.ClickTargetInfo
	Expect []verify.ExpectedOutcome
}

// Click activates the element, escalating from native activation through
// synthetic pointers to keyboard activation. A gate veto first triggers one
// search for the nearest interactive visible ancestor.
func (x *Executor) Click(ctx context.Context, doc dom.Document, el dom.Element, spec ClickSpec) Result {
	start := time.Now()
	el, fail, ok := x.admit(ctx, doc, el, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	cond, err := x.clickVerifier(ctx, doc, el, spec)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}

	method, attempts, ok := x.runStrategies(ctx, "click", x.clickLadder(el, spec.Target), x.cfg.verifyWindow(), cond)
	res := Result{OK: ok, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
	if !ok {
		f := failure(ctx, FailActionFailed, "click produced no verified effect; "+describeAttempts(attempts))
		res.Failure, res.Reason = f.Failure, f.Reason
	}
	return res
}

// clickLadder is the shared escalation order for activation primitives.
func (x *Executor) clickLadder(el dom.Element, target *signature.ClickTargetInfo) []Strategy {
	return []Strategy{
		{Name: "native-click", Run: el.Click},
		{Name: "focus-click", Run: func(ctx context.Context) error {
			if err := el.Focus(ctx); err != nil {
				return err
			}
			return el.Click(ctx)
		}},
		{Name: "pointer-click", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, el, target)
			if err != nil {
				return err
			}
			return pressRelease(ctx, el, px, py)
		}},
		{Name: "pointer-sequence", Run: func(ctx context.Context) error {
			px, py, err := pointAt(ctx, el, target)
			if err != nil {
				return err
			}
			return hoverPressRelease(ctx, el, px, py)
		}},
		{Name: "key-enter", Run: x.pressNamed(el, "Enter")},
		{Name: "key-space", Run: x.pressNamed(el, "Space")},
	}
}

// clickVerifier captures the pre-click baseline and returns the success
// condition: every explicit expectation when recorded, otherwise any
// observable change (element state, focus, URL, or a new overlay).
func (x *Executor) clickVerifier(ctx context.Context, doc dom.Document, el dom.Element, spec ClickSpec) (func(context.Context) (bool, error), error) {
	beforeURL, err := doc.URL(ctx)
	if err != nil {
		return nil, err
	}
	if len(spec.Expect) > 0 {
		return func(ctx context.Context) (bool, error) {
			for _, e := range spec.Expect {
				ok, err := e.Check(ctx, doc, el, beforeURL)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		}, nil
	}

	before, err := verify.CaptureState(ctx, el)
	if err != nil {
		return nil, err
	}
	beforeActive, err := activeKey(ctx, doc)
	if err != nil {
		return nil, err
	}
	beforeOverlays, err := countOverlays(ctx, doc)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (bool, error) {
		after, err := verify.CaptureState(ctx, el)
		if err != nil {
			return false, err
		}
		if before.Changed(after) {
			return true, nil
		}
		u, err := doc.URL(ctx)
		if err != nil {
			return false, err
		}
		if u != beforeURL {
			return true, nil
		}
		ak, err := activeKey(ctx, doc)
		if err != nil {
			return false, err
		}
		if ak != beforeActive {
			return true, nil
		}
		n, err := countOverlays(ctx, doc)
		if err != nil {
			return false, err
		}
		return n > beforeOverlays, nil
	}, nil
}

// SelectTab activates a tab and verifies selection stuck: aria-selected,
// a selection-pattern class, the controlled panel becoming visible, or any
// observable state change as the last resort.
func (x *Executor) SelectTab(ctx context.Context, doc dom.Document, el dom.Element, data *pattern.TabSelectData) Result {
	start := time.Now()
	el, fail, ok := x.admit(ctx, doc, el, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	before, err := verify.CaptureState(ctx, el)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}

	cond := func(ctx context.Context) (bool, error) {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			return false, nil
		}
		if b := snap.AriaBool("aria-selected"); b != nil && *b {
			return true, nil
		}
		if hasSelectionClass(snap) {
			return true, nil
		}
		if panel := firstToken(snap.Attr("aria-controls")); panel != "" {
			ok, err := verify.VisibleBySelector(ctx, doc, "#"+panel)
			if err == nil && ok {
				return true, nil
			}
		}
		after, err := verify.CaptureState(ctx, el)
		if err != nil {
			return false, err
		}
		return before.Changed(after), nil
	}

	method, attempts, ok := x.runStrategies(ctx, "tab-select", x.clickLadder(el, nil), x.cfg.verifyWindow(), cond)
	res := Result{OK: ok, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
	if !ok {
		label := ""
		if data != nil {
			label = data.Label
		}
		f := failure(ctx, FailActionFailed, tabFailReason(label, attempts))
		res.Failure, res.Reason = f.Failure, f.Reason
	}
	return res
}

func tabFailReason(label string, attempts []Attempt) string {
	if label != "" {
		return "tab " + label + " never became selected; " + describeAttempts(attempts)
	}
	return "tab never became selected; " + describeAttempts(attempts)
}

// OpenModal clicks a modal trigger and verifies a dialog actually appeared:
// the recorded confirmation text when present, otherwise a new visible
// overlay container.
func (x *Executor) OpenModal(ctx context.Context, doc dom.Document, el dom.Element, data *pattern.ModalTriggerData) Result {
	start := time.Now()
	el, fail, ok := x.admit(ctx, doc, el, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	expectText := ""
	if data != nil {
		expectText = strings.TrimSpace(data.ExpectText)
	}
	beforeOverlays, err := countOverlays(ctx, doc)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}

	cond := func(ctx context.Context) (bool, error) {
		if expectText != "" {
			return verify.VisibleByText(ctx, doc, expectText)
		}
		n, err := countOverlays(ctx, doc)
		if err != nil {
			return false, err
		}
		return n > beforeOverlays, nil
	}

	method, attempts, ok := x.runStrategies(ctx, "modal-trigger", x.clickLadder(el, nil), x.cfg.verifyWindow(), cond)
	res := Result{OK: ok, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
	if !ok {
		f := failure(ctx, FailActionFailed, "modal never appeared; "+describeAttempts(attempts))
		res.Failure, res.Reason = f.Failure, f.Reason
	}
	return res
}

// hasSelectionClass spots the class-based selection conventions tab widgets
// use when they skip ARIA.
func hasSelectionClass(s dom.Snapshot) bool {
	for _, c := range s.Classes() {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "active") || strings.Contains(lc, "selected") || lc == "current" {
			return true
		}
	}
	return false
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
