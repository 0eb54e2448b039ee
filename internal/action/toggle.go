package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// Toggle drives a checkbox, switch or pressed-state button to the desired
// end state. Requests for a state the control already holds succeed without
// touching the page; flip always activates. State reads stay on the resolved
// control even when a gate veto retargets the click to an ancestor (hidden
// checkbox inputs behind styled labels).
func (x *Executor) Toggle(ctx context.Context, doc dom.Document, el dom.Element, data pattern.ToggleData) Result {
	start := time.Now()
	state := el

	el, fail, ok := x.admit(ctx, doc, el, true)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	snap, err := state.Snapshot(ctx)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}
	cur, known := toggleState(snap)

	desired := data.State
	if desired == "" {
		desired = pattern.ToggleFlip
	}
	if known && ((desired == pattern.ToggleOn && cur) || (desired == pattern.ToggleOff && !cur)) {
		return Result{OK: true, Method: "already-" + string(desired), Elapsed: time.Since(start)}
	}

	before, err := verify.CaptureState(ctx, state)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}

	cond := func(ctx context.Context) (bool, error) {
		s, err := state.Snapshot(ctx)
		if err != nil {
			return false, nil
		}
		if now, nowKnown := toggleState(s); nowKnown {
			switch desired {
			case pattern.ToggleOn:
				return now, nil
			case pattern.ToggleOff:
				return !now, nil
			default:
				if known {
					return now != cur, nil
				}
			}
		}
		// State is opaque for this widget; accept any observable change.
		after, err := verify.CaptureState(ctx, state)
		if err != nil {
			return false, err
		}
		return before.Changed(after), nil
	}

	method, attempts, ok := x.runStrategies(ctx, "toggle", x.clickLadder(el, nil), x.cfg.verifyWindow(), cond)
	res := Result{OK: ok, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
	if !ok {
		f := failure(ctx, FailActionFailed,
			fmt.Sprintf("toggle never reached state %s; %s", desired, describeAttempts(attempts)))
		res.Failure, res.Reason = f.Failure, f.Reason
	}
	return res
}

// toggleState reads a control's on/off state: the resolved checked property
// for native checkboxes and radios, aria-checked for switches, aria-pressed
// for toggle buttons, then class conventions. known is false when none of
// these speak, which sends verification down the any-change path.
func toggleState(s dom.Snapshot) (on, known bool) {
	switch s.InputType() {
	case "checkbox", "radio":
		return s.Checked, true
	}
	if b := s.AriaBool("aria-checked"); b != nil {
		return *b, true
	}
	if b := s.AriaBool("aria-pressed"); b != nil {
		return *b, true
	}
	for _, c := range s.Classes() {
		switch strings.ToLower(c) {
		case "on", "checked", "active", "toggled":
			return true, true
		}
	}
	return false, false
}
