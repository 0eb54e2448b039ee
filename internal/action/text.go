package action

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/pattern"
)

// TextInput writes a value into the target. Targets are classified first:
// native selects go through option selection, everything editable gets a
// programmatic value write with the input/change pair pages listen for,
// falling back to rune-by-rune typing for widgets that swallow programmatic
// writes. Without Clear the value appends to the existing content.
func (x *Executor) TextInput(ctx context.Context, doc dom.Document, el dom.Element, data pattern.TextInputData) Result {
	start := time.Now()
	el, fail, ok := x.admit(ctx, doc, el, false)
	if !ok {
		fail.Elapsed = time.Since(start)
		return fail
	}

	snap, err := el.Snapshot(ctx)
	if err != nil {
		res := failure(ctx, FailActionFailed, err.Error())
		res.Elapsed = time.Since(start)
		return res
	}
	if snap.ReadOnly {
		return Result{
			Failure: FailNotInteractable,
			Reason:  "target is read-only",
			Elapsed: time.Since(start),
		}
	}
	if snap.Tag == "select" {
		return x.setSelectValue(ctx, el, data.Value, start)
	}

	base := ""
	if !data.Clear {
		base = snap.Value
	}
	final := base + data.Value

	strategies := []Strategy{
		{Name: "set-value", Run: func(ctx context.Context) error {
			if err := el.Focus(ctx); err != nil {
				return err
			}
			if err := el.SetValue(ctx, final); err != nil {
				return err
			}
			if err := el.DispatchEvent(ctx, "input"); err != nil {
				return err
			}
			return el.DispatchEvent(ctx, "change")
		}},
		{Name: "type-keys", Run: func(ctx context.Context) error {
			if err := el.Focus(ctx); err != nil {
				return err
			}
			if data.Clear {
				if err := el.SetValue(ctx, ""); err != nil {
					return err
				}
				if err := el.DispatchEvent(ctx, "input"); err != nil {
					return err
				}
			}
			if err := typeKeys(ctx, el, data.Value); err != nil {
				return err
			}
			return el.DispatchEvent(ctx, "change")
		}},
	}

	// Exact match verifies; so does any change away from the old content,
	// which covers masks and formatters rewriting what was typed.
	cond := func(ctx context.Context) (bool, error) {
		s, err := el.Snapshot(ctx)
		if err != nil {
			return false, nil
		}
		v := s.Value
		switch {
		case final == "":
			return v == "", nil
		case v == final || v == data.Value:
			return true, nil
		default:
			return v != "" && v != base, nil
		}
	}

	method, attempts, ok := x.runStrategies(ctx, "text-input", strategies, x.cfg.verifyWindow(), cond)
	res := Result{OK: ok, Method: method, Attempts: attempts, Elapsed: time.Since(start)}
	if !ok {
		f := failure(ctx, FailActionFailed, "value never took; "+describeAttempts(attempts))
		res.Failure, res.Reason = f.Failure, f.Reason
	}
	return res
}

// setSelectValue is the native-select shortcut for text steps recorded
// against a select element. The native mechanism either matches an option
// or it does not; no verification poll is needed.
func (x *Executor) setSelectValue(ctx context.Context, el dom.Element, value string, start time.Time) Result {
	aStart := time.Now()
	matched, err := el.SelectOption(ctx, value)
	attempt := Attempt{Strategy: "select-option", Elapsed: time.Since(aStart)}

	switch {
	case err != nil:
		attempt.Err = err.Error()
	case !matched:
		attempt.Err = fmt.Sprintf("no option matches %q", value)
	default:
		attempt.Verified = true
		return Result{
			OK:       true,
			Method:   attempt.Strategy,
			Attempts: []Attempt{attempt},
			Elapsed:  time.Since(start),
		}
	}

	options, optErr := nativeOptions(ctx, el)
	if optErr != nil {
		x.log.Debug("could not list native options", zap.Error(optErr))
	}
	f := failure(ctx, FailActionFailed, attempt.Err)
	return Result{
		Failure:  f.Failure,
		Reason:   f.Reason,
		Method:   "",
		Attempts: []Attempt{attempt},
		Options:  options,
		Elapsed:  time.Since(start),
	}
}
