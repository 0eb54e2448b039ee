// Package engine replays recorded workflows step by step: settle, resolve,
// act, verify, record. Each step runs strictly after the previous one; the
// only shared mutable state is the live document, re-read on every check.
// Failures are step results, never panics, and whether a failed step halts
// the run is the caller's policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nathanhui97/autoflow/internal/action"
	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/resolve"
	"github.com/nathanhui97/autoflow/internal/signature"
	"github.com/nathanhui97/autoflow/internal/verify"
	"github.com/nathanhui97/autoflow/internal/workflow"
)

// Config tunes the run loop. Zero values fall back to the defaults below,
// or to the collaborator's own defaults where one exists.
type Config struct {
	// ResolveTimeout and ResolveInterval bound each step's resolution run.
	// Zero values take the resolver's defaults.
	ResolveTimeout  time.Duration
	ResolveInterval time.Duration
	// AutoPickBest takes the leading candidate instead of failing a step
	// as ambiguous.
	AutoPickBest bool
	// QuietWindow and QuiesceTimeout bound the pre-step settle wait. Zero
	// values take the waiter's defaults.
	QuietWindow    time.Duration
	QuiesceTimeout time.Duration
	// RenderWindow bounds the re-resolve retry when a found target still
	// reports zero area.
	RenderWindow time.Duration
	// ExpectWindow bounds post-action expected-outcome checks.
	ExpectWindow time.Duration
	// StepPause is the fixed pause separating steps, applied before the
	// quiescence wait so page-level reactions get a beat to start.
	StepPause time.Duration
}

const (
	defaultRenderWindow = 1 * time.Second
	defaultExpectWindow = 1 * time.Second
	defaultStepPause    = 500 * time.Millisecond
)

func (c Config) renderWindow() time.Duration {
	if c.RenderWindow > 0 {
		return c.RenderWindow
	}
	return defaultRenderWindow
}

func (c Config) expectWindow() time.Duration {
	if c.ExpectWindow > 0 {
		return c.ExpectWindow
	}
	return defaultExpectWindow
}

func (c Config) stepPause() time.Duration {
	if c.StepPause > 0 {
		return c.StepPause
	}
	return defaultStepPause
}

// Options carries per-run policy.
type Options struct {
	// Vars supplies runtime variable values, layered over the workflow's
	// own variable map entry by entry.
	Vars map[string]string
	// ContinueOnFailure keeps executing after a failed step instead of
	// halting the run.
	ContinueOnFailure bool
	Hooks             Hooks
}

// Engine drives one workflow run at a time against a live document. It keeps
// no per-run state and may be reused across runs.
type Engine struct {
	log      *zap.Logger
	resolver *resolve.Resolver
	exec     *action.Executor
	waiter   *verify.Waiter
	net      verify.PendingCounter
	cfg      Config
}

// New wires an engine. Nil collaborators get quiet defaults so callers only
// build the pieces they need to tune.
func New(log *zap.Logger, resolver *resolve.Resolver, exec *action.Executor, waiter *verify.Waiter, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if resolver == nil {
		resolver = resolve.NewResolver(nil)
	}
	if exec == nil {
		exec = action.NewExecutor(nil, nil, nil, action.Config{})
	}
	if waiter == nil {
		waiter = verify.NewWaiter(nil)
	}
	return &Engine{
		log:      log.Named("engine"),
		resolver: resolver,
		exec:     exec,
		waiter:   waiter,
		cfg:      cfg,
	}
}

// AttachNetwork wires a network-activity counter into the pre-step
// quiescence wait. Pass nil to go back to DOM-only quiescence.
func (e *Engine) AttachNetwork(net verify.PendingCounter) {
	e.net = net
}

// Run replays the workflow's steps in order against doc. A failed step halts
// the run unless Options.ContinueOnFailure is set; a canceled context stops
// it at the next step boundary. The returned result always covers every step
// that started.
func (e *Engine) Run(ctx context.Context, doc dom.Document, wf *workflow.Workflow, opts Options) WorkflowResult {
	start := time.Now()
	res := WorkflowResult{
		RunID:    uuid.NewString(),
		Workflow: wf.Name,
		Total:    len(wf.Steps),
		Started:  start.UTC(),
	}
	log := e.log.With(zap.String("run_id", res.RunID), zap.String("workflow", wf.Name))
	log.Info("run starting", zap.Int("steps", res.Total))

	vars := mergeVars(wf.Vars, opts.Vars)
	// The limiter starts with a full token, so the first step pays no pause.
	limiter := rate.NewLimiter(rate.Every(e.cfg.stepPause()), 1)

	for i, step := range wf.Steps {
		if err := limiter.Wait(ctx); err != nil {
			res.Summary = fmt.Sprintf("run canceled before step %d (%s): %v", i+1, step.Label(), err)
			log.Warn("run canceled between steps", zap.Int("step", i+1), zap.Error(err))
			break
		}
		if opts.Hooks.OnStepStart != nil {
			opts.Hooks.OnStepStart(i, step)
		}

		sr := e.runStep(ctx, doc, step, vars)
		res.Steps = append(res.Steps, sr)

		if sr.OK {
			res.Completed++
			log.Info("step done",
				zap.String("step", step.Label()),
				zap.String("kind", string(step.Pattern.Kind)),
				zap.Duration("elapsed", sr.Elapsed))
		} else {
			log.Warn("step failed",
				zap.String("step", step.Label()),
				zap.String("kind", string(step.Pattern.Kind)),
				zap.String("error", sr.Error))
			if opts.Hooks.OnError != nil {
				opts.Hooks.OnError(i, sr)
			}
		}
		if opts.Hooks.OnStepDone != nil {
			opts.Hooks.OnStepDone(i, sr)
		}

		if !sr.OK && !opts.ContinueOnFailure {
			break
		}
	}

	res.OK = res.Completed == res.Total
	res.Elapsed = time.Since(start)
	if !res.OK && res.Summary == "" {
		res.Summary = summarize(res.Steps, res.Total)
	}
	log.Info("run finished",
		zap.Bool("ok", res.OK),
		zap.Int("completed", res.Completed),
		zap.Int("total", res.Total),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// runStep executes one step end to end. Panics out of the dom layer or a
// collaborator downgrade to a failed result so one broken step can never
// take down the run.
func (e *Engine) runStep(ctx context.Context, doc dom.Document, step workflow.UniversalStep, vars map[string]string) (sr StepResult) {
	start := time.Now()
	sr = StepResult{ID: step.ID, Name: step.Label(), Kind: step.Pattern.Kind}
	defer func() {
		if r := recover(); r != nil {
			sr.OK = false
			sr.Error = fmt.Sprintf("step panicked: %v", r)
			e.log.Error("step panicked",
				zap.String("step", step.Label()),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
		sr.Elapsed = time.Since(start)
	}()

	if err := step.Validate(); err != nil {
		sr.Error = err.Error()
		return sr
	}

	e.settle(ctx, doc)

	pat := substitutePattern(step.Pattern, vars)
	expect := substituteOutcomes(step.Expect, vars)

	ropts := resolve.Options{
		Timeout:      e.cfg.ResolveTimeout,
		Interval:     e.cfg.ResolveInterval,
		AutoPickBest: e.cfg.AutoPickBest,
	}
	rres, err := e.resolver.ResolveAcrossBoundaries(ctx, doc, step.Path, ropts)
	if err != nil {
		// Boundary crossings fail loudly in the resolver; here they are one
		// more way a step fails.
		sr.Resolution = &rres
		sr.Error = err.Error()
		return sr
	}
	if !rres.Found() {
		sr.Resolution = &rres
		sr.Error = resolutionFailure(rres)
		return sr
	}
	scope := rres.Scope
	if scope == nil {
		scope = doc
	}
	rres = e.settleRender(ctx, scope, step.Path.Target, rres, ropts)
	sr.Resolution = &rres

	baseURL, _ := scope.URL(ctx)

	ares := e.dispatch(ctx, scope, rres.Element, step, pat, expect, ropts)
	sr.Action = &ares
	if !ares.OK {
		sr.Error = actionFailure(pat.Kind, ares)
		return sr
	}

	// Click folds explicit outcomes into its own verification; every other
	// kind checks them after its built-in effect verified.
	if pat.Kind != pattern.SimpleClick {
		if err := e.checkOutcomes(ctx, scope, rres.Element, expect, baseURL); err != nil {
			sr.Error = err.Error()
			return sr
		}
	}

	sr.OK = true
	return sr
}

// dispatch routes the step to its primitive. The switch is exhaustive over
// pattern kinds; extending the union means extending this switch.
func (e *Engine) dispatch(ctx context.Context, scope dom.Document, el dom.Element, step workflow.UniversalStep, pat pattern.Pattern, expect []verify.ExpectedOutcome, ropts resolve.Options) action.Result {
	switch pat.Kind {
	case pattern.SimpleClick:
		return e.exec.Click(ctx, scope, el, action.ClickSpec{
			Target: step.Path.Target.ClickTarget,
			Expect: expect,
		})
	case pattern.DropdownSelect:
		trigger := el
		if pat.Dropdown.Trigger != nil {
			tr := e.resolver.Resolve(ctx, scope, *pat.Dropdown.Trigger, ropts)
			if !tr.Found() {
				return action.Result{
					Failure: action.FailActionFailed,
					Reason:  fmt.Sprintf("dropdown trigger not resolved: %s", tr.Outcome),
				}
			}
			trigger = tr.Element
		}
		return e.exec.SelectDropdown(ctx, scope, trigger, *pat.Dropdown)
	case pattern.MultiSelect:
		return e.exec.SelectMulti(ctx, scope, el, *pat.Multi)
	case pattern.Autocomplete:
		return e.exec.Autocomplete(ctx, scope, el, *pat.Auto)
	case pattern.TextInput:
		return e.exec.TextInput(ctx, scope, el, *pat.Text)
	case pattern.Toggle:
		return e.exec.Toggle(ctx, scope, el, *pat.Toggle)
	case pattern.TabSelect:
		return e.exec.SelectTab(ctx, scope, el, pat.Tab)
	case pattern.ModalTrigger:
		return e.exec.OpenModal(ctx, scope, el, pat.Modal)
	case pattern.MenuNavigation:
		return e.exec.NavigateMenu(ctx, scope, el, *pat.Menu)
	default:
		return action.Result{
			Failure: action.FailActionFailed,
			Reason:  fmt.Sprintf("unknown pattern kind %q", pat.Kind),
		}
	}
}

// settle waits for the document to stop mutating before a step resolves.
// A page that never settles is routine (carousels, tickers), so the timeout
// is absorbed and the step proceeds against the moving document.
func (e *Engine) settle(ctx context.Context, doc dom.Document) {
	spec := verify.QuiesceSpec{
		Quiet:   e.cfg.QuietWindow,
		Timeout: e.cfg.QuiesceTimeout,
		Net:     e.net,
	}
	if err := e.waiter.WaitQuiescent(ctx, doc, spec); err != nil {
		e.log.Debug("document did not settle, proceeding", zap.Error(err))
	}
}

// settleRender waits out late layout. Framework-rendered targets often
// resolve before they are sized; when the found element reports zero area,
// re-resolve briefly in case the node was remounted with real geometry. On
// timeout the zero-area element goes forward and the gate names the veto.
func (e *Engine) settleRender(ctx context.Context, scope dom.Document, sig signature.ElementSignature, res resolve.Result, ropts resolve.Options) resolve.Result {
	snap, err := res.Element.Snapshot(ctx)
	if err != nil || snap.Rect.Area() > 0 {
		return res
	}
	e.log.Debug("target has zero area, waiting for layout",
		zap.String("signature", sig.Label()))

	// One resolution round per poll; the outer wait owns the budget.
	oneRound := resolve.Options{
		Timeout:      time.Millisecond,
		Interval:     ropts.Interval,
		AutoPickBest: ropts.AutoPickBest,
	}
	best := res
	_ = e.waiter.WaitFor(ctx, e.cfg.renderWindow(), "target layout", func(ctx context.Context) (bool, error) {
		if snap, err := best.Element.Snapshot(ctx); err == nil && snap.Rect.Area() > 0 {
			return true, nil
		}
		rr := e.resolver.Resolve(ctx, scope, sig, oneRound)
		if !rr.Found() {
			return false, nil
		}
		if snap, err := rr.Element.Snapshot(ctx); err == nil && snap.Rect.Area() > 0 {
			rr.Scope = scope
			best = rr
			return true, nil
		}
		return false, nil
	})
	return best
}

// checkOutcomes waits for each recorded expectation in order. baseURL is the
// document URL captured before the action so url_changes has its reference.
func (e *Engine) checkOutcomes(ctx context.Context, scope dom.Document, el dom.Element, expect []verify.ExpectedOutcome, baseURL string) error {
	for _, out := range expect {
		out := out
		err := e.waiter.WaitFor(ctx, e.cfg.expectWindow(), out.String(), func(ctx context.Context) (bool, error) {
			return out.Check(ctx, scope, el, baseURL)
		})
		if err != nil {
			if errors.Is(err, verify.ErrTimeout) {
				return fmt.Errorf("expected outcome not met: %s", out)
			}
			return fmt.Errorf("expected outcome %s: %w", out, err)
		}
	}
	return nil
}

// resolutionFailure renders a resolve miss for the step error.
func resolutionFailure(r resolve.Result) string {
	switch r.Outcome {
	case resolve.OutcomeAmbiguous:
		descs := make([]string, 0, len(r.Candidates))
		for _, c := range r.Candidates {
			descs = append(descs, c.Descriptor)
		}
		return fmt.Sprintf("target ambiguous between %d candidates: %s",
			len(r.Candidates), strings.Join(descs, ", "))
	default:
		if r.Err != nil {
			return fmt.Sprintf("target not found: %v", r.Err)
		}
		if len(r.Tried) > 0 {
			return fmt.Sprintf("target not found; tried %s", strings.Join(r.Tried, ", "))
		}
		return "target not found"
	}
}

// actionFailure renders a primitive failure for the step error. Dropdown
// failures carry the options that were visible so a broken step can be fixed
// without re-recording.
func actionFailure(kind pattern.Kind, res action.Result) string {
	reason := res.Reason
	if reason == "" {
		reason = string(res.Failure)
	}
	if len(res.Options) > 0 {
		reason = fmt.Sprintf("%s (visible options: %s)", reason, strings.Join(res.Options, ", "))
	}
	return fmt.Sprintf("%s: %s", kind, reason)
}
