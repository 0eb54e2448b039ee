// Package gate decides whether an element can actually receive an
// interaction right now. Checks run as an ordered veto chain and the first
// failure wins, so callers always learn the cheapest reason first and never
// act on an element the user could not have reached.
package gate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// Code names a veto reason.
type Code string

const (
	CodeDisplayNone Code = "display-none"
	CodeHidden      Code = "visibility-hidden"
	CodeTransparent Code = "zero-opacity"
	CodeZeroSize    Code = "zero-size"
	CodeOffViewport Code = "outside-viewport"
	CodeDisabled    Code = "disabled"
	CodeObscured    Code = "obscured"
)

// Report is the outcome of a check. A failed report names the first check
// that vetoed, a human-readable reason, and a remedy hint. Notes carry
// advisory findings that never block.
type Report struct {
	OK     bool
	Code   Code
	Reason string
	Remedy string
	Notes  []string
}

func vetoed(code Code, reason, remedy string) Report {
	return Report{Code: code, Reason: reason, Remedy: remedy}
}

// Checker runs the veto chain. AutoScroll controls whether an off-viewport
// element gets one scroll attempt before being vetoed.
type Checker struct {
	log        *zap.Logger
	AutoScroll bool
}

// NewChecker returns a Checker with scrolling enabled. A nil logger
// disables logging.
func NewChecker(log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{log: log.Named("gate"), AutoScroll: true}
}

// Visible applies the style subset of the chain to an already-captured
// snapshot: display, visibility, opacity and extent. Resolution uses it to
// discard candidates cheaply; it deliberately skips the viewport, disabled
// and obscurement checks, which need the live document.
func Visible(s dom.Snapshot) bool {
	return s.Display != "none" && s.Visibility == "visible" &&
		s.Opacity > 0 && !s.Rect.Empty()
}

// Check runs the full chain against the element's current state. The
// returned error reports transport problems only; a vetoed element is a
// non-OK Report, not an error.
func (c *Checker) Check(ctx context.Context, doc dom.Document, el dom.Element) (Report, error) {
	snap, err := el.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("gate: snapshot: %w", err)
	}

	if snap.Display == "none" {
		return vetoed(CodeDisplayNone, "element is display:none", "wait for the element to be shown"), nil
	}
	if snap.Visibility != "visible" {
		return vetoed(CodeHidden, fmt.Sprintf("element is visibility:%s", snap.Visibility), "wait for the element to be shown"), nil
	}
	if snap.Opacity <= 0 {
		return vetoed(CodeTransparent, "element has effective opacity 0", "wait for the element to fade in"), nil
	}
	if snap.Rect.Empty() {
		return vetoed(CodeZeroSize, fmt.Sprintf("element has no extent (%.0fx%.0f)", snap.Rect.Width, snap.Rect.Height), "wait for layout to settle"), nil
	}

	snap, report, err := c.checkViewport(ctx, doc, el, snap)
	if err != nil || !report.OK {
		return report, err
	}

	if r := checkDisabled(snap); !r.OK {
		return r, nil
	}

	report, err = c.checkObscured(ctx, doc, el, snap)
	if err != nil || !report.OK {
		return report, err
	}

	if !signature.IsSemanticTarget(snap) {
		report.Notes = append(report.Notes,
			fmt.Sprintf("<%s> is not an obviously interactive element", snap.Tag))
	}
	return report, nil
}

// checkViewport vetoes elements outside the viewport, after giving them one
// scroll attempt when enabled. It returns the refreshed snapshot so later
// checks see post-scroll geometry.
func (c *Checker) checkViewport(ctx context.Context, doc dom.Document, el dom.Element, snap dom.Snapshot) (dom.Snapshot, Report, error) {
	vp, err := doc.Viewport(ctx)
	if err != nil {
		return snap, Report{}, fmt.Errorf("gate: viewport: %w", err)
	}
	if inViewport(snap.Rect, vp) {
		return snap, Report{OK: true}, nil
	}
	if !c.AutoScroll {
		return snap, vetoed(CodeOffViewport, "element is outside the viewport", "scroll the element into view"), nil
	}
	if err := el.ScrollIntoView(ctx); err != nil {
		return snap, Report{}, fmt.Errorf("gate: scroll into view: %w", err)
	}
	refreshed, err := el.Snapshot(ctx)
	if err != nil {
		return snap, Report{}, fmt.Errorf("gate: snapshot after scroll: %w", err)
	}
	if !inViewport(refreshed.Rect, vp) {
		return refreshed, vetoed(CodeOffViewport, "element stays outside the viewport after scrolling", "check for a scroll container or fixed layout"), nil
	}
	c.log.Debug("scrolled element into view")
	return refreshed, Report{OK: true}, nil
}

// inViewport requires the element's center to be inside the viewport, which
// is where pointer strategies will aim.
func inViewport(r, vp dom.Rect) bool {
	cx, cy := r.Center()
	return vp.Contains(cx, cy)
}

func checkDisabled(s dom.Snapshot) Report {
	if s.Disabled {
		return vetoed(CodeDisabled, "element is disabled", "wait until the control is enabled")
	}
	if b := s.AriaBool("aria-disabled"); b != nil && *b {
		return vetoed(CodeDisabled, "element is aria-disabled", "wait until the control is enabled")
	}
	for _, cl := range s.Classes() {
		if strings.Contains(strings.ToLower(cl), "disabled") {
			return vetoed(CodeDisabled, fmt.Sprintf("element carries disabled-pattern class %q", cl), "wait until the control is enabled")
		}
	}
	if s.PointerEvents == "none" {
		return vetoed(CodeDisabled, "element suppresses pointer events", "wait until the control accepts input")
	}
	return Report{OK: true}
}

// maxRelationWalk bounds ancestor walks in the obscurement tolerance check.
const maxRelationWalk = 15

// checkObscured hit-tests the element's center. Another element on top is
// tolerated when it is part of the same control: an ancestor, a descendant,
// or a sibling under a shared clickable ancestor.
func (c *Checker) checkObscured(ctx context.Context, doc dom.Document, el dom.Element, snap dom.Snapshot) (Report, error) {
	cx, cy := snap.Rect.Center()
	hit, err := doc.ElementFromPoint(ctx, cx, cy)
	if err != nil {
		return Report{}, fmt.Errorf("gate: hit test: %w", err)
	}
	if hit == nil {
		return vetoed(CodeObscured, "nothing is rendered at the element's center", "wait for layout to settle"), nil
	}
	if hit.NodeKey() == el.NodeKey() {
		return Report{OK: true}, nil
	}

	elChain, err := ancestorKeys(ctx, el)
	if err != nil {
		return Report{}, err
	}
	// The hit being an ancestor of the target is fine: the target paints
	// inside it.
	if _, ok := elChain[hit.NodeKey()]; ok {
		return Report{OK: true}, nil
	}

	// Walk up from the hit: reaching the target means the hit is a
	// descendant; reaching a shared clickable ancestor means both are parts
	// of one control.
	cur := hit
	for i := 0; i < maxRelationWalk && cur != nil; i++ {
		if cur.NodeKey() == el.NodeKey() {
			return Report{OK: true}, nil
		}
		if _, shared := elChain[cur.NodeKey()]; shared {
			cs, err := cur.Snapshot(ctx)
			if err != nil {
				return Report{}, err
			}
			if signature.IsSemanticTarget(cs) {
				return Report{OK: true}, nil
			}
			break
		}
		cur, err = cur.Parent(ctx)
		if err != nil {
			return Report{}, err
		}
	}

	hs, err := hit.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	return vetoed(CodeObscured,
		fmt.Sprintf("element is covered by <%s> %s", hs.Tag, describeNode(hs)),
		"wait for the covering element to close"), nil
}

func ancestorKeys(ctx context.Context, el dom.Element) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	cur := el
	for i := 0; i < maxRelationWalk; i++ {
		parent, err := cur.Parent(ctx)
		if err != nil {
			return nil, fmt.Errorf("gate: ancestry: %w", err)
		}
		if parent == nil {
			break
		}
		keys[parent.NodeKey()] = struct{}{}
		cur = parent
	}
	return keys, nil
}

func describeNode(s dom.Snapshot) string {
	switch {
	case s.ID != "":
		return "#" + s.ID
	case len(s.Classes()) > 0:
		return "." + s.Classes()[0]
	case s.Text != "":
		r := []rune(s.Text)
		return fmt.Sprintf("%q", string(r[:min(len(r), 30)]))
	default:
		return ""
	}
}
