package verify

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// ElementState is the before/after capture used for change detection. A
// state with Exists false describes an element no longer in the document,
// which is itself a meaningful outcome.
type ElementState struct {
	Exists     bool
	Text       string
	Value      string
	Class      string
	Rect       dom.Rect
	Focused    bool
	Checked    bool
	Disabled   bool
	Expanded   *bool
	Selected   *bool
	ChildCount int
}

// CaptureState reads the element's observable state. A detached element
// yields Exists false rather than an error.
func CaptureState(ctx context.Context, el dom.Element) (ElementState, error) {
	snap, err := el.Snapshot(ctx)
	if errors.Is(err, dom.ErrDetached) {
		return ElementState{}, nil
	}
	if err != nil {
		return ElementState{}, fmt.Errorf("verify: capture: %w", err)
	}
	return ElementState{
		Exists:     true,
		Text:       snap.Text,
		Value:      snap.Value,
		Class:      snap.Attr("class"),
		Rect:       snap.Rect,
		Focused:    snap.Focused,
		Checked:    snap.Checked,
		Disabled:   snap.Disabled,
		Expanded:   snap.AriaBool("aria-expanded"),
		Selected:   snap.AriaBool("aria-selected"),
		ChildCount: snap.ChildCount,
	}, nil
}

// rectEpsilon ignores sub-pixel jitter when comparing geometry.
const rectEpsilon = 1.0

// Diff lists the observable differences from s to after, in human-readable
// form. An empty result means nothing changed.
func (s ElementState) Diff(after ElementState) []string {
	var changes []string
	switch {
	case s.Exists && !after.Exists:
		return []string{"element left the document"}
	case !s.Exists && after.Exists:
		return []string{"element entered the document"}
	case !s.Exists && !after.Exists:
		return nil
	}

	if s.Text != after.Text {
		changes = append(changes, fmt.Sprintf("text %q -> %q", clipStr(s.Text), clipStr(after.Text)))
	}
	if s.Value != after.Value {
		changes = append(changes, fmt.Sprintf("value %q -> %q", clipStr(s.Value), clipStr(after.Value)))
	}
	if s.Class != after.Class {
		changes = append(changes, "class list changed")
	}
	if s.Focused != after.Focused {
		if after.Focused {
			changes = append(changes, "gained focus")
		} else {
			changes = append(changes, "lost focus")
		}
	}
	if s.Checked != after.Checked {
		changes = append(changes, fmt.Sprintf("checked %t -> %t", s.Checked, after.Checked))
	}
	if s.Disabled != after.Disabled {
		changes = append(changes, fmt.Sprintf("disabled %t -> %t", s.Disabled, after.Disabled))
	}
	if diff := triStateDiff("expanded", s.Expanded, after.Expanded); diff != "" {
		changes = append(changes, diff)
	}
	if diff := triStateDiff("selected", s.Selected, after.Selected); diff != "" {
		changes = append(changes, diff)
	}
	if s.ChildCount != after.ChildCount {
		changes = append(changes, fmt.Sprintf("child count %d -> %d", s.ChildCount, after.ChildCount))
	}
	if rectMoved(s.Rect, after.Rect) {
		changes = append(changes, "moved or resized")
	}
	return changes
}

// Changed reports whether any observable difference exists.
func (s ElementState) Changed(after ElementState) bool {
	return len(s.Diff(after)) > 0
}

func triStateDiff(name string, a, b *bool) string {
	format := func(v *bool) string {
		if v == nil {
			return "unset"
		}
		return fmt.Sprintf("%t", *v)
	}
	if (a == nil) != (b == nil) || (a != nil && *a != *b) {
		return fmt.Sprintf("%s %s -> %s", name, format(a), format(b))
	}
	return ""
}

func rectMoved(a, b dom.Rect) bool {
	return math.Abs(a.X-b.X) > rectEpsilon || math.Abs(a.Y-b.Y) > rectEpsilon ||
		math.Abs(a.Width-b.Width) > rectEpsilon || math.Abs(a.Height-b.Height) > rectEpsilon
}

func clipStr(s string) string {
	r := []rune(s)
	if len(r) <= 40 {
		return s
	}
	return string(r[:40]) + "..."
}
