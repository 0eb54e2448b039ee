package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// OutcomeKind names one recordable expectation about an action's effect.
type OutcomeKind string

const (
	// OutcomeAppear expects an element (by selector or rendered text) to be
	// visible after the action.
	OutcomeAppear OutcomeKind = "appear"
	// OutcomeDisappear expects no visible match after the action.
	OutcomeDisappear OutcomeKind = "disappear"
	// OutcomeURLContains expects the document URL to contain Value.
	OutcomeURLContains OutcomeKind = "url_contains"
	// OutcomeURLChanges expects the document URL to differ from its
	// pre-action value.
	OutcomeURLChanges OutcomeKind = "url_changes"
	// OutcomeAttrEquals expects the acted-on element's attribute Attr to
	// equal Value.
	OutcomeAttrEquals OutcomeKind = "attr_equals"
)

// ExpectedOutcome is one recorded expectation. Selector wins over Text when
// both locate the appear/disappear target.
type ExpectedOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	Selector string      `json:"selector,omitempty"`
	Text     string      `json:"text,omitempty"`
	Attr     string      `json:"attr,omitempty"`
	Value    string      `json:"value,omitempty"`
}

// Validate rejects outcomes that could never be checked.
func (e ExpectedOutcome) Validate() error {
	switch e.Kind {
	case OutcomeAppear, OutcomeDisappear:
		if e.Selector == "" && strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("outcome %s needs a selector or text", e.Kind)
		}
	case OutcomeURLContains:
		if e.Value == "" {
			return fmt.Errorf("outcome %s needs a value", e.Kind)
		}
	case OutcomeURLChanges:
	case OutcomeAttrEquals:
		if e.Attr == "" {
			return fmt.Errorf("outcome %s needs an attribute name", e.Kind)
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", e.Kind)
	}
	return nil
}

// Check evaluates the outcome against the current document. target is the
// acted-on element (needed for attr_equals; a detached target reads as not
// yet satisfied). baseURL is the document URL captured before the action.
func (e ExpectedOutcome) Check(ctx context.Context, doc dom.Document, target dom.Element, baseURL string) (bool, error) {
	switch e.Kind {
	case OutcomeAppear:
		return e.visible(ctx, doc)
	case OutcomeDisappear:
		ok, err := e.visible(ctx, doc)
		return !ok, err
	case OutcomeURLContains:
		u, err := doc.URL(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(u, e.Value), nil
	case OutcomeURLChanges:
		u, err := doc.URL(ctx)
		if err != nil {
			return false, err
		}
		return u != baseURL, nil
	case OutcomeAttrEquals:
		if target == nil {
			return false, fmt.Errorf("verify: outcome %s needs a target element", e.Kind)
		}
		snap, err := target.Snapshot(ctx)
		if errors.Is(err, dom.ErrDetached) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return snap.Attr(e.Attr) == e.Value, nil
	default:
		return false, fmt.Errorf("verify: unknown outcome kind %q", e.Kind)
	}
}

func (e ExpectedOutcome) visible(ctx context.Context, doc dom.Document) (bool, error) {
	if e.Selector != "" {
		return VisibleBySelector(ctx, doc, e.Selector)
	}
	return VisibleByText(ctx, doc, e.Text)
}

// String names the outcome for attempt diagnostics.
func (e ExpectedOutcome) String() string {
	switch e.Kind {
	case OutcomeAppear, OutcomeDisappear:
		if e.Selector != "" {
			return fmt.Sprintf("%s %s", e.Kind, e.Selector)
		}
		return fmt.Sprintf("%s %q", e.Kind, e.Text)
	case OutcomeURLContains:
		return fmt.Sprintf("url contains %q", e.Value)
	case OutcomeURLChanges:
		return "url changes"
	case OutcomeAttrEquals:
		return fmt.Sprintf("%s=%q", e.Attr, e.Value)
	default:
		return string(e.Kind)
	}
}
