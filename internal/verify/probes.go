package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/gate"
)

// Probes answer one-shot presence questions. They are the building blocks
// the primitives assemble verification conditions from; pair them with
// Waiter.WaitFor for the polled variants.

// VisibleBySelector reports whether any element matching the CSS selector is
// currently visible.
func VisibleBySelector(ctx context.Context, doc dom.Document, selector string) (bool, error) {
	els, err := doc.QueryAll(ctx, selector)
	if err != nil {
		return false, err
	}
	return anyVisible(ctx, els)
}

// VisibleByText reports whether the given text is rendered anywhere in the
// document. Candidates are located by raw text, then confirmed against
// rendered text so content hidden by style does not count.
func VisibleByText(ctx context.Context, doc dom.Document, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}
	els, err := doc.QueryXPath(ctx, fmt.Sprintf("//*[contains(., %s)]", xpathLiteral(text)))
	if err != nil {
		return false, err
	}
	for _, el := range els {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			continue
		}
		if gate.Visible(snap) && strings.Contains(snap.Text, text) {
			return true, nil
		}
	}
	return false, nil
}

// anyVisible reports whether any handle passes the style visibility subset.
func anyVisible(ctx context.Context, els []dom.Element) (bool, error) {
	for _, el := range els {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			continue
		}
		if gate.Visible(snap) {
			return true, nil
		}
	}
	return false, nil
}

// xpathLiteral renders s as an XPath string literal, switching quote styles
// or concatenating when s contains both kinds.
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	default:
		parts := strings.Split(s, "'")
		var b strings.Builder
		b.WriteString("concat(")
		for i, p := range parts {
			if i > 0 {
				b.WriteString(`, "'", `)
			}
			b.WriteString("'" + p + "'")
		}
		b.WriteString(")")
		return b.String()
	}
}
