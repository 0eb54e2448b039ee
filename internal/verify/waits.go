package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// Named waits over the generic WaitFor loop. Selector wins over text when
// both are given, matching ExpectedOutcome.

// WaitAppear blocks until an element located by CSS selector or rendered
// text becomes visible.
func (w *Waiter) WaitAppear(ctx context.Context, doc dom.Document, timeout time.Duration, selector, text string) error {
	what := fmt.Sprintf("%s to appear", describeTarget(selector, text))
	return w.WaitFor(ctx, timeout, what, func(ctx context.Context) (bool, error) {
		return visibleTarget(ctx, doc, selector, text)
	})
}

// WaitDisappear blocks until no visible element matches. An element that was
// never present satisfies it immediately.
func (w *Waiter) WaitDisappear(ctx context.Context, doc dom.Document, timeout time.Duration, selector, text string) error {
	what := fmt.Sprintf("%s to disappear", describeTarget(selector, text))
	return w.WaitFor(ctx, timeout, what, func(ctx context.Context) (bool, error) {
		ok, err := visibleTarget(ctx, doc, selector, text)
		return !ok, err
	})
}

// WaitText blocks until the text is rendered somewhere in the document.
func (w *Waiter) WaitText(ctx context.Context, doc dom.Document, timeout time.Duration, text string) error {
	return w.WaitAppear(ctx, doc, timeout, "", text)
}

// WaitURLChange blocks until the document URL differs from the given one.
func (w *Waiter) WaitURLChange(ctx context.Context, doc dom.Document, timeout time.Duration, from string) error {
	return w.WaitFor(ctx, timeout, "url to change", func(ctx context.Context) (bool, error) {
		u, err := doc.URL(ctx)
		if err != nil {
			return false, err
		}
		return u != from, nil
	})
}

func visibleTarget(ctx context.Context, doc dom.Document, selector, text string) (bool, error) {
	if selector != "" {
		return VisibleBySelector(ctx, doc, selector)
	}
	if text != "" {
		return VisibleByText(ctx, doc, text)
	}
	return false, fmt.Errorf("verify: wait target needs a selector or text")
}

func describeTarget(selector, text string) string {
	if selector != "" {
		return selector
	}
	return fmt.Sprintf("%q", text)
}
