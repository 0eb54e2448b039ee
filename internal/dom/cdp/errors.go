// File: internal/dom/cdp/errors.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// detachedMarkers are protocol error fragments that mean the node handle or
// its execution context is gone, not that the call was malformed. The
// protocol spells this a dozen ways depending on which domain noticed first.
var detachedMarkers = []string{
	"cannot find context",
	"execution context was destroyed",
	"execution context is not available",
	"could not find node",
	"no node with given id",
	"node with given id does not belong to the document",
	"could not find object",
	"object id doesn't reference a node",
	"node is detached",
	"inspected target navigated or closed",
	"cannot find default execution context",
	"argument should belong to the same javascript world",
}

// mapErr folds every stale-handle protocol failure into dom.ErrDetached so
// callers re-resolve instead of aborting the step. Context cancellation
// passes through untouched.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range detachedMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", dom.ErrDetached, err)
		}
	}
	return err
}

// jsError converts an exception thrown inside an injected function into a
// plain error, keeping only the first line of the description since the
// rest is a page-side stack trace.
func jsError(ex *runtime.ExceptionDetails) error {
	if ex == nil {
		return nil
	}
	desc := ex.Text
	if ex.Exception != nil && ex.Exception.Description != "" {
		desc = ex.Exception.Description
	}
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		desc = desc[:i]
	}
	return fmt.Errorf("cdp: script exception: %s", desc)
}
