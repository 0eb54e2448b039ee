// Package dom defines the narrow surface the replay engine needs from a live
// document. Production code talks to a real browser through the cdp adapter;
// tests use the in-memory domtest implementation. Everything above this
// package is written against these interfaces only.
package dom

import (
	"context"
	"errors"
)

var (
	// ErrDetached is returned when an element handle no longer refers to a
	// node in the live document (removed or replaced since resolution).
	ErrDetached = errors.New("dom: element detached from document")

	// ErrNoShadowRoot is returned by EnterShadow when the host element does
	// not own a shadow root.
	ErrNoShadowRoot = errors.New("dom: element has no shadow root")

	// ErrClosedShadowRoot is returned by EnterShadow when the shadow root
	// exists but is closed to outside traversal.
	ErrClosedShadowRoot = errors.New("dom: shadow root is closed")

	// ErrNoFrameContent is returned by EnterFrame when the host element does
	// not embed a frame.
	ErrNoFrameContent = errors.New("dom: element hosts no frame")

	// ErrCrossOriginFrame is returned by EnterFrame when the embedded frame
	// belongs to another origin and its document cannot be reached.
	ErrCrossOriginFrame = errors.New("dom: frame is cross-origin")
)

// Document is one browsing scope: a page, an iframe's document, or an open
// shadow root. Queries never escape the scope they were issued against.
type Document interface {
	// QueryAll returns every element in the scope matching the CSS selector,
	// in document order. A selector with no matches returns an empty slice,
	// not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// QueryXPath evaluates an XPath expression against the scope and returns
	// the matching elements in document order.
	QueryXPath(ctx context.Context, expr string) ([]Element, error)

	// ElementFromPoint returns the topmost element rendered at the given
	// viewport coordinates, or nil when the point hits no element.
	ElementFromPoint(ctx context.Context, x, y float64) (Element, error)

	// ActiveElement returns the element holding keyboard focus, or nil when
	// focus sits on the body or nowhere.
	ActiveElement(ctx context.Context) (Element, error)

	// Viewport reports the current visual viewport in CSS pixels.
	Viewport(ctx context.Context) (Rect, error)

	// URL reports the scope's current location.
	URL(ctx context.Context) (string, error)

	// Title reports the document title of the scope.
	Title(ctx context.Context) (string, error)

	// MutationCount returns a monotonically increasing counter of observed
	// DOM mutations in the scope. Two equal reads separated by a quiet
	// window mean the document has settled.
	MutationCount(ctx context.Context) (uint64, error)

	// EnterShadow returns a Document scoped to the host's shadow root.
	EnterShadow(ctx context.Context, host Element) (Document, error)

	// EnterFrame returns a Document scoped to the frame embedded by host.
	EnterFrame(ctx context.Context, host Element) (Document, error)
}

// Element is a handle to one node in a Document. Handles are cheap and
// re-resolvable; state is always read fresh through Snapshot rather than
// cached on the handle.
type Element interface {
	// NodeKey returns an identity token stable for the lifetime of the node
	// within its document. Two handles to the same node return equal keys.
	// Keys are not meaningful across navigations.
	NodeKey() string

	// Snapshot reads the element's current state in one round trip.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Parent returns the parent element, or nil at the scope root.
	Parent(ctx context.Context) (Element, error)

	// Children returns the element's child elements in document order.
	Children(ctx context.Context) ([]Element, error)

	// QueryAll runs a CSS query scoped to this element's subtree.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// ScrollIntoView scrolls the element into the visual viewport.
	ScrollIntoView(ctx context.Context) error

	// Focus moves keyboard focus onto the element.
	Focus(ctx context.Context) error

	// Blur removes keyboard focus from the element.
	Blur(ctx context.Context) error

	// Click performs the element's native activation behavior, the
	// equivalent of el.click().
	Click(ctx context.Context) error

	// SetValue writes a value through the element's native mechanism:
	// the value property for inputs and textareas (bypassing any framework
	// wrapper so change tracking still fires), text content for editable
	// regions.
	SetValue(ctx context.Context, value string) error

	// SelectOption chooses the option whose label or value matches text on
	// a native select element. It reports whether an option matched.
	SelectOption(ctx context.Context, text string) (bool, error)

	// DispatchMouse dispatches a synthetic mouse event targeted at the
	// element's coordinates.
	DispatchMouse(ctx context.Context, ev MouseEvent) error

	// DispatchKey dispatches a synthetic keyboard event to the element.
	DispatchKey(ctx context.Context, ev KeyEvent) error

	// DispatchEvent fires a simple bubbling DOM event ("input", "change",
	// "blur") on the element.
	DispatchEvent(ctx context.Context, eventType string) error
}
