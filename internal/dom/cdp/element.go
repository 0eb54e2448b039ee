// File: internal/dom/cdp/element.go
package cdp

import (
	"context"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// element is a handle to one live node. The remote object pins the node in
// the renderer; the backend node id keys it, since object ids differ across
// resolutions of the same node.
type element struct {
	scope     *Scope
	objectID  runtime.RemoteObjectID
	backendID cdp.BackendNodeID
}

var _ dom.Element = (*element)(nil)

// NodeKey implements dom.Element.
func (e *element) NodeKey() string {
	return "bn:" + strconv.FormatInt(int64(e.backendID), 10)
}

// Snapshot implements dom.Element.
func (e *element) Snapshot(ctx context.Context) (dom.Snapshot, error) {
	var snap dom.Snapshot
	err := e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsSnapshot, &snap)
	})
	return snap, err
}

// Parent implements dom.Element. The scope root's element has no parent even
// when the node itself does in the wider tree.
func (e *element) Parent(ctx context.Context) (dom.Element, error) {
	var out dom.Element
	err := e.scope.tab.run(ctx, func(ctx context.Context) error {
		obj, err := callOnObject(ctx, e.objectID, jsParent)
		if err != nil || obj == nil {
			return err
		}
		el, err := e.scope.adopt(ctx, obj)
		if err != nil {
			return err
		}
		out = el
		return nil
	})
	return out, err
}

// Children implements dom.Element.
func (e *element) Children(ctx context.Context) ([]dom.Element, error) {
	var out []dom.Element
	err := e.scope.tab.run(ctx, func(ctx context.Context) error {
		arr, err := callOnObject(ctx, e.objectID, jsChildren)
		if err != nil {
			return err
		}
		out, err = e.scope.elementsFromArray(ctx, arr)
		return err
	})
	return out, err
}

// QueryAll implements dom.Element.
func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var out []dom.Element
	err := e.scope.tab.run(ctx, func(ctx context.Context) error {
		arr, err := callOnObject(ctx, e.objectID, jsQueryAll, selector)
		if err != nil {
			return err
		}
		out, err = e.scope.elementsFromArray(ctx, arr)
		return err
	})
	return out, err
}

// ScrollIntoView implements dom.Element.
func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsScrollIntoView, nil)
	})
}

// Focus implements dom.Element.
func (e *element) Focus(ctx context.Context) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		return mapErr(cdpdom.Focus().WithObjectID(e.objectID).Do(ctx))
	})
}

// Blur implements dom.Element.
func (e *element) Blur(ctx context.Context) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsBlur, nil)
	})
}

// Click implements dom.Element.
func (e *element) Click(ctx context.Context) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsClick, nil)
	})
}

// SetValue implements dom.Element. Selects route through option matching so
// the change event fires exactly as a user pick would; other elements get
// the value written without events, which the caller dispatches itself.
func (e *element) SetValue(ctx context.Context, value string) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		var kind string
		if err := callOn(ctx, e.objectID, jsSetValue, &kind, value); err != nil {
			return err
		}
		if kind != "select" {
			return nil
		}
		var matched bool
		return callOn(ctx, e.objectID, jsSelectOption, &matched, value)
	})
}

// SelectOption implements dom.Element.
func (e *element) SelectOption(ctx context.Context, text string) (bool, error) {
	var matched bool
	err := e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsSelectOption, &matched, text)
	})
	return matched, err
}

// DispatchMouse implements dom.Element. Coordinates are already top-level
// viewport pixels, which is the space the input domain expects.
func (e *element) DispatchMouse(ctx context.Context, ev dom.MouseEvent) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		button := ev.Button
		if button == "" {
			button = dom.MouseButtonNone
		}
		p := input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y).
			WithButton(input.MouseButton(button)).
			WithClickCount(int64(ev.ClickCount)).
			WithButtons(int64(ev.Buttons))
		return mapErr(p.Do(ctx))
	})
}

// DispatchKey implements dom.Element.
func (e *element) DispatchKey(ctx context.Context, ev dom.KeyEvent) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		p := input.DispatchKeyEvent(input.KeyType(ev.Type)).
			WithModifiers(input.Modifier(ev.Modifiers))
		if ev.Key != "" {
			p = p.WithKey(ev.Key)
		}
		if ev.Code != "" {
			p = p.WithCode(ev.Code)
		}
		if ev.KeyCode != 0 {
			p = p.WithWindowsVirtualKeyCode(int64(ev.KeyCode)).
				WithNativeVirtualKeyCode(int64(ev.KeyCode))
		}
		if ev.Text != "" {
			p = p.WithText(ev.Text).WithUnmodifiedText(ev.Text)
		}
		return mapErr(p.Do(ctx))
	})
}

// DispatchEvent implements dom.Element.
func (e *element) DispatchEvent(ctx context.Context, eventType string) error {
	return e.scope.tab.run(ctx, func(ctx context.Context) error {
		return callOn(ctx, e.objectID, jsDispatchEvent, nil, eventType)
	})
}
