// File: internal/dom/cdp/scope.go
package cdp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	jsoniter "github.com/json-iterator/go"

	"github.com/nathanhui97/autoflow/internal/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type scopeKind int

const (
	scopePage scopeKind = iota
	scopeShadow
	scopeFrame
)

// Scope is one browsing scope of a tab: the page, an open shadow root or a
// same-origin frame document. The page scope re-resolves its root object on
// every call so it survives navigations; shadow and frame scopes pin their
// root and report dom.ErrDetached once it is gone.
type Scope struct {
	tab  *Tab
	kind scopeKind
	root runtime.RemoteObjectID
}

var _ dom.Document = (*Scope)(nil)

func (s *Scope) rootObject(ctx context.Context) (runtime.RemoteObjectID, error) {
	if s.kind != scopePage {
		return s.root, nil
	}
	res, exc, err := runtime.Evaluate("document").Do(ctx)
	if err != nil {
		return "", mapErr(err)
	}
	if exc != nil {
		return "", jsError(exc)
	}
	if res == nil || res.ObjectID == "" {
		return "", fmt.Errorf("cdp: no document object")
	}
	return res.ObjectID, nil
}

// QueryAll implements dom.Document.
func (s *Scope) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	var out []dom.Element
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		arr, err := callOnObject(ctx, root, jsQueryAll, selector)
		if err != nil {
			return err
		}
		out, err = s.elementsFromArray(ctx, arr)
		return err
	})
	return out, err
}

// QueryXPath implements dom.Document.
func (s *Scope) QueryXPath(ctx context.Context, expr string) ([]dom.Element, error) {
	var out []dom.Element
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		arr, err := callOnObject(ctx, root, jsQueryXPath, expr)
		if err != nil {
			return err
		}
		out, err = s.elementsFromArray(ctx, arr)
		return err
	})
	return out, err
}

// ElementFromPoint implements dom.Document. Coordinates are top-level
// viewport pixels regardless of the scope's own frame.
func (s *Scope) ElementFromPoint(ctx context.Context, x, y float64) (dom.Element, error) {
	var out dom.Element
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		obj, err := callOnObject(ctx, root, jsElementFromPoint, x, y)
		if err != nil || obj == nil {
			return err
		}
		el, err := s.adopt(ctx, obj)
		if err != nil {
			return err
		}
		out = el
		return nil
	})
	return out, err
}

// ActiveElement implements dom.Document.
func (s *Scope) ActiveElement(ctx context.Context) (dom.Element, error) {
	var out dom.Element
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		obj, err := callOnObject(ctx, root, jsActiveElement)
		if err != nil || obj == nil {
			return err
		}
		el, err := s.adopt(ctx, obj)
		if err != nil {
			return err
		}
		out = el
		return nil
	})
	return out, err
}

// Viewport implements dom.Document. A frame scope reports the frame's box
// within the page so positional checks line up with element rects.
func (s *Scope) Viewport(ctx context.Context) (dom.Rect, error) {
	var out dom.Rect
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		return callOn(ctx, root, jsViewport, &out)
	})
	return out, err
}

// URL implements dom.Document.
func (s *Scope) URL(ctx context.Context) (string, error) {
	var out string
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		return callOn(ctx, root, jsURL, &out)
	})
	return out, err
}

// Title implements dom.Document.
func (s *Scope) Title(ctx context.Context) (string, error) {
	var out string
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		return callOn(ctx, root, jsTitle, &out)
	})
	return out, err
}

// MutationCount implements dom.Document. Shadow scopes share their host
// window's counter; the bootstrap observes author shadow roots directly.
func (s *Scope) MutationCount(ctx context.Context) (uint64, error) {
	var out uint64
	err := s.tab.run(ctx, func(ctx context.Context) error {
		root, err := s.rootObject(ctx)
		if err != nil {
			return err
		}
		return callOn(ctx, root, jsMutationCount, &out)
	})
	return out, err
}

// EnterShadow implements dom.Document. User-agent internals do not count as
// shadow roots; closed author roots are reported, never traversed.
func (s *Scope) EnterShadow(ctx context.Context, host dom.Element) (dom.Document, error) {
	el, err := s.own(host)
	if err != nil {
		return nil, err
	}
	var sub *Scope
	err = s.tab.run(ctx, func(ctx context.Context) error {
		node, err := cdpdom.DescribeNode().WithObjectID(el.objectID).WithPierce(true).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		var root *cdp.Node
		for _, sr := range node.ShadowRoots {
			if sr.ShadowRootType == cdp.ShadowRootTypeUserAgent {
				continue
			}
			if sr.ShadowRootType == cdp.ShadowRootTypeClosed {
				return dom.ErrClosedShadowRoot
			}
			root = sr
			break
		}
		if root == nil {
			return dom.ErrNoShadowRoot
		}
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(root.BackendNodeID).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		sub = &Scope{tab: s.tab, kind: scopeShadow, root: obj.ObjectID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// EnterFrame implements dom.Document. A frame document only reachable from
// another process is cross-origin by definition here: the protocol exposes
// no content document for it on this target.
func (s *Scope) EnterFrame(ctx context.Context, host dom.Element) (dom.Document, error) {
	el, err := s.own(host)
	if err != nil {
		return nil, err
	}
	var sub *Scope
	err = s.tab.run(ctx, func(ctx context.Context) error {
		node, err := cdpdom.DescribeNode().WithObjectID(el.objectID).WithPierce(true).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		tag := strings.ToLower(node.NodeName)
		if tag != "iframe" && tag != "frame" {
			return dom.ErrNoFrameContent
		}
		if node.ContentDocument == nil {
			if node.FrameID != "" {
				return dom.ErrCrossOriginFrame
			}
			return dom.ErrNoFrameContent
		}
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(node.ContentDocument.BackendNodeID).Do(ctx)
		if err != nil {
			return mapErr(err)
		}
		sub = &Scope{tab: s.tab, kind: scopeFrame, root: obj.ObjectID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// own asserts the handle came from this adapter.
func (s *Scope) own(el dom.Element) (*element, error) {
	h, ok := el.(*element)
	if !ok {
		return nil, fmt.Errorf("cdp: foreign element handle %T", el)
	}
	return h, nil
}

// adopt wraps a remote object as an element handle, pinning the backend
// node id that keys it for the node's lifetime.
func (s *Scope) adopt(ctx context.Context, obj *runtime.RemoteObject) (*element, error) {
	node, err := cdpdom.DescribeNode().WithObjectID(obj.ObjectID).Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &element{scope: s, objectID: obj.ObjectID, backendID: node.BackendNodeID}, nil
}

// elementsFromArray unpacks a remote array of elements into handles in
// array order. The array handle itself is released; the element handles
// stay alive for the document's lifetime.
func (s *Scope) elementsFromArray(ctx context.Context, arr *runtime.RemoteObject) ([]dom.Element, error) {
	if arr == nil || arr.ObjectID == "" {
		return nil, nil
	}
	defer func() { _ = runtime.ReleaseObject(arr.ObjectID).Do(ctx) }()

	props, _, _, _, err := runtime.GetProperties(arr.ObjectID).WithOwnProperties(true).Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	byIndex := make(map[int]*runtime.RemoteObject, len(props))
	max := -1
	for _, p := range props {
		if p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		i, err := strconv.Atoi(p.Name)
		if err != nil {
			continue
		}
		byIndex[i] = p.Value
		if i > max {
			max = i
		}
	}

	out := make([]dom.Element, 0, len(byIndex))
	for i := 0; i <= max; i++ {
		obj := byIndex[i]
		if obj == nil {
			continue
		}
		el, err := s.adopt(ctx, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

// callArguments marshals call arguments for injection.
func callArguments(args []interface{}) ([]*runtime.CallArgument, error) {
	list := make([]*runtime.CallArgument, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		list = append(list, &runtime.CallArgument{Value: raw})
	}
	return list, nil
}

// callOn invokes fn with this bound to obj, decoding a by-value result into
// out when out is non-nil.
func callOn(ctx context.Context, obj runtime.RemoteObjectID, fn string, out interface{}, args ...interface{}) error {
	params := runtime.CallFunctionOn(fn).WithObjectID(obj)
	if len(args) > 0 {
		list, err := callArguments(args)
		if err != nil {
			return err
		}
		params = params.WithArguments(list)
	}
	if out != nil {
		params = params.WithReturnByValue(true)
	}
	res, exc, err := params.Do(ctx)
	if err != nil {
		return mapErr(err)
	}
	if exc != nil {
		return jsError(exc)
	}
	if out != nil && res != nil && res.Value != nil {
		if err := json.Unmarshal(res.Value, out); err != nil {
			return fmt.Errorf("cdp: decode result: %w", err)
		}
	}
	return nil
}

// callOnObject invokes fn with this bound to obj and returns the resulting
// remote object, or nil when the function returned null or undefined.
func callOnObject(ctx context.Context, obj runtime.RemoteObjectID, fn string, args ...interface{}) (*runtime.RemoteObject, error) {
	params := runtime.CallFunctionOn(fn).WithObjectID(obj)
	if len(args) > 0 {
		list, err := callArguments(args)
		if err != nil {
			return nil, err
		}
		params = params.WithArguments(list)
	}
	res, exc, err := params.Do(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	if exc != nil {
		return nil, jsError(exc)
	}
	if res == nil || res.ObjectID == "" {
		return nil, nil
	}
	return res, nil
}
