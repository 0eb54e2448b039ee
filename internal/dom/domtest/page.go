// Package domtest provides an in-memory dom.Document backed by parsed HTML.
// Pages are deterministic and fully scriptable: tests declare geometry with
// data-rect attributes, wire page reactions with OnClick, OnKey and OnEvent,
// and mutate the tree through the page's helpers, which advance the mutation
// counter the way a real mutation observer would.
package domtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// Page implements dom.Document over a parsed HTML tree. All exported methods
// are safe for concurrent use; reaction handlers run outside the page lock
// and may call back into the page.
type Page struct {
	mu sync.Mutex

	root     *html.Node
	url      string
	title    string
	viewport dom.Rect
	scrollX  float64
	scrollY  float64

	mutations uint64
	focused   *html.Node

	keys    map[*html.Node]string
	nextKey int
	order   map[*html.Node]int
	nextIdx int

	values       map[*html.Node]string
	checked      map[*html.Node]bool
	selected     map[*html.Node]*html.Node
	brokenNative map[*html.Node]bool

	reactions []reaction
	keyLog    []dom.KeyEvent
	mouseLog  []dom.MouseEvent

	shadows       map[*html.Node]*Page
	closedShadows map[*html.Node]bool
	frames        map[*html.Node]*Page
	crossOrigin   map[*html.Node]bool

	// non-nil on shadow sub-pages; URL and viewport delegate upward.
	host *Page
}

type reaction struct {
	match cascadia.Selector
	event string // "click", "key", or a DOM event type
	key   string // set for key reactions
	fn    func()
}

// Option adjusts a new page.
type Option func(*Page)

// WithViewport overrides the default 1280x800 viewport.
func WithViewport(w, h float64) Option {
	return func(p *Page) { p.viewport = dom.Rect{Width: w, Height: h} }
}

// WithURL sets the page location.
func WithURL(u string) Option {
	return func(p *Page) { p.url = u }
}

// New parses markup into a page. Geometry defaults to a vertical stack of
// 120x20 boxes in document order; a data-rect="x,y,w,h" attribute overrides
// the box for that element, and data-fixed pins it against scrolling.
func New(markup string, opts ...Option) (*Page, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("domtest: parse: %w", err)
	}
	p := &Page{
		root:          root,
		url:           "https://example.test/",
		viewport:      dom.Rect{Width: 1280, Height: 800},
		keys:          make(map[*html.Node]string),
		order:         make(map[*html.Node]int),
		values:        make(map[*html.Node]string),
		checked:       make(map[*html.Node]bool),
		selected:      make(map[*html.Node]*html.Node),
		brokenNative:  make(map[*html.Node]bool),
		shadows:       make(map[*html.Node]*Page),
		closedShadows: make(map[*html.Node]bool),
		frames:        make(map[*html.Node]*Page),
		crossOrigin:   make(map[*html.Node]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.indexTree(root)
	p.seedFormState(root)
	if t := findFirst(root, "title"); t != nil {
		p.title = textOf(t)
	}
	return p, nil
}

// MustNew is New for tests that treat bad markup as a programming error.
func MustNew(markup string, opts ...Option) *Page {
	p, err := New(markup, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// indexTree assigns document-order indexes used for default geometry and
// paint order. Safe to call on subtrees added later.
func (p *Page) indexTree(n *html.Node) {
	if n.Type == html.ElementNode {
		if _, ok := p.order[n]; !ok {
			p.order[n] = p.nextIdx
			p.nextIdx++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.indexTree(c)
	}
}

// seedFormState initializes live form state from attributes: input values,
// checked boxes, the selected option of each select.
func (p *Page) seedFormState(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "input":
			if v, ok := attrOf(n, "value"); ok {
				p.values[n] = v
			}
			if _, ok := attrOf(n, "checked"); ok {
				p.checked[n] = true
			}
		case "textarea":
			p.values[n] = textOf(n)
		case "select":
			var first, chosen *html.Node
			walk(n, func(c *html.Node) {
				if c.Type == html.ElementNode && c.Data == "option" {
					if first == nil {
						first = c
					}
					if _, ok := attrOf(c, "selected"); ok && chosen == nil {
						chosen = c
					}
				}
			})
			if chosen == nil {
				chosen = first
			}
			if chosen != nil {
				p.selected[n] = chosen
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.seedFormState(c)
	}
}

func (p *Page) keyFor(n *html.Node) string {
	if k, ok := p.keys[n]; ok {
		return k
	}
	p.nextKey++
	k := fmt.Sprintf("n%d", p.nextKey)
	p.keys[n] = k
	return k
}

func (p *Page) rootPage() *Page {
	r := p
	for r.host != nil {
		r = r.host
	}
	return r
}

// --- dom.Document ---

// QueryAll implements dom.Document.
func (p *Page) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("domtest: selector %q: %w", selector, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrapAll(sel.MatchAll(p.root)), nil
}

// QueryXPath implements dom.Document.
func (p *Page) QueryXPath(_ context.Context, expr string) ([]dom.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nodes, err := htmlquery.QueryAll(p.root, expr)
	if err != nil {
		return nil, fmt.Errorf("domtest: xpath %q: %w", expr, err)
	}
	return p.wrapAll(nodes), nil
}

// ElementFromPoint implements dom.Document: the topmost hit-testable element
// at the point, honoring paint order (z from data-z, then document order).
func (p *Page) ElementFromPoint(_ context.Context, x, y float64) (dom.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *html.Node
	bestZ, bestIdx := 0, -1
	walk(p.root, func(n *html.Node) {
		if n.Type != html.ElementNode || !isRendered(n.Data) {
			return
		}
		if p.displayNone(n) || p.effVisibility(n) != "visible" || p.effPointerEvents(n) == "none" {
			return
		}
		if !p.rectOf(n).Contains(x, y) {
			return
		}
		z := intAttr(n, "data-z")
		idx := p.order[n]
		if best == nil || z > bestZ || (z == bestZ && idx > bestIdx) {
			best, bestZ, bestIdx = n, z, idx
		}
	})
	if best == nil {
		return nil, nil
	}
	return p.wrap(best), nil
}

// ActiveElement implements dom.Document.
func (p *Page) ActiveElement(_ context.Context) (dom.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.focused == nil {
		return nil, nil
	}
	return p.wrap(p.focused), nil
}

// Viewport implements dom.Document.
func (p *Page) Viewport(_ context.Context) (dom.Rect, error) {
	r := p.rootPage()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport, nil
}

// URL implements dom.Document.
func (p *Page) URL(_ context.Context) (string, error) {
	if p.host != nil && p.url == "" {
		return p.rootPage().URL(context.Background())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// Title implements dom.Document.
func (p *Page) Title(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

// MutationCount implements dom.Document.
func (p *Page) MutationCount(_ context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutations, nil
}

// EnterShadow implements dom.Document. Shadow scopes are attached by tests
// through AttachShadow.
func (p *Page) EnterShadow(_ context.Context, hostEl dom.Element) (dom.Document, error) {
	n, err := p.own(hostEl)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closedShadows[n] {
		return nil, dom.ErrClosedShadowRoot
	}
	sub, ok := p.shadows[n]
	if !ok {
		return nil, dom.ErrNoShadowRoot
	}
	return sub, nil
}

// EnterFrame implements dom.Document. Frame scopes are attached by tests
// through AttachFrame.
func (p *Page) EnterFrame(_ context.Context, hostEl dom.Element) (dom.Document, error) {
	n, err := p.own(hostEl)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.crossOrigin[n] {
		return nil, dom.ErrCrossOriginFrame
	}
	sub, ok := p.frames[n]
	if !ok {
		return nil, dom.ErrNoFrameContent
	}
	return sub, nil
}

// --- scope attachment ---

// AttachShadow parses markup as the shadow root of the first element
// matching hostSel. Closed roots are traversable by nobody.
func (p *Page) AttachShadow(hostSel, markup string, open bool) *Page {
	host := p.first(hostSel)
	sub := MustNew(markup)
	sub.host = p
	sub.url = ""
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shadows[host] = sub
	if !open {
		p.closedShadows[host] = true
	}
	return sub
}

// AttachFrame parses markup as the embedded document of the first element
// matching hostSel.
func (p *Page) AttachFrame(hostSel, markup, frameURL string, sameOrigin bool) *Page {
	host := p.first(hostSel)
	sub := MustNew(markup, WithURL(frameURL))
	sub.host = p
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames[host] = sub
	if !sameOrigin {
		p.crossOrigin[host] = true
	}
	return sub
}

// --- test-side reactions ---

// OnClick registers fn to run whenever a click lands on an element matching
// selector. Handlers run unlocked and may mutate the page.
func (p *Page) OnClick(selector string, fn func()) {
	p.addReaction(selector, "click", "", fn)
}

// OnKey registers fn for key-down events with the given key value.
func (p *Page) OnKey(selector, key string, fn func()) {
	p.addReaction(selector, "key", key, fn)
}

// OnEvent registers fn for simple DOM events ("input", "change", "focus").
func (p *Page) OnEvent(selector, eventType string, fn func()) {
	p.addReaction(selector, eventType, "", fn)
}

func (p *Page) addReaction(selector, event, key string, fn func()) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		panic(fmt.Sprintf("domtest: reaction selector %q: %v", selector, err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reactions = append(p.reactions, reaction{match: sel, event: event, key: key, fn: fn})
}

// reactionsFor collects handlers for an event targeting n, matching the
// target or any ancestor so reactions bubble like real DOM events.
func (p *Page) reactionsFor(n *html.Node, event, key string) []func() {
	var fns []func()
	for _, r := range p.reactions {
		if r.event != event || (r.event == "key" && r.key != key) {
			continue
		}
		for c := n; c != nil; c = c.Parent {
			if c.Type == html.ElementNode && r.match.Match(c) {
				fns = append(fns, r.fn)
				break
			}
		}
	}
	return fns
}

// BreakNativeClick makes el.click() a silent no-op for matching elements,
// imitating widgets that only respond to real pointer events.
func (p *Page) BreakNativeClick(selector string) {
	n := p.first(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokenNative[n] = true
}

// --- test-side mutators ---

// SetAttr sets an attribute on the first match and ticks the mutation count.
func (p *Page) SetAttr(selector, name, value string) {
	n := p.first(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	setAttr(n, name, value)
	p.mutations++
}

// RemoveAttr removes an attribute from the first match.
func (p *Page) RemoveAttr(selector, name string) {
	n := p.first(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	removeAttr(n, name)
	p.mutations++
}

// Remove detaches the first match from the tree.
func (p *Page) Remove(selector string) {
	n := p.first(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	p.mutations++
}

// AppendHTML parses a fragment and appends it under the first match.
func (p *Page) AppendHTML(parentSel, fragment string) {
	parent := p.first(parentSel)
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		panic(fmt.Sprintf("domtest: fragment: %v", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		parent.AppendChild(n)
		p.indexTree(n)
		p.seedFormState(n)
	}
	p.mutations++
}

// SetText replaces the text content of the first match.
func (p *Page) SetText(selector, text string) {
	n := p.first(selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	p.mutations++
}

// Navigate changes the page location, imitating a same-tab navigation.
func (p *Page) Navigate(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
	p.focused = nil
	p.mutations++
}

// Bump advances the mutation counter without changing the tree, for tests
// that simulate background churn.
func (p *Page) Bump() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutations++
}

// ScrollTo sets the scroll offset directly.
func (p *Page) ScrollTo(x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollX, p.scrollY = x, y
}

// El returns a handle to the first element matching selector, panicking when
// nothing matches. Test convenience.
func (p *Page) El(selector string) dom.Element {
	return p.wrapLocked(p.first(selector))
}

// Keys returns every keyboard event dispatched so far, in order.
func (p *Page) Keys() []dom.KeyEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dom.KeyEvent, len(p.keyLog))
	copy(out, p.keyLog)
	return out
}

// Mice returns every mouse event dispatched so far, in order.
func (p *Page) Mice() []dom.MouseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dom.MouseEvent, len(p.mouseLog))
	copy(out, p.mouseLog)
	return out
}

// --- helpers ---

func (p *Page) first(selector string) *html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		panic(fmt.Sprintf("domtest: selector %q: %v", selector, err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := sel.MatchFirst(p.root)
	if n == nil {
		panic(fmt.Sprintf("domtest: no element matches %q", selector))
	}
	return n
}

func (p *Page) own(el dom.Element) (*html.Node, error) {
	e, ok := el.(*element)
	if !ok || e.p != p {
		return nil, fmt.Errorf("domtest: element belongs to another scope")
	}
	return e.n, nil
}

func (p *Page) wrap(n *html.Node) *element {
	p.keyFor(n)
	return &element{p: p, n: n}
}

func (p *Page) wrapLocked(n *html.Node) *element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrap(n)
}

func (p *Page) wrapAll(nodes []*html.Node) []dom.Element {
	els := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			els = append(els, p.wrap(n))
		}
	}
	return els
}

func intAttr(n *html.Node, name string) int {
	v, ok := attrOf(n, name)
	if !ok {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return i
}

var _ dom.Document = (*Page)(nil)
