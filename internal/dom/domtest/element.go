package domtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// element is a handle to one node of a Page.
type element struct {
	p *Page
	n *html.Node
}

var _ dom.Element = (*element)(nil)

// attachedLocked reports whether the node is still reachable from the page
// root. Callers hold p.mu.
func (e *element) attachedLocked() bool {
	for c := e.n; c != nil; c = c.Parent {
		if c == e.p.root {
			return true
		}
	}
	return false
}

func (e *element) guard() error {
	if !e.attachedLocked() {
		return dom.ErrDetached
	}
	return nil
}

// NodeKey implements dom.Element.
func (e *element) NodeKey() string {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.p.keyFor(e.n)
}

// Snapshot implements dom.Element.
func (e *element) Snapshot(_ context.Context) (dom.Snapshot, error) {
	p, n := e.p, e.n
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := e.guard(); err != nil {
		return dom.Snapshot{}, err
	}

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	s := dom.Snapshot{
		Tag:           n.Data,
		ID:            attrs["id"],
		Attrs:         attrs,
		Text:          p.renderedText(n),
		Value:         p.valueOf(n),
		Rect:          p.rectOf(n),
		Display:       p.ownDisplay(n),
		Visibility:    p.effVisibility(n),
		Opacity:       p.effOpacity(n),
		PointerEvents: p.effPointerEvents(n),
		Disabled:      disabledNode(n),
		Checked:       p.checked[n],
		Focused:       p.focused == n,
	}
	if _, ok := attrs["readonly"]; ok {
		s.ReadOnly = true
	}
	if ce, ok := attrs["contenteditable"]; ok && (ce == "" || strings.EqualFold(ce, "true")) {
		s.ContentEditable = true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			s.ChildCount++
		}
	}
	s.SiblingIndex, s.SiblingCount = sameTagPosition(n)
	return s, nil
}

func (p *Page) valueOf(n *html.Node) string {
	switch n.Data {
	case "select":
		opt := p.selected[n]
		if opt == nil {
			return ""
		}
		if v, ok := attrOf(opt, "value"); ok {
			return v
		}
		return textOf(opt)
	case "input", "textarea":
		return p.values[n]
	default:
		if v, ok := p.values[n]; ok {
			return v
		}
		if ce, ok := attrOf(n, "contenteditable"); ok && (ce == "" || strings.EqualFold(ce, "true")) {
			return p.renderedText(n)
		}
		return ""
	}
}

func sameTagPosition(n *html.Node) (index, count int) {
	if n.Parent == nil {
		return 0, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		if c == n {
			index = count
		}
		count++
	}
	return index, count
}

// Parent implements dom.Element. The scope root has no parent.
func (e *element) Parent(_ context.Context) (dom.Element, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	for c := e.n.Parent; c != nil; c = c.Parent {
		if c.Type == html.ElementNode {
			return e.p.wrap(c), nil
		}
		if c.Type == html.DocumentNode {
			break
		}
	}
	return nil, nil
}

// Children implements dom.Element.
func (e *element) Children(_ context.Context) ([]dom.Element, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	var out []dom.Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.p.wrap(c))
		}
	}
	return out, nil
}

// QueryAll implements dom.Element: descendants only, never the element
// itself.
func (e *element) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("domtest: selector %q: %w", selector, err)
	}
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	var nodes []*html.Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, sel.MatchAll(c)...)
	}
	return e.p.wrapAll(nodes), nil
}

// ScrollIntoView implements dom.Element by adjusting the page scroll offset
// until the element's box sits inside the viewport.
func (e *element) ScrollIntoView(_ context.Context) error {
	p := e.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := e.guard(); err != nil {
		return err
	}
	if _, fixed := attrOf(e.n, "data-fixed"); fixed {
		return nil
	}
	r := p.rectOf(e.n)
	if r.Empty() {
		return nil
	}
	vp := p.viewport
	if r.Y >= 0 && r.Y+r.Height <= vp.Height && r.X >= 0 && r.X+r.Width <= vp.Width {
		return nil
	}
	baseX, baseY := r.X+p.scrollX, r.Y+p.scrollY
	p.scrollY = maxf(0, baseY+r.Height/2-vp.Height/2)
	p.scrollX = maxf(0, baseX+r.Width/2-vp.Width/2)
	return nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Focus implements dom.Element.
func (e *element) Focus(_ context.Context) error {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.focused = e.n
	fns := p.reactionsFor(e.n, "focus", "")
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Blur implements dom.Element.
func (e *element) Blur(_ context.Context) error {
	p := e.p
	p.mu.Lock()
	if p.focused == e.n {
		p.focused = nil
	}
	fns := p.reactionsFor(e.n, "blur", "")
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Click implements dom.Element: native activation. Elements marked through
// BreakNativeClick swallow it silently, the way framework widgets ignore
// untrusted click() calls.
func (e *element) Click(_ context.Context) error {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.brokenNative[e.n] {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	p.fireClick(e.n)
	return nil
}

// SetValue implements dom.Element.
func (e *element) SetValue(_ context.Context, value string) error {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	if e.n.Data == "select" {
		p.mu.Unlock()
		_, err := e.SelectOption(context.Background(), value)
		return err
	}
	p.values[e.n] = value
	p.mutations++
	p.mu.Unlock()
	return nil
}

// SelectOption implements dom.Element for native selects.
func (e *element) SelectOption(_ context.Context, text string) (bool, error) {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return false, err
	}
	if e.n.Data != "select" {
		p.mu.Unlock()
		return false, fmt.Errorf("domtest: select option on <%s>", e.n.Data)
	}
	want := strings.TrimSpace(text)
	var match *html.Node
	walk(e.n, func(c *html.Node) {
		if match != nil || c.Type != html.ElementNode || c.Data != "option" {
			return
		}
		v, _ := attrOf(c, "value")
		if strings.TrimSpace(textOf(c)) == want || strings.TrimSpace(v) == want {
			match = c
		}
	})
	if match == nil {
		walk(e.n, func(c *html.Node) {
			if match != nil || c.Type != html.ElementNode || c.Data != "option" {
				return
			}
			v, _ := attrOf(c, "value")
			if strings.EqualFold(strings.TrimSpace(textOf(c)), want) || strings.EqualFold(strings.TrimSpace(v), want) {
				match = c
			}
		})
	}
	if match == nil {
		p.mu.Unlock()
		return false, nil
	}
	p.selected[e.n] = match
	p.mutations++
	fns := p.reactionsFor(e.n, "change", "")
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return true, nil
}

// DispatchMouse implements dom.Element. Presses focus the element under the
// point; releases click it, so press/release pairs behave like real input.
func (e *element) DispatchMouse(_ context.Context, ev dom.MouseEvent) error {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mouseLog = append(p.mouseLog, ev)
	var hit *html.Node
	if ev.Type == dom.MousePressed || ev.Type == dom.MouseReleased {
		hit = p.hitTestLocked(ev.X, ev.Y)
	}
	switch {
	case ev.Type == dom.MousePressed && hit != nil && focusable(hit):
		p.focused = hit
	}
	p.mu.Unlock()
	if ev.Type == dom.MouseReleased && ev.Button == dom.MouseButtonLeft && hit != nil {
		p.fireClick(hit)
	}
	return nil
}

// DispatchKey implements dom.Element. Character events type into editable
// targets; Enter and Space activate the controls that natively respond to
// them; key reactions run on key down.
func (e *element) DispatchKey(_ context.Context, ev dom.KeyEvent) error {
	p, n := e.p, e.n
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.keyLog = append(p.keyLog, ev)

	var activate bool
	var inputFns []func()
	switch ev.Type {
	case dom.KeyChar:
		if ev.Text != "" && editableNode(p, n) {
			p.values[n] += ev.Text
			p.mutations++
			inputFns = p.reactionsFor(n, "input", "")
		}
	case dom.KeyDown:
		switch ev.Key {
		case "Backspace":
			if editableNode(p, n) {
				v := p.values[n]
				if v != "" {
					r := []rune(v)
					p.values[n] = string(r[:len(r)-1])
					p.mutations++
					inputFns = p.reactionsFor(n, "input", "")
				}
			}
		case "Enter":
			activate = activatesOnEnter(n)
		case " ":
			activate = activatesOnSpace(p, n)
		}
	}
	var keyFns []func()
	if ev.Type == dom.KeyDown {
		keyFns = p.reactionsFor(n, "key", ev.Key)
	}
	p.mu.Unlock()

	for _, fn := range inputFns {
		fn()
	}
	for _, fn := range keyFns {
		fn()
	}
	if activate {
		p.fireClick(n)
	}
	return nil
}

// DispatchEvent implements dom.Element.
func (e *element) DispatchEvent(_ context.Context, eventType string) error {
	p := e.p
	p.mu.Lock()
	if err := e.guard(); err != nil {
		p.mu.Unlock()
		return err
	}
	fns := p.reactionsFor(e.n, eventType, "")
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

// fireClick applies native click consequences and runs click reactions.
func (p *Page) fireClick(n *html.Node) {
	p.mu.Lock()
	if n.Data == "input" {
		switch t, _ := attrOf(n, "type"); strings.ToLower(t) {
		case "checkbox":
			p.checked[n] = !p.checked[n]
			p.mutations++
		case "radio":
			name, _ := attrOf(n, "name")
			walk(p.root, func(c *html.Node) {
				if c.Type == html.ElementNode && c.Data == "input" {
					if t2, _ := attrOf(c, "type"); strings.EqualFold(t2, "radio") {
						if n2, _ := attrOf(c, "name"); n2 == name {
							p.checked[c] = c == n
						}
					}
				}
			})
			p.mutations++
		}
	}
	if focusable(n) {
		p.focused = n
	}
	fns := p.reactionsFor(n, "click", "")
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// hitTestLocked returns the topmost hit-testable node at the point. Callers
// hold p.mu.
func (p *Page) hitTestLocked(x, y float64) *html.Node {
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
	return best
}

func focusable(n *html.Node) bool {
	if disabledNode(n) {
		return false
	}
	switch n.Data {
	case "input", "select", "textarea", "button":
		return true
	case "a":
		_, ok := attrOf(n, "href")
		return ok
	}
	if _, ok := attrOf(n, "tabindex"); ok {
		return true
	}
	if ce, ok := attrOf(n, "contenteditable"); ok && (ce == "" || strings.EqualFold(ce, "true")) {
		return true
	}
	return false
}

func editableNode(p *Page, n *html.Node) bool {
	if disabledNode(n) {
		return false
	}
	if _, ro := attrOf(n, "readonly"); ro {
		return false
	}
	switch n.Data {
	case "textarea":
		return true
	case "input":
		switch t, _ := attrOf(n, "type"); strings.ToLower(t) {
		case "", "text", "email", "password", "search", "tel", "url", "number":
			return true
		}
		return false
	}
	ce, ok := attrOf(n, "contenteditable")
	return ok && (ce == "" || strings.EqualFold(ce, "true"))
}

func activatesOnEnter(n *html.Node) bool {
	switch n.Data {
	case "button":
		return true
	case "a":
		_, ok := attrOf(n, "href")
		return ok
	case "input":
		switch t, _ := attrOf(n, "type"); strings.ToLower(t) {
		case "submit", "button", "reset":
			return true
		}
	}
	if r, ok := attrOf(n, "role"); ok {
		switch strings.ToLower(r) {
		case "button", "link", "menuitem", "option", "tab":
			return true
		}
	}
	return false
}

func activatesOnSpace(p *Page, n *html.Node) bool {
	switch n.Data {
	case "button":
		return true
	case "input":
		switch t, _ := attrOf(n, "type"); strings.ToLower(t) {
		case "checkbox", "radio", "submit", "button":
			return true
		}
	}
	if r, ok := attrOf(n, "role"); ok {
		switch strings.ToLower(r) {
		case "button", "checkbox", "switch", "option", "tab":
			return true
		}
	}
	return false
}
