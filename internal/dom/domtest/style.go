package domtest

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// Tree helpers and the page's layout model. Style is read from inline style
// attributes only; that keeps pages declarative while still exercising every
// visibility rule the gate checks.

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attrOf(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func findFirst(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag {
			found = n
		}
	})
	return found
}

// textOf concatenates the raw text beneath n with whitespace collapsed,
// ignoring style. Used for seeding; snapshots use renderedText.
func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// nonRendered tags contribute neither text nor geometry.
func isRendered(tag string) bool {
	switch tag {
	case "script", "style", "head", "meta", "link", "title", "template", "noscript":
		return false
	}
	return true
}

func parseStyle(s string) map[string]string {
	m := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		m[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return m
}

func styleOf(n *html.Node) map[string]string {
	s, ok := attrOf(n, "style")
	if !ok {
		return nil
	}
	return parseStyle(s)
}

// chain returns the element ancestors of n from the root down to n itself.
func chain(n *html.Node) []*html.Node {
	var rev []*html.Node
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.ElementNode {
			rev = append(rev, c)
		}
	}
	out := make([]*html.Node, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}

func (p *Page) displayNone(n *html.Node) bool {
	for _, c := range chain(n) {
		if _, hidden := attrOf(c, "hidden"); hidden {
			return true
		}
		if styleOf(c)["display"] == "none" {
			return true
		}
	}
	return false
}

func (p *Page) ownDisplay(n *html.Node) string {
	if p.displayNone(n) {
		return "none"
	}
	if d := styleOf(n)["display"]; d != "" {
		return d
	}
	return "block"
}

// effVisibility resolves the CSS visibility cascade: the most recent explicit
// value on the root-to-node chain wins, so a visible child inside a hidden
// container is still visible.
func (p *Page) effVisibility(n *html.Node) string {
	v := "visible"
	for _, c := range chain(n) {
		if s := styleOf(c)["visibility"]; s != "" {
			v = s
		}
	}
	return v
}

// effOpacity multiplies opacity down the chain, matching how the browser
// composites nested opacity.
func (p *Page) effOpacity(n *html.Node) float64 {
	o := 1.0
	for _, c := range chain(n) {
		if s := styleOf(c)["opacity"]; s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				o *= f
			}
		}
	}
	return o
}

func (p *Page) effPointerEvents(n *html.Node) string {
	v := "auto"
	for _, c := range chain(n) {
		if s := styleOf(c)["pointer-events"]; s != "" {
			v = s
		}
	}
	return v
}

// rectOf returns the element's viewport-relative box. Elements hidden by
// display report a zero rect, like getBoundingClientRect on a display:none
// node.
func (p *Page) rectOf(n *html.Node) dom.Rect {
	if !isRendered(n.Data) || p.displayNone(n) {
		return dom.Rect{}
	}
	r, explicit := parseRectAttr(n)
	if !explicit {
		idx := float64(p.order[n])
		r = dom.Rect{X: 8, Y: 8 + 24*idx, Width: 120, Height: 20}
	}
	if _, fixed := attrOf(n, "data-fixed"); !fixed {
		r.X -= p.scrollX
		r.Y -= p.scrollY
	}
	return r
}

func parseRectAttr(n *html.Node) (dom.Rect, bool) {
	v, ok := attrOf(n, "data-rect")
	if !ok {
		return dom.Rect{}, false
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return dom.Rect{}, false
	}
	var f [4]float64
	for i, s := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return dom.Rect{}, false
		}
		f[i] = x
	}
	return dom.Rect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, true
}

// disabledNode mirrors the resolved disabled property: the attribute on the
// element itself or on an enclosing fieldset.
func disabledNode(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if _, ok := attrOf(c, "disabled"); ok {
			if c == n || c.Data == "fieldset" {
				return true
			}
		}
	}
	return false
}

// renderedText approximates innerText: text of the subtree minus non-rendered
// and display:none regions, whitespace collapsed.
func (p *Page) renderedText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.ElementNode {
			if !isRendered(c.Data) {
				return
			}
			if _, hidden := attrOf(c, "hidden"); hidden {
				return
			}
			if styleOf(c)["display"] == "none" {
				return
			}
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for g := c.FirstChild; g != nil; g = g.NextSibling {
			visit(g)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
