package signature

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// testIDAttrs in lookup order. The first one present wins.
var testIDAttrs = []string{"data-testid", "data-test-id", "data-test", "data-cy", "data-qa"}

// TestIDAttrs lists the recognized test-id attributes in lookup order.
func TestIDAttrs() []string { return testIDAttrs }

// interactiveRoles are the ARIA roles treated as click-worthy in their own
// right.
var interactiveRoles = map[string]struct{}{
	"button": {}, "link": {}, "checkbox": {}, "radio": {}, "switch": {},
	"tab": {}, "menuitem": {}, "menuitemcheckbox": {}, "menuitemradio": {},
	"option": {}, "combobox": {}, "textbox": {}, "searchbox": {},
	"slider": {}, "spinbutton": {}, "listbox": {}, "treeitem": {},
}

// handlerMarkers are attributes that betray an attached handler even on a
// bare div or span.
var handlerMarkers = []string{
	"onclick", "onmousedown", "ng-click", "data-action", "data-onclick",
	"jsaction", "@click", "v-on:click",
}

const (
	// maxClimb bounds the upward search for a semantic target.
	maxClimb = 5
	// maxAncestors bounds the single ancestor walk shared by the
	// structural and visual extractors.
	maxAncestors = 12

	maxTextLen        = 200
	maxSiblingTextLen = 80
	maxLabelLen       = 60
	maxNearbyLabels   = 5
	tagPathLen        = 5
)

// Builder extracts signatures from live elements.
type Builder struct {
	log *zap.Logger
}

// NewBuilder returns a Builder. A nil logger disables logging.
func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log.Named("signature")}
}

// Build captures a signature for el. When el is a decorative descendant of
// an interactive element (an icon inside a button), signals are extracted
// from the enclosing semantic target and the original click point is kept
// as ClickTarget info.
func (b *Builder) Build(ctx context.Context, doc dom.Document, el dom.Element) (ElementSignature, error) {
	snap, err := el.Snapshot(ctx)
	if err != nil {
		return ElementSignature{}, fmt.Errorf("signature: snapshot: %w", err)
	}

	target, targetSnap, climbed, err := b.semanticTarget(ctx, el, snap)
	if err != nil {
		return ElementSignature{}, err
	}

	parents, parentSnaps, err := collectAncestors(ctx, target, maxAncestors)
	if err != nil {
		return ElementSignature{}, fmt.Errorf("signature: ancestors: %w", err)
	}

	var sig ElementSignature
	usedTestIDAttr := extractIdentity(&sig, targetSnap)
	sig.Identity.AccessibleName = b.accessibleName(ctx, doc, target, targetSnap, parents, parentSnaps)
	extractText(&sig, targetSnap)
	if err := b.extractStructure(ctx, &sig, target, targetSnap, parents, parentSnaps); err != nil {
		return ElementSignature{}, err
	}
	if err := b.extractVisual(ctx, doc, &sig, targetSnap, parents, parentSnaps); err != nil {
		return ElementSignature{}, err
	}
	if climbed {
		sig.ClickTarget = clickTargetInfo(snap, targetSnap)
		b.log.Debug("kept click target through climb",
			zap.String("target", sig.Label()),
			zap.String("clicked", snap.Tag))
	}

	pathQuery, err := BuildPathQuery(ctx, target)
	if err != nil {
		// The path query is the least trusted fallback; losing it is not
		// worth failing the whole capture.
		b.log.Debug("path query skipped", zap.Error(err))
		pathQuery = ""
	}
	sig.Selectors = buildSelectorSet(sig, usedTestIDAttr, targetSnap.Attr("class"), pathQuery)

	return sig, nil
}

// semanticTarget climbs from el to the nearest enclosing element that is
// interactive in its own right, stopping after maxClimb levels.
func (b *Builder) semanticTarget(ctx context.Context, el dom.Element, snap dom.Snapshot) (dom.Element, dom.Snapshot, bool, error) {
	if IsSemanticTarget(snap) {
		return el, snap, false, nil
	}
	cur := el
	for i := 0; i < maxClimb; i++ {
		parent, err := cur.Parent(ctx)
		if err != nil {
			return nil, dom.Snapshot{}, false, fmt.Errorf("signature: climb: %w", err)
		}
		if parent == nil {
			break
		}
		psnap, err := parent.Snapshot(ctx)
		if err != nil {
			return nil, dom.Snapshot{}, false, fmt.Errorf("signature: climb snapshot: %w", err)
		}
		if IsSemanticTarget(psnap) {
			return parent, psnap, true, nil
		}
		cur = parent
	}
	return el, snap, false, nil
}

// IsSemanticTarget reports whether the element is interactive in its own
// right: a native control, an interactive ARIA role, keyboard-focusable, or
// carrying a handler marker.
func IsSemanticTarget(s dom.Snapshot) bool {
	switch s.Tag {
	case "button", "select", "textarea", "summary", "option", "input":
		return true
	case "a":
		return s.HasAttr("href")
	}
	if _, ok := interactiveRoles[s.Role()]; ok {
		return true
	}
	if ti, ok := s.Attrs["tabindex"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && n >= 0 {
			return true
		}
	}
	for _, m := range handlerMarkers {
		if s.HasAttr(m) {
			return true
		}
	}
	if s.ContentEditable {
		return true
	}
	return false
}

// extractIdentity fills the identity group and returns the test-id attribute
// that matched, for selector building.
func extractIdentity(sig *ElementSignature, s dom.Snapshot) string {
	var usedAttr string
	for _, attr := range testIDAttrs {
		if v := strings.TrimSpace(s.Attr(attr)); v != "" {
			sig.Identity.TestID = v
			usedAttr = attr
			break
		}
	}
	sig.Identity.AriaLabel = strings.TrimSpace(s.Attr("aria-label"))
	sig.Identity.Role = RoleOf(s)
	if s.ID != "" && !IsGeneratedID(s.ID) {
		sig.Identity.ID = s.ID
	}
	sig.Identity.Name = strings.TrimSpace(s.Attr("name"))
	return usedAttr
}

// RoleOf resolves the effective role: explicit wins, then the implied role
// of the native tag.
func RoleOf(s dom.Snapshot) string {
	if r := s.Role(); r != "" {
		return r
	}
	switch s.Tag {
	case "a":
		if s.HasAttr("href") {
			return "link"
		}
	case "button", "summary":
		return "button"
	case "select":
		if s.HasAttr("multiple") {
			return "listbox"
		}
		return "combobox"
	case "textarea":
		return "textbox"
	case "option":
		return "option"
	case "input":
		switch s.InputType() {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit", "reset":
			return "button"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "search":
			return "searchbox"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	}
	return ""
}

func extractText(sig *ElementSignature, s dom.Snapshot) {
	exact := s.Text
	if s.Tag == "input" {
		// Inputs render no text; the value is state, not identity.
		exact = ""
	}
	sig.Text.Exact = clip(exact, maxTextLen)
	sig.Text.Normalized = Normalize(sig.Text.Exact)
	sig.Text.Words = SignificantWords(sig.Text.Exact)
	sig.Text.Placeholder = strings.TrimSpace(s.Attr("placeholder"))
}

func (b *Builder) extractStructure(ctx context.Context, sig *ElementSignature, el dom.Element, s dom.Snapshot, parents []dom.Element, parentSnaps []dom.Snapshot) error {
	sig.Structure.Tag = s.Tag
	sig.Structure.SiblingIndex = s.SiblingIndex
	sig.Structure.SiblingCount = s.SiblingCount

	path := []string{s.Tag}
	for i := 0; i < len(parentSnaps) && len(path) < tagPathLen; i++ {
		path = append(path, parentSnaps[i].Tag)
	}
	sig.Structure.TagPath = path

	if len(parents) == 0 {
		return nil
	}
	siblings, err := parents[0].Children(ctx)
	if err != nil {
		return fmt.Errorf("signature: siblings: %w", err)
	}
	self := el.NodeKey()
	for i, sib := range siblings {
		if sib.NodeKey() != self {
			continue
		}
		for _, j := range []int{i - 1, i + 1} {
			if j < 0 || j >= len(siblings) {
				continue
			}
			ss, err := siblings[j].Snapshot(ctx)
			if err != nil {
				return err
			}
			if t := clip(ss.Text, maxSiblingTextLen); t != "" {
				sig.Structure.SiblingText = append(sig.Structure.SiblingText, t)
			}
		}
		break
	}
	return nil
}

// IsLandmark reports whether the element is a sectioning container that can
// carry an orienting heading.
func IsLandmark(s dom.Snapshot) bool {
	switch s.Tag {
	case "form", "section", "article", "main", "nav", "aside", "dialog",
		"fieldset", "header", "footer":
		return true
	}
	switch s.Role() {
	case "region", "dialog", "form", "navigation", "main", "search",
		"banner", "contentinfo":
		return true
	}
	return false
}

func (b *Builder) extractVisual(ctx context.Context, doc dom.Document, sig *ElementSignature, s dom.Snapshot, parents []dom.Element, parentSnaps []dom.Snapshot) error {
	for i, ps := range parentSnaps {
		if ps.Tag == "form" && sig.Visual.FormID == "" {
			if id := ps.ID; id != "" && !IsGeneratedID(id) {
				sig.Visual.FormID = id
			} else if n := ps.Attr("name"); n != "" {
				sig.Visual.FormID = n
			}
		}
		if sig.Visual.LandmarkHeading == "" && IsLandmark(ps) {
			h, err := FirstHeading(ctx, parents[i])
			if err != nil {
				return err
			}
			sig.Visual.LandmarkHeading = h
		}
		if sig.Visual.FormID != "" && sig.Visual.LandmarkHeading != "" {
			break
		}
	}

	sig.Visual.NearbyLabels = b.nearbyLabels(ctx, doc, s, parents, parentSnaps)

	vp, err := doc.Viewport(ctx)
	if err != nil {
		return fmt.Errorf("signature: viewport: %w", err)
	}
	sig.Visual.Quadrant = dom.QuadrantOf(s.Rect, vp)
	return nil
}

// FirstHeading returns the first non-empty heading text inside container,
// length-capped the same way recorded headings are.
func FirstHeading(ctx context.Context, container dom.Element) (string, error) {
	hs, err := container.QueryAll(ctx, `h1, h2, h3, h4, h5, h6, legend, [role="heading"]`)
	if err != nil {
		return "", err
	}
	for _, h := range hs {
		hsnap, err := h.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		if t := clip(hsnap.Text, maxLabelLen); t != "" {
			return t, nil
		}
	}
	return "", nil
}

// nearbyLabels gathers short texts that orient the element: its associated
// label, a wrapping label, and referenced descriptions. Best effort; lookup
// failures drop the signal rather than the capture.
func (b *Builder) nearbyLabels(ctx context.Context, doc dom.Document, s dom.Snapshot, parents []dom.Element, parentSnaps []dom.Snapshot) []string {
	var labels []string
	seen := make(map[string]struct{})
	add := func(t string) {
		t = clip(strings.TrimSpace(t), maxLabelLen)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		labels = append(labels, t)
	}

	if s.ID != "" {
		if els, err := doc.QueryAll(ctx, `label[for=`+strconv.Quote(s.ID)+`]`); err == nil {
			for _, l := range els {
				if ls, err := l.Snapshot(ctx); err == nil {
					add(ls.Text)
				}
			}
		}
	}
	for i, ps := range parentSnaps {
		if i >= 3 {
			break
		}
		if ps.Tag == "label" {
			if ls, err := parents[i].Snapshot(ctx); err == nil {
				add(ls.Text)
			}
			break
		}
	}
	for _, ref := range []string{"aria-labelledby", "aria-describedby"} {
		for _, id := range strings.Fields(s.Attr(ref)) {
			if els, err := doc.QueryAll(ctx, `[id=`+strconv.Quote(id)+`]`); err == nil {
				for _, l := range els {
					if ls, err := l.Snapshot(ctx); err == nil {
						add(ls.Text)
					}
				}
			}
		}
	}

	if len(labels) > maxNearbyLabels {
		labels = labels[:maxNearbyLabels]
	}
	return labels
}

// accessibleName follows the practical core of the name computation: label
// references first, then the element's own naming attributes and text.
func (b *Builder) accessibleName(ctx context.Context, doc dom.Document, el dom.Element, s dom.Snapshot, parents []dom.Element, parentSnaps []dom.Snapshot) string {
	if v := strings.TrimSpace(s.Attr("aria-label")); v != "" {
		return clip(v, maxTextLen)
	}
	if ids := strings.Fields(s.Attr("aria-labelledby")); len(ids) > 0 {
		var parts []string
		for _, id := range ids {
			els, err := doc.QueryAll(ctx, `[id=`+strconv.Quote(id)+`]`)
			if err != nil {
				continue
			}
			for _, l := range els {
				if ls, err := l.Snapshot(ctx); err == nil && ls.Text != "" {
					parts = append(parts, ls.Text)
				}
			}
		}
		if len(parts) > 0 {
			return clip(strings.Join(parts, " "), maxTextLen)
		}
	}
	if s.ID != "" {
		if els, err := doc.QueryAll(ctx, `label[for=`+strconv.Quote(s.ID)+`]`); err == nil {
			for _, l := range els {
				if ls, err := l.Snapshot(ctx); err == nil && ls.Text != "" {
					return clip(ls.Text, maxTextLen)
				}
			}
		}
	}
	for i, ps := range parentSnaps {
		if i >= 3 {
			break
		}
		if ps.Tag == "label" {
			if ls, err := parents[i].Snapshot(ctx); err == nil && ls.Text != "" {
				return clip(ls.Text, maxTextLen)
			}
		}
	}
	if s.Text != "" && s.Tag != "input" {
		return clip(s.Text, maxTextLen)
	}
	for _, attr := range []string{"placeholder", "title", "alt"} {
		if v := strings.TrimSpace(s.Attr(attr)); v != "" {
			return clip(v, maxTextLen)
		}
	}
	return ""
}

func clickTargetInfo(clicked, target dom.Snapshot) *ClickTargetInfo {
	cx, cy := clicked.Rect.Center()
	tx, ty := target.Rect.Center()
	info := &ClickTargetInfo{
		Tag:     clicked.Tag,
		ID:      clicked.ID,
		OffsetX: cx - tx,
		OffsetY: cy - ty,
	}
	if stable := StableClasses(clicked.Classes()); len(stable) > 0 {
		info.Class = stable[0]
	}
	return info
}

// collectAncestors walks upward once; extractors share the result.
func collectAncestors(ctx context.Context, el dom.Element, limit int) ([]dom.Element, []dom.Snapshot, error) {
	var els []dom.Element
	var snaps []dom.Snapshot
	cur := el
	for i := 0; i < limit; i++ {
		parent, err := cur.Parent(ctx)
		if err != nil {
			return nil, nil, err
		}
		if parent == nil {
			break
		}
		ps, err := parent.Snapshot(ctx)
		if err != nil {
			return nil, nil, err
		}
		els = append(els, parent)
		snaps = append(snaps, ps)
		cur = parent
	}
	return els, snaps, nil
}
