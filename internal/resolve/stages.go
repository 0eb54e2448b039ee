package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/gate"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// interactiveSelectors is the fixed query set the text-scan stage sweeps.
// Broad by design; the text comparison does the narrowing.
var interactiveSelectors = []string{
	"button",
	"a[href]",
	"input",
	"select",
	"textarea",
	"summary",
	`[role="button"]`,
	`[role="link"]`,
	`[role="menuitem"]`,
	`[role="tab"]`,
	`[role="option"]`,
	`[role="checkbox"]`,
	`[role="radio"]`,
	`[role="switch"]`,
	"[onclick]",
	"[tabindex]",
}

// match pairs an element handle with the snapshot taken when it was queried.
type match struct {
	el   dom.Element
	snap dom.Snapshot
}

// gather runs the five stages in trust order, pooling every candidate, and
// returns the method names actually attempted.
func (r *Resolver) gather(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) []string {
	tried := r.stageIdentity(ctx, doc, sig, p)
	if r.stageRoleText(ctx, doc, sig, p) {
		tried = append(tried, "roleText")
	}
	if r.stageTextScan(ctx, doc, sig, p) {
		tried = append(tried, "textScan")
	}
	if r.stageStructural(ctx, doc, sig, p) {
		tried = append(tried, "structural")
	}
	return append(tried, r.stageSelectors(ctx, doc, sig, p)...)
}

// visibleAll queries doc and keeps the visible matches. A failed query drops
// that stage's contribution, not the run.
func (r *Resolver) visibleAll(ctx context.Context, doc dom.Document, selector string) []match {
	els, err := doc.QueryAll(ctx, selector)
	if err != nil {
		r.log.Debug("stage query failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	return r.keepVisible(ctx, els)
}

func (r *Resolver) visibleXPath(ctx context.Context, doc dom.Document, expr string) []match {
	els, err := doc.QueryXPath(ctx, expr)
	if err != nil {
		r.log.Debug("stage xpath failed", zap.String("expr", expr), zap.Error(err))
		return nil
	}
	return r.keepVisible(ctx, els)
}

func (r *Resolver) keepVisible(ctx context.Context, els []dom.Element) []match {
	var out []match
	for _, el := range els {
		snap, err := el.Snapshot(ctx)
		if err != nil {
			continue
		}
		if !gate.Visible(snap) {
			continue
		}
		out = append(out, match{el: el, snap: snap})
	}
	return out
}

// stageIdentity queries the explicit hooks: test ids, stable ids, aria
// labels and control names.
func (r *Resolver) stageIdentity(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) []string {
	var tried []string
	id := sig.Identity
	if id.TestID != "" {
		tried = append(tried, "testId")
		for _, attr := range signature.TestIDAttrs() {
			for _, m := range r.visibleAll(ctx, doc, signature.AttrSelector(attr, id.TestID)) {
				p.add(m, confTestID, "testId")
			}
		}
	}
	if id.ID != "" {
		tried = append(tried, "id")
		for _, m := range r.visibleAll(ctx, doc, signature.AttrSelector("id", id.ID)) {
			p.add(m, confStableID, "id")
		}
	}
	if id.AriaLabel != "" {
		tried = append(tried, "ariaLabel")
		for _, m := range r.visibleAll(ctx, doc, signature.AttrSelector("aria-label", id.AriaLabel)) {
			p.add(m, confAriaLabel, "ariaLabel")
		}
	}
	if id.Name != "" {
		tried = append(tried, "name")
		sel := signature.AttrSelector("name", id.Name)
		if sig.Structure.Tag != "" {
			sel = sig.Structure.Tag + sel
		}
		for _, m := range r.visibleAll(ctx, doc, sel) {
			p.add(m, confName, "name")
		}
	}
	return tried
}

// stageRoleText matches the recorded role combined with exact or normalized
// text. Reports whether the stage had enough signals to run.
func (r *Resolver) stageRoleText(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) bool {
	role := sig.Identity.Role
	if role == "" || (sig.Text.Exact == "" && sig.Text.Normalized == "") {
		return false
	}
	for _, sel := range roleSelectors(role) {
		for _, m := range r.visibleAll(ctx, doc, sel) {
			if signature.RoleOf(m.snap) != role {
				continue
			}
			switch t, _ := textTier(sig, m.snap); t {
			case tierExact:
				p.add(m, confRoleTextExact, "roleText")
			case tierNormalized:
				p.add(m, confRoleTextNormalized, "roleText")
			}
		}
	}
	return true
}

// stageTextScan sweeps the interactive selector set for text matches. The
// partial tier scales with significant-word overlap.
func (r *Resolver) stageTextScan(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) bool {
	if !sig.HasText() {
		return false
	}
	if sig.Text.Exact != "" || sig.Text.Normalized != "" || len(sig.Text.Words) > 0 {
		for _, sel := range interactiveSelectors {
			for _, m := range r.visibleAll(ctx, doc, sel) {
				t, overlap := textTier(sig, m.snap)
				switch t {
				case tierExact:
					p.add(m, confTextExact, "textExact")
				case tierNormalized:
					p.add(m, confTextNormalized, "textNormalized")
				case tierPartial:
					span := confTextPartialHi - confTextPartialLo
					scale := (overlap - partialWordMatch) / (1 - partialWordMatch)
					p.add(m, confTextPartialLo+span*scale, "textPartial")
				}
			}
		}
	}
	if ph := sig.Text.Placeholder; ph != "" {
		for _, m := range r.visibleAll(ctx, doc, signature.AttrSelector("placeholder", ph)) {
			p.add(m, confPlaceholder, "placeholder")
		}
	}
	return true
}

// stageStructural matches recorded tag paths against same-tag candidates.
func (r *Resolver) stageStructural(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) bool {
	st := sig.Structure
	if st.Tag == "" || len(st.TagPath) < 2 {
		return false
	}
	for _, m := range r.visibleAll(ctx, doc, st.Tag) {
		matched := commonPrefix(r.tagPath(ctx, m, len(st.TagPath)), st.TagPath)
		switch {
		case matched == len(st.TagPath) && m.snap.SiblingIndex == st.SiblingIndex:
			p.add(m, confStructureExact, "structural")
		case matched == len(st.TagPath):
			p.add(m, confStructurePath, "structural")
		case matched >= 2 && matched >= len(st.TagPath)-1:
			p.add(m, confStructureLoose, "structural")
		}
	}
	return true
}

// tagPath walks upward from the candidate, self first, mirroring how tag
// paths are recorded.
func (r *Resolver) tagPath(ctx context.Context, m match, depth int) []string {
	path := []string{m.snap.Tag}
	cur := m.el
	for len(path) < depth {
		parent, err := cur.Parent(ctx)
		if err != nil || parent == nil {
			break
		}
		ps, err := parent.Snapshot(ctx)
		if err != nil {
			break
		}
		path = append(path, ps.Tag)
		cur = parent
	}
	return path
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// stageSelectors replays the recorded selectors, least trusted last. They
// are advisory: page drift invalidates them before it invalidates live
// signals.
func (r *Resolver) stageSelectors(ctx context.Context, doc dom.Document, sig signature.ElementSignature, p *pool) []string {
	var tried []string
	sel := sig.Selectors
	for _, s := range []struct {
		query  string
		conf   float64
		method string
	}{
		{sel.Ideal, confSelectorIdeal, "selectorIdeal"},
		{sel.Stable, confSelectorStable, "selectorStable"},
		{sel.Specific, confSelectorSpecific, "selectorSpecific"},
	} {
		if s.query == "" {
			continue
		}
		tried = append(tried, s.method)
		for _, m := range r.visibleAll(ctx, doc, s.query) {
			p.add(m, s.conf, s.method)
		}
	}
	if sel.PathQuery != "" {
		tried = append(tried, "selectorPath")
		for _, m := range r.visibleXPath(ctx, doc, sel.PathQuery) {
			p.add(m, confSelectorPath, "selectorPath")
		}
	}
	return tried
}

// roleSelectors lists the queries that can surface elements carrying the
// role, explicit attribute first, then the native tags that imply it.
func roleSelectors(role string) []string {
	sels := []string{signature.AttrSelector("role", role)}
	switch role {
	case "button":
		sels = append(sels, "button", `input[type="button"]`, `input[type="submit"]`, `input[type="reset"]`, "summary")
	case "link":
		sels = append(sels, "a[href]")
	case "textbox":
		sels = append(sels, "textarea", `input[type="text"]`, `input[type="email"]`,
			`input[type="password"]`, `input[type="tel"]`, `input[type="url"]`, "input:not([type])")
	case "searchbox":
		sels = append(sels, `input[type="search"]`)
	case "checkbox":
		sels = append(sels, `input[type="checkbox"]`)
	case "radio":
		sels = append(sels, `input[type="radio"]`)
	case "combobox":
		sels = append(sels, "select")
	case "listbox":
		sels = append(sels, "select[multiple]")
	case "option":
		sels = append(sels, "option")
	case "slider":
		sels = append(sels, `input[type="range"]`)
	case "spinbutton":
		sels = append(sels, `input[type="number"]`)
	}
	return sels
}

type tier int

const (
	tierNone tier = iota
	tierPartial
	tierNormalized
	tierExact
)

// textTier grades how well the candidate's text matches the recorded text.
// For the partial tier the second return value is the word overlap.
func textTier(sig signature.ElementSignature, snap dom.Snapshot) (tier, float64) {
	have := strings.TrimSpace(snap.Text)
	if want := strings.TrimSpace(sig.Text.Exact); want != "" && want == have {
		return tierExact, 1
	}
	if n := sig.Text.Normalized; n != "" && n == signature.Normalize(have) {
		return tierNormalized, 1
	}
	if len(sig.Text.Words) > 0 {
		overlap := signature.WordOverlap(sig.Text.Words, signature.SignificantWords(have))
		if overlap >= partialWordMatch {
			return tierPartial, overlap
		}
	}
	return tierNone, 0
}
