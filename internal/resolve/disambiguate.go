package resolve

import (
	"context"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// Disambiguation runs only when scores cannot separate the field. Each pass
// may narrow the candidate list, never extend it; a pass that would either
// keep everyone or eliminate everyone is discarded as uninformative.

func (r *Resolver) disambiguate(ctx context.Context, doc dom.Document, sig signature.ElementSignature, cands []scored) []scored {
	if len(sig.Structure.SiblingText) > 0 {
		cands = narrow(cands, func(c scored) bool {
			return siblingTextMatches(sig.Structure.SiblingText, r.siblingText(ctx, c))
		})
	}
	if q := sig.Visual.Quadrant; q != dom.QuadrantUnknown {
		if vp, err := doc.Viewport(ctx); err == nil {
			cands = narrow(cands, func(c scored) bool {
				return dom.QuadrantOf(c.snap.Rect, vp) == q
			})
		}
	}
	return cands
}

func narrow(cands []scored, keep func(scored) bool) []scored {
	var out []scored
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 || len(out) == len(cands) {
		return cands
	}
	return out
}

// siblingText returns the normalized text of the candidate's adjacent
// element siblings.
func (r *Resolver) siblingText(ctx context.Context, c scored) string {
	parent, err := c.el.Parent(ctx)
	if err != nil || parent == nil {
		return ""
	}
	sibs, err := parent.Children(ctx)
	if err != nil {
		return ""
	}
	self := c.el.NodeKey()
	var parts []string
	for i, sib := range sibs {
		if sib.NodeKey() != self {
			continue
		}
		for _, j := range []int{i - 1, i + 1} {
			if j < 0 || j >= len(sibs) {
				continue
			}
			if ss, err := sibs[j].Snapshot(ctx); err == nil && ss.Text != "" {
				parts = append(parts, ss.Text)
			}
		}
		break
	}
	return signature.Normalize(strings.Join(parts, " "))
}

func siblingTextMatches(recorded []string, have string) bool {
	if have == "" {
		return false
	}
	for _, rec := range recorded {
		n := signature.Normalize(strings.TrimSuffix(rec, "..."))
		if n == "" {
			continue
		}
		if strings.Contains(have, n) || strings.Contains(n, have) {
			return true
		}
	}
	return false
}
