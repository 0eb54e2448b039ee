package resolve

import (
	"context"
	"strconv"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// maxCorroborateWalk bounds the ancestor walk when checking context signals.
const maxCorroborateWalk = 12

// applyBonuses adjusts confidences by the visual anchors the signature
// recorded. Skipped entirely when the signature carries none.
func (r *Resolver) applyBonuses(ctx context.Context, doc dom.Document, sig signature.ElementSignature, cands []scored) {
	v := sig.Visual
	if v.FormID == "" && v.LandmarkHeading == "" && len(v.NearbyLabels) == 0 {
		return
	}
	for i := range cands {
		cands[i].conf = clamp01(cands[i].conf + r.corroborate(ctx, doc, sig, cands[i]))
	}
}

// corroborate compares the candidate's surroundings to the recorded
// anchors. A matching anchor raises confidence, a contradicting one lowers
// it, an absent one stays neutral.
func (r *Resolver) corroborate(ctx context.Context, doc dom.Document, sig signature.ElementSignature, c scored) float64 {
	v := sig.Visual
	needForm := v.FormID != ""
	needHeading := v.LandmarkHeading != ""

	var formID, heading string
	cur := c.el
	for i := 0; i < maxCorroborateWalk; i++ {
		if (!needForm || formID != "") && (!needHeading || heading != "") {
			break
		}
		parent, err := cur.Parent(ctx)
		if err != nil || parent == nil {
			break
		}
		ps, err := parent.Snapshot(ctx)
		if err != nil {
			break
		}
		if needForm && formID == "" && ps.Tag == "form" {
			if ps.ID != "" && !signature.IsGeneratedID(ps.ID) {
				formID = ps.ID
			} else if n := ps.Attr("name"); n != "" {
				formID = n
			}
		}
		if needHeading && heading == "" && signature.IsLandmark(ps) {
			if h, err := signature.FirstHeading(ctx, parent); err == nil {
				heading = h
			}
		}
		cur = parent
	}

	var adj float64
	if needForm && formID != "" {
		if formID == v.FormID {
			adj += bonusForm
		} else {
			adj -= bonusForm
		}
	}
	if needHeading && heading != "" {
		if signature.Normalize(heading) == signature.Normalize(v.LandmarkHeading) {
			adj += bonusLandmark
		} else {
			adj -= bonusLandmark
		}
	}
	if len(v.NearbyLabels) > 0 {
		if have := r.candidateLabels(ctx, doc, c); len(have) > 0 {
			if labelsShared(v.NearbyLabels, have) {
				adj += bonusLabel
			} else {
				adj -= bonusLabel
			}
		}
	}
	return adj
}

// candidateLabels gathers the texts that label the candidate: label[for],
// a wrapping label, and aria-labelledby references. Best effort.
func (r *Resolver) candidateLabels(ctx context.Context, doc dom.Document, c scored) []string {
	var labels []string
	if c.snap.ID != "" {
		if els, err := doc.QueryAll(ctx, `label[for=`+strconv.Quote(c.snap.ID)+`]`); err == nil {
			for _, l := range els {
				if ls, err := l.Snapshot(ctx); err == nil && ls.Text != "" {
					labels = append(labels, ls.Text)
				}
			}
		}
	}
	cur := c.el
	for i := 0; i < 3; i++ {
		parent, err := cur.Parent(ctx)
		if err != nil || parent == nil {
			break
		}
		ps, err := parent.Snapshot(ctx)
		if err != nil {
			break
		}
		if ps.Tag == "label" {
			if ps.Text != "" {
				labels = append(labels, ps.Text)
			}
			break
		}
		cur = parent
	}
	for _, id := range strings.Fields(c.snap.Attr("aria-labelledby")) {
		if els, err := doc.QueryAll(ctx, `[id=`+strconv.Quote(id)+`]`); err == nil {
			for _, l := range els {
				if ls, err := l.Snapshot(ctx); err == nil && ls.Text != "" {
					labels = append(labels, ls.Text)
				}
			}
		}
	}
	return labels
}

// labelsShared reports whether any recorded label matches any candidate
// label after normalization. Recorded labels may carry a clip marker.
func labelsShared(want, have []string) bool {
	for _, w := range want {
		nw := signature.Normalize(strings.TrimSuffix(w, "..."))
		if nw == "" {
			continue
		}
		for _, h := range have {
			nh := signature.Normalize(h)
			if nh == "" {
				continue
			}
			if strings.Contains(nh, nw) || strings.Contains(nw, nh) {
				return true
			}
		}
	}
	return false
}
