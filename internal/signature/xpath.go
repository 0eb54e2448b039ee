package signature

import (
	"context"
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// maxPathDepth bounds the upward walk when composing path queries; documents
// deeper than this produce paths too brittle to be worth recording anyway.
const maxPathDepth = 30

// BuildPathQuery composes an absolute XPath for the element, anchored at the
// nearest ancestor with a stable id so the path survives churn above it.
// Indexes are 1-based positions among same-tag siblings.
func BuildPathQuery(ctx context.Context, el dom.Element) (string, error) {
	var segs []string
	cur := el
	for depth := 0; cur != nil && depth < maxPathDepth; depth++ {
		snap, err := cur.Snapshot(ctx)
		if err != nil {
			return "", fmt.Errorf("path query at depth %d: %w", depth, err)
		}
		if snap.ID != "" && !IsGeneratedID(snap.ID) && !strings.ContainsAny(snap.ID, `'"`) {
			anchor := fmt.Sprintf("//*[@id='%s']", snap.ID)
			if len(segs) == 0 {
				return anchor, nil
			}
			return anchor + "/" + joinReversed(segs), nil
		}
		segs = append(segs, fmt.Sprintf("%s[%d]", snap.Tag, snap.SiblingIndex+1))
		cur, err = cur.Parent(ctx)
		if err != nil {
			return "", err
		}
	}
	return "/" + joinReversed(segs), nil
}

func joinReversed(segs []string) string {
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteString(segs[i])
		if i > 0 {
			b.WriteByte('/')
		}
	}
	return b.String()
}
