package signature

import "fmt"

// BoundaryType names a document boundary on the way to a target.
type BoundaryType string

const (
	BoundaryShadow BoundaryType = "shadow"
	BoundaryFrame  BoundaryType = "frame"
)

// BoundaryStep is one boundary crossing: the host element carrying the
// shadow root or frame, described by its own signature.
type BoundaryStep struct {
	Type BoundaryType     `json:"type"`
	Host ElementSignature `json:"host"`
}

// DOMPath addresses an element that may live behind shadow or frame
// boundaries: the ordered crossings from the top document, then the target
// inside the final scope. A path with no boundaries addresses the top
// document directly.
type DOMPath struct {
	Boundaries []BoundaryStep   `json:"boundaries,omitempty"`
	Target     ElementSignature `json:"target"`
}

// Path builds a boundary-free DOMPath.
func Path(target ElementSignature) DOMPath {
	return DOMPath{Target: target}
}

// Validate checks the target and every boundary host.
func (p DOMPath) Validate() error {
	for i, b := range p.Boundaries {
		switch b.Type {
		case BoundaryShadow, BoundaryFrame:
		default:
			return fmt.Errorf("boundary %d: unknown type %q", i, b.Type)
		}
		if err := b.Host.Validate(); err != nil {
			return fmt.Errorf("boundary %d host: %w", i, err)
		}
	}
	if err := p.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	return nil
}
