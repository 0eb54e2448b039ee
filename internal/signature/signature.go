// Package signature captures elements as bundles of independent signals so a
// recorded interaction can be replayed after the page drifts. No single
// signal is trusted: identity attributes, text, structure and coarse visual
// anchors are recorded together and re-scored against live candidates at
// replay time.
package signature

import (
	"errors"
	"fmt"

	"github.com/nathanhui97/autoflow/internal/dom"
)

// IdentitySignals are the strongest signals: explicit hooks authors attach
// to elements. ID is only recorded when it does not look machine-generated.
type IdentitySignals struct {
	TestID         string `json:"testId,omitempty"`
	AriaLabel      string `json:"ariaLabel,omitempty"`
	Role           string `json:"role,omitempty"`
	AccessibleName string `json:"accessibleName,omitempty"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
}

// TextSignals describe the element's rendered text at recording time.
type TextSignals struct {
	// Exact is the rendered text, whitespace-collapsed and length-capped.
	Exact string `json:"exact,omitempty"`
	// Normalized is Exact lowercased with punctuation stripped.
	Normalized string `json:"normalized,omitempty"`
	// Words are the significant words of Normalized, for partial matching.
	Words       []string `json:"words,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// StructureSignals locate the element relative to its neighborhood.
type StructureSignals struct {
	Tag string `json:"tag,omitempty"`
	// TagPath lists tags from the element outward, self first, at most five
	// entries.
	TagPath []string `json:"tagPath,omitempty"`
	// Position among siblings sharing the same tag, zero-based.
	SiblingIndex int `json:"siblingIndex"`
	SiblingCount int `json:"siblingCount"`
	// SiblingText holds the text of the adjacent element siblings.
	SiblingText []string `json:"siblingText,omitempty"`
}

// VisualSignals are coarse spatial anchors that survive layout drift.
type VisualSignals struct {
	// LandmarkHeading is the heading text of the nearest sectioning
	// container the element sits in.
	LandmarkHeading string `json:"landmarkHeading,omitempty"`
	// FormID identifies the enclosing form, when any.
	FormID       string       `json:"formId,omitempty"`
	NearbyLabels []string     `json:"nearbyLabels,omitempty"`
	Quadrant     dom.Quadrant `json:"quadrant,omitempty"`
}

// SelectorSet carries recorded selectors strictly as fallbacks. They are
// advisory: resolution never trusts them over live signals.
type SelectorSet struct {
	// Ideal is built from test hooks (data-testid, aria-label).
	Ideal string `json:"ideal,omitempty"`
	// Stable is built from author identity (id, name).
	Stable string `json:"stable,omitempty"`
	// Specific is built from tag and stable classes.
	Specific string `json:"specific,omitempty"`
	// PathQuery is an absolute XPath recorded as the last resort.
	PathQuery string `json:"pathQuery,omitempty"`
}

func (s SelectorSet) empty() bool {
	return s == SelectorSet{}
}

// ClickTargetInfo survives semantic-target climbing: when the recorded click
// landed on a decorative descendant (an icon inside a button), it remembers
// the descendant and the pixel offset from the semantic target's center so
// coordinate strategies can re-aim.
type ClickTargetInfo struct {
	Tag     string  `json:"tag,omitempty"`
	ID      string  `json:"id,omitempty"`
	Class   string  `json:"class,omitempty"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// ElementSignature is the multi-signal description of one recorded element.
// Signatures are immutable once built.
type ElementSignature struct {
	Identity    IdentitySignals  `json:"identity"`
	Text        TextSignals      `json:"text"`
	Structure   StructureSignals `json:"structure"`
	Visual      VisualSignals    `json:"visual"`
	Selectors   SelectorSet      `json:"selectors"`
	ClickTarget *ClickTargetInfo `json:"clickTarget,omitempty"`
}

// HasIdentity reports whether any identity signal is present.
func (s ElementSignature) HasIdentity() bool {
	i := s.Identity
	return i.TestID != "" || i.AriaLabel != "" || i.AccessibleName != "" ||
		i.ID != "" || i.Name != ""
}

// HasText reports whether any text signal is present.
func (s ElementSignature) HasText() bool {
	t := s.Text
	return t.Exact != "" || t.Normalized != "" || len(t.Words) > 0 || t.Placeholder != ""
}

// HasStructure reports whether structural signals are present.
func (s ElementSignature) HasStructure() bool {
	return s.Structure.Tag != ""
}

// Validate rejects signatures that cannot anchor a resolution: at least one
// of the identity, text or structure groups must be populated. Recorded
// selectors alone are never enough, since they are exactly the thing page
// drift invalidates.
func (s ElementSignature) Validate() error {
	if s.HasIdentity() || s.HasText() || s.HasStructure() {
		return nil
	}
	if !s.Selectors.empty() {
		return errors.New("signature carries only selectors and no live signals")
	}
	return errors.New("empty signature")
}

// Label renders a short human-readable handle for logs and error messages.
func (s ElementSignature) Label() string {
	switch {
	case s.Identity.TestID != "":
		return fmt.Sprintf("%s[testid=%s]", orAny(s.Structure.Tag), s.Identity.TestID)
	case s.Identity.AriaLabel != "":
		return fmt.Sprintf("%s %q", orAny(s.Structure.Tag), s.Identity.AriaLabel)
	case s.Text.Exact != "":
		return fmt.Sprintf("%s %q", orAny(s.Structure.Tag), clip(s.Text.Exact, 40))
	case s.Identity.ID != "":
		return fmt.Sprintf("%s#%s", orAny(s.Structure.Tag), s.Identity.ID)
	case s.Structure.Tag != "":
		return s.Structure.Tag
	default:
		return "element"
	}
}

func orAny(tag string) string {
	if tag == "" {
		return "*"
	}
	return tag
}
