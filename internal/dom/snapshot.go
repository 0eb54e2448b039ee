package dom

import (
	"strconv"
	"strings"
)

// Snapshot is a one-shot read of an element's observable state. Consumers
// decide policy (visibility rules, drift scoring) from these raw facts; the
// adapters only report them.
type Snapshot struct {
	Tag   string            `json:"tag"`
	ID    string            `json:"id,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`

	// Text is the rendered text with whitespace collapsed. Value is the
	// current value of value-carrying elements (inputs, textareas, selects)
	// or the text of an editable region.
	Text  string `json:"text,omitempty"`
	Value string `json:"value,omitempty"`

	Rect Rect `json:"rect"`

	// Effective computed style. Opacity is the product along the ancestor
	// chain, so an element inside an opacity:0 container reports 0.
	Display       string  `json:"display"`
	Visibility    string  `json:"visibility"`
	Opacity       float64 `json:"opacity"`
	PointerEvents string  `json:"pointerEvents,omitempty"`

	// Disabled reflects the resolved property, covering disabled ancestors
	// such as fieldsets, not just the attribute.
	Disabled        bool `json:"disabled,omitempty"`
	ReadOnly        bool `json:"readOnly,omitempty"`
	Checked         bool `json:"checked,omitempty"`
	Focused         bool `json:"focused,omitempty"`
	ContentEditable bool `json:"contentEditable,omitempty"`

	ChildCount int `json:"childCount"`

	// Position among siblings that share the same tag, zero-based.
	SiblingIndex int `json:"siblingIndex"`
	SiblingCount int `json:"siblingCount"`
}

// Attr returns the named attribute, or "" when absent.
func (s Snapshot) Attr(name string) string {
	return s.Attrs[name]
}

// HasAttr reports whether the attribute is present, even if empty.
func (s Snapshot) HasAttr(name string) bool {
	_, ok := s.Attrs[name]
	return ok
}

// Classes splits the class attribute into individual names.
func (s Snapshot) Classes() []string {
	return strings.Fields(s.Attrs["class"])
}

// HasClass reports whether name appears in the class list.
func (s Snapshot) HasClass(name string) bool {
	for _, c := range s.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// Role returns the explicit ARIA role, or "" when none is set.
func (s Snapshot) Role() string {
	return strings.ToLower(strings.TrimSpace(s.Attrs["role"]))
}

// InputType returns the effective type of an input element. Inputs without
// a type attribute default to "text"; non-inputs return "".
func (s Snapshot) InputType() string {
	if s.Tag != "input" {
		return ""
	}
	t := strings.ToLower(strings.TrimSpace(s.Attrs["type"]))
	if t == "" {
		return "text"
	}
	return t
}

// AriaBool parses a tri-state ARIA attribute: nil when absent or
// unparseable, otherwise the boolean it names.
func (s Snapshot) AriaBool(name string) *bool {
	v, ok := s.Attrs[name]
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	return &b
}
