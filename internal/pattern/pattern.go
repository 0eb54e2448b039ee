// Package pattern models recorded interactions as a closed set of component
// patterns. A naive click is wrong for most composite widgets: a dropdown
// built from divs needs open/locate/select/verify as one atomic operation.
// Each pattern kind carries the data its executor needs, and nothing else.
package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/signature"
)

// Kind tags the pattern variant. The set is closed: executors switch
// exhaustively over it, and new interaction idioms extend the enum rather
// than overloading an existing payload.
type Kind string

const (
	SimpleClick    Kind = "simple_click"
	DropdownSelect Kind = "dropdown_select"
	MultiSelect    Kind = "multi_select"
	Autocomplete   Kind = "autocomplete"
	TextInput      Kind = "text_input"
	Toggle         Kind = "toggle"
	TabSelect      Kind = "tab_select"
	ModalTrigger   Kind = "modal_trigger"
	MenuNavigation Kind = "menu_navigation"
)

// ErrInvalidPatternData marks a step whose pattern fails the shape check
// before execution.
var ErrInvalidPatternData = errors.New("invalid pattern data")

// Library names a detected component-library convention. Executors map it
// to the menu and option selectors that library renders.
type Library string

const (
	LibNative      Library = "native"
	LibReactSelect Library = "react-select"
	LibMUI         Library = "mui"
	LibAntDesign   Library = "antd"
	LibSelect2     Library = "select2"
	LibChosen      Library = "chosen"
	LibARIA        Library = "aria"
)

// MenuHints describe the menu a composite widget renders. Recorded hints
// take precedence over live detection; empty fields mean detect at runtime.
type MenuHints struct {
	Library Library `json:"library,omitempty"`
	// MenuSelector and OptionSelector override convention detection when
	// the recorder captured them.
	MenuSelector   string `json:"menuSelector,omitempty"`
	OptionSelector string `json:"optionSelector,omitempty"`
	// Virtualized menus render options lazily and need scroll-and-rescan.
	Virtualized bool `json:"virtualized,omitempty"`
}

// DropdownData selects one option from a dropdown by its visible text.
type DropdownData struct {
	// Trigger optionally re-targets the element that opens the menu when it
	// differs from the step target (a caret button beside the input).
	Trigger *signature.ElementSignature `json:"trigger,omitempty"`
	Option  string                      `json:"option"`
	Hints   MenuHints                   `json:"hints,omitempty"`
}

// MultiSelectData selects several options, in order, without closing the
// menu between picks.
type MultiSelectData struct {
	Options []string  `json:"options"`
	Hints   MenuHints `json:"hints,omitempty"`
}

// AutocompleteData types a query and picks a suggestion. An empty Option
// accepts the first suggestion shown.
type AutocompleteData struct {
	Query  string    `json:"query"`
	Option string    `json:"option,omitempty"`
	Hints  MenuHints `json:"hints,omitempty"`
}

// TextInputData writes a value into an editable target.
type TextInputData struct {
	Value string `json:"value"`
	// Clear empties the target first; Clear with an empty Value is a plain
	// field reset.
	Clear bool `json:"clear,omitempty"`
}

// ToggleState is the desired end state of a toggle.
type ToggleState string

const (
	ToggleOn   ToggleState = "on"
	ToggleOff  ToggleState = "off"
	ToggleFlip ToggleState = "flip"
)

// ToggleData drives checkboxes, switches and pressed-state buttons.
type ToggleData struct {
	State ToggleState `json:"state"`
}

// TabSelectData names the tab for post-activation verification. Optional:
// the step signature already addresses the tab element.
type TabSelectData struct {
	Label string `json:"label,omitempty"`
}

// ModalTriggerData describes the modal a click is expected to open.
type ModalTriggerData struct {
	// ExpectText, when set, must appear for the trigger to count as done.
	ExpectText string `json:"expectText,omitempty"`
}

// MenuNavigationData walks a nested menu by the labels of each level.
type MenuNavigationData struct {
	Path []string `json:"path"`
}

// Pattern is the tagged union: Kind plus exactly the payload that kind
// uses. Patterns are immutable once recorded.
type Pattern struct {
	Kind     Kind                `json:"kind"`
	Dropdown *DropdownData       `json:"dropdown,omitempty"`
	Multi    *MultiSelectData    `json:"multiSelect,omitempty"`
	Auto     *AutocompleteData   `json:"autocomplete,omitempty"`
	Text     *TextInputData      `json:"textInput,omitempty"`
	Toggle   *ToggleData         `json:"toggle,omitempty"`
	Tab      *TabSelectData      `json:"tabSelect,omitempty"`
	Modal    *ModalTriggerData   `json:"modalTrigger,omitempty"`
	Menu     *MenuNavigationData `json:"menuNavigation,omitempty"`
}

// Validate runs the shape check a step must pass before execution.
// Failures wrap ErrInvalidPatternData.
func (p Pattern) Validate() error {
	if msg := p.check(); msg != "" {
		return fmt.Errorf("%w: %s", ErrInvalidPatternData, msg)
	}
	return nil
}

func (p Pattern) check() string {
	if name, ok := p.foreignPayload(); ok {
		return fmt.Sprintf("%s payload on %s pattern", name, p.Kind)
	}
	switch p.Kind {
	case SimpleClick, ModalTrigger:
		return ""
	case DropdownSelect:
		switch {
		case p.Dropdown == nil:
			return "dropdown data missing"
		case strings.TrimSpace(p.Dropdown.Option) == "":
			return "dropdown option text missing"
		case p.Dropdown.Trigger != nil:
			if err := p.Dropdown.Trigger.Validate(); err != nil {
				return fmt.Sprintf("dropdown trigger: %v", err)
			}
		}
	case MultiSelect:
		if p.Multi == nil || len(p.Multi.Options) == 0 {
			return "multi-select options missing"
		}
		for _, o := range p.Multi.Options {
			if strings.TrimSpace(o) == "" {
				return "multi-select option text empty"
			}
		}
	case Autocomplete:
		if p.Auto == nil || strings.TrimSpace(p.Auto.Query) == "" {
			return "autocomplete query missing"
		}
	case TextInput:
		if p.Text == nil {
			return "text input data missing"
		}
		if p.Text.Value == "" && !p.Text.Clear {
			return "text input with empty value and no clear"
		}
	case Toggle:
		if p.Toggle == nil {
			return "toggle data missing"
		}
		switch p.Toggle.State {
		case ToggleOn, ToggleOff, ToggleFlip:
		default:
			return fmt.Sprintf("unknown toggle state %q", p.Toggle.State)
		}
	case TabSelect:
		if p.Tab != nil && strings.TrimSpace(p.Tab.Label) == "" {
			return "tab label empty"
		}
	case MenuNavigation:
		if p.Menu == nil || len(p.Menu.Path) == 0 {
			return "menu path missing"
		}
		for _, hop := range p.Menu.Path {
			if strings.TrimSpace(hop) == "" {
				return "menu path entry empty"
			}
		}
	default:
		return fmt.Sprintf("unknown pattern kind %q", p.Kind)
	}
	return ""
}

// foreignPayload reports a payload that belongs to a different kind,
// which almost always means a recorder bug.
func (p Pattern) foreignPayload() (string, bool) {
	for _, s := range []struct {
		name string
		kind Kind
		has  bool
	}{
		{"dropdown", DropdownSelect, p.Dropdown != nil},
		{"multiSelect", MultiSelect, p.Multi != nil},
		{"autocomplete", Autocomplete, p.Auto != nil},
		{"textInput", TextInput, p.Text != nil},
		{"toggle", Toggle, p.Toggle != nil},
		{"tabSelect", TabSelect, p.Tab != nil},
		{"modalTrigger", ModalTrigger, p.Modal != nil},
		{"menuNavigation", MenuNavigation, p.Menu != nil},
	} {
		if s.has && s.kind != p.Kind {
			return s.name, true
		}
	}
	return "", false
}

// String renders a short log handle. Text input values never appear in
// logs; they may be substituted secrets.
func (p Pattern) String() string {
	switch p.Kind {
	case DropdownSelect:
		if p.Dropdown != nil {
			return fmt.Sprintf("%s(%q)", p.Kind, p.Dropdown.Option)
		}
	case MultiSelect:
		if p.Multi != nil {
			return fmt.Sprintf("%s(%d options)", p.Kind, len(p.Multi.Options))
		}
	case Autocomplete:
		if p.Auto != nil {
			return fmt.Sprintf("%s(%q)", p.Kind, p.Auto.Query)
		}
	case TextInput:
		if p.Text != nil {
			return fmt.Sprintf("%s(%d chars)", p.Kind, len(p.Text.Value))
		}
	case Toggle:
		if p.Toggle != nil {
			return fmt.Sprintf("%s(%s)", p.Kind, p.Toggle.State)
		}
	case MenuNavigation:
		if p.Menu != nil {
			return fmt.Sprintf("%s(%s)", p.Kind, strings.Join(p.Menu.Path, " > "))
		}
	}
	return string(p.Kind)
}
