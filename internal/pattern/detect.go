package pattern

import (
	"context"
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// Detect classifies a live element into the pattern that drives it
// atomically. Data-carrying kinds come back as skeletons: the caller fills
// in the recorded data (option text, input value, menu path) before the
// pattern validates.
func Detect(ctx context.Context, el dom.Element) (Pattern, error) {
	snap, err := el.Snapshot(ctx)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern: snapshot: %w", err)
	}
	return FromSnapshot(snap), nil
}

// FromSnapshot classifies from observed state alone. Precedence runs from
// the strongest signals (native tags, explicit popup declarations) down to
// component-library markup, with a plain click as the floor.
func FromSnapshot(s dom.Snapshot) Pattern {
	if s.Tag == "select" {
		hints := MenuHints{Library: LibNative}
		if s.HasAttr("multiple") {
			return Pattern{Kind: MultiSelect, Multi: &MultiSelectData{Hints: hints}}
		}
		return Pattern{Kind: DropdownSelect, Dropdown: &DropdownData{Hints: hints}}
	}

	popup := strings.ToLower(strings.TrimSpace(s.Attr("aria-haspopup")))
	switch popup {
	case "dialog":
		return Pattern{Kind: ModalTrigger}
	case "menu":
		return Pattern{Kind: MenuNavigation}
	}

	switch signature.RoleOf(s) {
	case "tab":
		return Pattern{Kind: TabSelect, Tab: &TabSelectData{Label: strings.TrimSpace(s.Text)}}
	case "switch", "checkbox":
		return Pattern{Kind: Toggle, Toggle: &ToggleData{State: ToggleFlip}}
	case "menuitem", "menuitemcheckbox", "menuitemradio":
		return Pattern{Kind: MenuNavigation}
	case "combobox":
		if editable(s) {
			return Pattern{Kind: Autocomplete, Auto: &AutocompleteData{Hints: menuHints(s)}}
		}
		return Pattern{Kind: DropdownSelect, Dropdown: &DropdownData{Hints: menuHints(s)}}
	}

	if s.HasAttr("aria-pressed") {
		return Pattern{Kind: Toggle, Toggle: &ToggleData{State: ToggleFlip}}
	}

	switch strings.ToLower(strings.TrimSpace(s.Attr("aria-autocomplete"))) {
	case "list", "both", "inline":
		return Pattern{Kind: Autocomplete, Auto: &AutocompleteData{Hints: menuHints(s)}}
	}
	if popup == "listbox" || popup == "true" {
		return Pattern{Kind: DropdownSelect, Dropdown: &DropdownData{Hints: menuHints(s)}}
	}

	switch s.Tag {
	case "textarea":
		return Pattern{Kind: TextInput, Text: &TextInputData{}}
	case "input":
		switch s.InputType() {
		case "checkbox":
			return Pattern{Kind: Toggle, Toggle: &ToggleData{State: ToggleFlip}}
		case "radio", "button", "submit", "reset", "image", "file", "color":
			return Pattern{Kind: SimpleClick}
		default:
			return Pattern{Kind: TextInput, Text: &TextInputData{}}
		}
	}
	if s.ContentEditable {
		return Pattern{Kind: TextInput, Text: &TextInputData{}}
	}

	// Framework-agnostic markers some toolkits put on modal openers.
	if s.Attr("data-toggle") == "modal" || s.Attr("data-bs-toggle") == "modal" {
		return Pattern{Kind: ModalTrigger}
	}

	// Select-library markup on an otherwise plain element still reads as a
	// dropdown trigger: react-select and friends render the control as divs
	// with no role at all.
	if lib := DetectLibrary(s); lib != LibARIA && lib != LibNative {
		return Pattern{Kind: DropdownSelect, Dropdown: &DropdownData{Hints: MenuHints{Library: lib}}}
	}

	return Pattern{Kind: SimpleClick}
}

// DetectLibrary infers the component library that rendered a composite
// widget from its markup conventions. LibARIA is the generic fallback for
// role-driven widgets with no recognizable vendor markup.
func DetectLibrary(s dom.Snapshot) Library {
	if s.Tag == "select" {
		return LibNative
	}
	class := strings.ToLower(s.Attr("class"))
	id := strings.ToLower(s.ID)
	switch {
	case strings.HasPrefix(id, "react-select"),
		strings.Contains(class, "react-select"),
		strings.Contains(class, "select__control"),
		strings.Contains(class, "select__input"):
		return LibReactSelect
	case strings.Contains(class, "mui"):
		return LibMUI
	case strings.Contains(class, "ant-select"):
		return LibAntDesign
	case strings.Contains(class, "select2"):
		return LibSelect2
	case strings.Contains(class, "chosen-container"), strings.Contains(class, "chzn-"):
		return LibChosen
	}
	return LibARIA
}

func menuHints(s dom.Snapshot) MenuHints {
	return MenuHints{Library: DetectLibrary(s)}
}

// editable reports whether the element accepts typed text directly.
func editable(s dom.Snapshot) bool {
	return s.Tag == "input" || s.Tag == "textarea" || s.ContentEditable
}
