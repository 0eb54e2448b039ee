package signature

import (
	"fmt"
	"strings"
)

// Selector construction for the recorded fallbacks. Values are escaped for
// attribute-selector syntax; ids that need real CSS escaping are expressed
// as attribute selectors instead, which avoids the escape table entirely.

func escapeAttrValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

// AttrSelector renders an exact-match attribute selector with the value
// escaped.
func AttrSelector(name, value string) string {
	return fmt.Sprintf(`[%s="%s"]`, name, escapeAttrValue(value))
}

func isCSSIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func idSelector(id string) string {
	if isCSSIdent(id) {
		return "#" + id
	}
	return AttrSelector("id", id)
}

// buildSelectorSet derives the advisory fallback selectors from already
// extracted signals.
func buildSelectorSet(sig ElementSignature, testIDAttr, classAttr string, pathQuery string) SelectorSet {
	var set SelectorSet

	switch {
	case sig.Identity.TestID != "" && testIDAttr != "":
		set.Ideal = AttrSelector(testIDAttr, sig.Identity.TestID)
	case sig.Identity.AriaLabel != "":
		set.Ideal = AttrSelector("aria-label", sig.Identity.AriaLabel)
	}

	switch {
	case sig.Identity.ID != "":
		set.Stable = idSelector(sig.Identity.ID)
	case sig.Identity.Name != "" && sig.Structure.Tag != "":
		set.Stable = sig.Structure.Tag + AttrSelector("name", sig.Identity.Name)
	}

	if tag := sig.Structure.Tag; tag != "" {
		stable := StableClasses(strings.Fields(classAttr))
		if len(stable) > 0 {
			set.Specific = tag + "." + strings.Join(stable, ".")
		}
	}

	set.PathQuery = pathQuery
	return set
}
