package signature

import (
	"regexp"
	"sort"
	"strings"
)

// Heuristics for machine-generated identifiers. Build tools and frameworks
// mint ids and classes that change on every deploy; recording them as
// identity would poison later resolutions.

var (
	hexRunRe    = regexp.MustCompile(`(?i)[0-9a-f]{8,}`)
	uuidRe      = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	digitTailRe = regexp.MustCompile(`[-_:][0-9]{3,}$`)
)

// generatedIDPrefixes cover framework id factories (React useId, MUI, Radix,
// Ember, date pickers and the like).
var generatedIDPrefixes = []string{
	":r", "radix-", "react-", "mui-", "mantine-", "headlessui-", "ember",
	"downshift-", "rc_select_", "select2-",
}

// generatedClassPrefixes cover CSS-in-JS emit styles.
var generatedClassPrefixes = []string{
	"css-", "sc-", "jss", "makeStyles-", "chakra-", "emotion-", "svelte-",
}

// IsGeneratedID reports whether an id looks minted by tooling rather than
// written by an author.
func IsGeneratedID(id string) bool {
	if id == "" {
		return true
	}
	lower := strings.ToLower(id)
	for _, p := range generatedIDPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	if uuidRe.MatchString(id) || hexRunRe.MatchString(id) || digitTailRe.MatchString(id) {
		return true
	}
	// Long mixed-case alphanumeric soup with digits reads as a hash.
	if len(id) >= 12 && strings.ContainsAny(id, "0123456789") &&
		lower != id && strings.ToUpper(id) != id && !strings.ContainsAny(id, "-_ ") {
		return true
	}
	return false
}

// IsGeneratedClass reports whether a single class name looks like build
// output. Short digit-bearing names are treated as hashes, matching how
// CSS-in-JS emits them.
func IsGeneratedClass(class string) bool {
	if class == "" {
		return true
	}
	lower := strings.ToLower(class)
	for _, p := range generatedClassPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	if hexRunRe.MatchString(class) || digitTailRe.MatchString(class) {
		return true
	}
	if len(class) <= 8 && strings.ContainsAny(class, "0123456789") {
		return true
	}
	return false
}

// StableClasses filters and sorts class names so the survivors are usable as
// identity across deploys. Capped to keep selectors readable.
func StableClasses(classes []string) []string {
	var stable []string
	for _, c := range classes {
		if !IsGeneratedClass(c) {
			stable = append(stable, c)
		}
	}
	sort.Strings(stable)
	if len(stable) > 3 {
		stable = stable[:3]
	}
	return stable
}
