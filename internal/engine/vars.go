package engine

import (
	"regexp"
	"strings"

	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// tokenRe matches {{name}} tokens, tolerating inner padding. Names are the
// usual identifier set plus dots and dashes for namespaced variables.
var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Substitute replaces {{name}} tokens with values from vars. Tokens without
// a binding stay verbatim so missing data shows up in the failure message
// instead of silently becoming empty text.
func Substitute(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return tokenRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(strings.Trim(m, "{}"))
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// mergeVars layers runtime values over the workflow's own variable map.
func mergeVars(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return override
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// substituteAll maps Substitute over a fresh copy of the slice.
func substituteAll(in []string, vars map[string]string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Substitute(s, vars)
	}
	return out
}

// substitutePattern applies variable substitution to the payload's literal
// values. The recorded pattern is never mutated; payloads are copied before
// rewriting so a workflow stays replayable with different variables.
func substitutePattern(p pattern.Pattern, vars map[string]string) pattern.Pattern {
	if len(vars) == 0 {
		return p
	}
	switch p.Kind {
	case pattern.DropdownSelect:
		if p.Dropdown != nil {
			d := *p.Dropdown
			d.Option = Substitute(d.Option, vars)
			p.Dropdown = &d
		}
	case pattern.MultiSelect:
		if p.Multi != nil {
			m := *p.Multi
			m.Options = substituteAll(m.Options, vars)
			p.Multi = &m
		}
	case pattern.Autocomplete:
		if p.Auto != nil {
			a := *p.Auto
			a.Query = Substitute(a.Query, vars)
			a.Option = Substitute(a.Option, vars)
			p.Auto = &a
		}
	case pattern.TextInput:
		if p.Text != nil {
			t := *p.Text
			t.Value = Substitute(t.Value, vars)
			p.Text = &t
		}
	case pattern.TabSelect:
		if p.Tab != nil {
			t := *p.Tab
			t.Label = Substitute(t.Label, vars)
			p.Tab = &t
		}
	case pattern.ModalTrigger:
		if p.Modal != nil {
			m := *p.Modal
			m.ExpectText = Substitute(m.ExpectText, vars)
			p.Modal = &m
		}
	case pattern.MenuNavigation:
		if p.Menu != nil {
			m := *p.Menu
			m.Path = substituteAll(m.Path, vars)
			p.Menu = &m
		}
	}
	return p
}

// substituteOutcomes rewrites the literal fields of recorded expectations.
// Selectors and attribute names stay as recorded; only values and rendered
// text carry user data.
func substituteOutcomes(in []verify.ExpectedOutcome, vars map[string]string) []verify.ExpectedOutcome {
	if len(in) == 0 || len(vars) == 0 {
		return in
	}
	out := make([]verify.ExpectedOutcome, len(in))
	for i, o := range in {
		o.Text = Substitute(o.Text, vars)
		o.Value = Substitute(o.Value, vars)
		out[i] = o
	}
	return out
}
