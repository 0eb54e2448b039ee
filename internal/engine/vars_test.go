package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/verify"
)

func TestSubstitute(t *testing.T) {
	t.Parallel()
	vars := map[string]string{
		"email":      "a@b.com",
		"user.name":  "Ada",
		"order-id":   "X91",
		"empty":      "",
		"first_name": "Grace",
	}
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain token", "{{email}}", "a@b.com"},
		{"token inside text", "send to {{email}} now", "send to a@b.com now"},
		{"padded token", "{{ email }}", "a@b.com"},
		{"adjacent tokens", "{{first_name}}{{email}}", "Gracea@b.com"},
		{"dotted name", "{{user.name}}", "Ada"},
		{"dashed name", "order {{order-id}}", "order X91"},
		{"empty value substitutes", "[{{empty}}]", "[]"},
		{"unknown stays verbatim", "{{missing}}@x", "{{missing}}@x"},
		{"mixed known and unknown", "{{email}} vs {{missing}}", "a@b.com vs {{missing}}"},
		{"no tokens", "plain text", "plain text"},
		{"malformed braces untouched", "a {{}} c {d}", "a {{}} c {d}"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Substitute(tc.in, vars))
		})
	}
}

func TestSubstituteWithNoVars(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "{{email}}", Substitute("{{email}}", nil))
	assert.Equal(t, "{{email}}", Substitute("{{email}}", map[string]string{}))
}

func TestMergeVarsOverrideWins(t *testing.T) {
	t.Parallel()
	base := map[string]string{"email": "wf@x.test", "name": "Ada"}
	override := map[string]string{"email": "rt@x.test"}

	merged := mergeVars(base, override)

	assert.Equal(t, "rt@x.test", merged["email"])
	assert.Equal(t, "Ada", merged["name"])
	assert.Equal(t, "wf@x.test", base["email"], "workflow vars must not be mutated")
}

func TestMergeVarsHandlesNilSides(t *testing.T) {
	t.Parallel()
	override := map[string]string{"k": "v"}
	assert.Equal(t, override, mergeVars(nil, override))

	base := map[string]string{"k": "v"}
	assert.Equal(t, base, mergeVars(base, nil))
}

func TestSubstitutePatternRewritesPayloads(t *testing.T) {
	t.Parallel()
	vars := map[string]string{"v": "resolved"}

	cases := []struct {
		name  string
		in    pattern.Pattern
		check func(t *testing.T, got pattern.Pattern)
	}{
		{
			name: "dropdown option",
			in:   pattern.Pattern{Kind: pattern.DropdownSelect, Dropdown: &pattern.DropdownData{Option: "{{v}}"}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, "resolved", got.Dropdown.Option)
			},
		},
		{
			name: "multi options",
			in:   pattern.Pattern{Kind: pattern.MultiSelect, Multi: &pattern.MultiSelectData{Options: []string{"{{v}}", "fixed"}}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, []string{"resolved", "fixed"}, got.Multi.Options)
			},
		},
		{
			name: "autocomplete query and option",
			in:   pattern.Pattern{Kind: pattern.Autocomplete, Auto: &pattern.AutocompleteData{Query: "{{v}}", Option: "{{v}} st"}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, "resolved", got.Auto.Query)
				assert.Equal(t, "resolved st", got.Auto.Option)
			},
		},
		{
			name: "text value",
			in:   pattern.Pattern{Kind: pattern.TextInput, Text: &pattern.TextInputData{Value: "{{v}}"}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, "resolved", got.Text.Value)
			},
		},
		{
			name: "tab label",
			in:   pattern.Pattern{Kind: pattern.TabSelect, Tab: &pattern.TabSelectData{Label: "{{v}}"}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, "resolved", got.Tab.Label)
			},
		},
		{
			name: "modal expect text",
			in:   pattern.Pattern{Kind: pattern.ModalTrigger, Modal: &pattern.ModalTriggerData{ExpectText: "{{v}}"}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, "resolved", got.Modal.ExpectText)
			},
		},
		{
			name: "menu path",
			in:   pattern.Pattern{Kind: pattern.MenuNavigation, Menu: &pattern.MenuNavigationData{Path: []string{"File", "{{v}}"}}},
			check: func(t *testing.T, got pattern.Pattern) {
				assert.Equal(t, []string{"File", "resolved"}, got.Menu.Path)
			},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := substitutePattern(tc.in, vars)
			tc.check(t, got)
		})
	}
}

func TestSubstitutePatternNeverMutatesTheRecording(t *testing.T) {
	t.Parallel()
	orig := pattern.Pattern{
		Kind:  pattern.MultiSelect,
		Multi: &pattern.MultiSelectData{Options: []string{"{{a}}", "{{b}}"}},
	}
	got := substitutePattern(orig, map[string]string{"a": "1", "b": "2"})

	require.Equal(t, []string{"1", "2"}, got.Multi.Options)
	assert.Equal(t, []string{"{{a}}", "{{b}}"}, orig.Multi.Options)
	assert.NotSame(t, orig.Multi, got.Multi)
}

func TestSubstituteOutcomesTouchesOnlyLiterals(t *testing.T) {
	t.Parallel()
	in := []verify.ExpectedOutcome{
		{Kind: verify.OutcomeURLContains, Value: "/orders/{{id}}"},
		{Kind: verify.OutcomeAppear, Selector: "#toast-{{id}}", Text: "order {{id}} saved"},
	}
	got := substituteOutcomes(in, map[string]string{"id": "42"})

	require.Len(t, got, 2)
	assert.Equal(t, "/orders/42", got[0].Value)
	assert.Equal(t, "order 42 saved", got[1].Text)
	assert.Equal(t, "#toast-{{id}}", got[1].Selector, "selectors are recorded, not user data")
	assert.Equal(t, "/orders/{{id}}", in[0].Value, "recorded outcomes must not be mutated")
}
