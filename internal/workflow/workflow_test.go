package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/verify"
)

const validDoc = `{
	"version": 1,
	"name": "checkout smoke",
	"vars": {"email": "qa@example.com"},
	"steps": [
		{
			"id": "s1",
			"name": "pick shipping country",
			"pattern": {
				"kind": "dropdown_select",
				"dropdown": {"option": "Canada", "hints": {"library": "react-select"}}
			},
			"path": {
				"target": {
					"identity": {"testId": "country"},
					"structure": {"tag": "div"}
				}
			},
			"expect": [{"kind": "attr_equals", "attr": "data-country", "value": "ca"}]
		},
		{
			"id": "s2",
			"name": "enter email",
			"pattern": {
				"kind": "text_input",
				"textInput": {"value": "{{email}}", "clear": true}
			},
			"path": {
				"target": {
					"identity": {"id": "email"},
					"text": {"placeholder": "Email"},
					"structure": {"tag": "input"}
				}
			}
		}
	]
}`

func TestParseValidWorkflow(t *testing.T) {
	t.Parallel()
	w, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, "checkout smoke", w.Name)
	assert.Equal(t, FormatVersion, w.Version)
	assert.Equal(t, map[string]string{"email": "qa@example.com"}, w.Vars)
	require.Len(t, w.Steps, 2)

	first := w.Steps[0]
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, pattern.DropdownSelect, first.Pattern.Kind)
	require.NotNil(t, first.Pattern.Dropdown)
	assert.Equal(t, "Canada", first.Pattern.Dropdown.Option)
	assert.Equal(t, pattern.LibReactSelect, first.Pattern.Dropdown.Hints.Library)
	assert.Equal(t, "country", first.Path.Target.Identity.TestID)
	require.Len(t, first.Expect, 1)
	assert.Equal(t, verify.OutcomeAttrEquals, first.Expect[0].Kind)

	second := w.Steps[1]
	require.NotNil(t, second.Pattern.Text)
	assert.Equal(t, "{{email}}", second.Pattern.Text.Value)
	assert.True(t, second.Pattern.Text.Clear)
}

func TestParseRejectsWrongVersionAtSchema(t *testing.T) {
	t.Parallel()
	doc := `{"version": 2, "name": "x", "steps": [
		{"id": "s1", "pattern": {"kind": "simple_click"},
		 "path": {"target": {"structure": {"tag": "button"}}}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails schema")
}

func TestValidateRejectsWrongVersion(t *testing.T) {
	t.Parallel()
	w := &Workflow{Version: 2, Name: "x", Steps: []UniversalStep{{ID: "s1"}}}
	err := w.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported workflow version 2")
}

func TestParseRejectsEmptySteps(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": []}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails schema")
}

func TestParseRejectsDuplicateStepIDs(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1", "pattern": {"kind": "simple_click"},
		 "path": {"target": {"structure": {"tag": "button"}}}},
		{"id": "s1", "pattern": {"kind": "simple_click"},
		 "path": {"target": {"structure": {"tag": "a"}}}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate id "s1"`)
}

func TestParseRejectsMissingPayloadAtSchema(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1", "pattern": {"kind": "dropdown_select"},
		 "path": {"target": {"structure": {"tag": "div"}}}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails schema")
}

func TestParseRejectsForeignPayload(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1",
		 "pattern": {"kind": "simple_click", "toggle": {"state": "on"}},
		 "path": {"target": {"structure": {"tag": "button"}}}}
	]}`
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, pattern.ErrInvalidPatternData)
}

func TestParseRejectsUnknownStepField(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1", "patern": {"kind": "simple_click"},
		 "pattern": {"kind": "simple_click"},
		 "path": {"target": {"structure": {"tag": "button"}}}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails schema")
}

func TestParseRejectsEmptyTargetSignature(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1", "pattern": {"kind": "simple_click"},
		 "path": {"target": {}}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestParseRejectsUncheckableOutcome(t *testing.T) {
	t.Parallel()
	doc := `{"version": 1, "name": "x", "steps": [
		{"id": "s1", "pattern": {"kind": "simple_click"},
		 "path": {"target": {"structure": {"tag": "button"}}},
		 "expect": [{"kind": "url_contains"}]}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a value")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{"version": 1,`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o644))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "checkout smoke", w.Name)
}

func TestLoadReportsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read workflow")
}

func TestStepLabelFallsBackToID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "enter email", UniversalStep{ID: "s2", Name: "enter email"}.Label())
	assert.Equal(t, "s2", UniversalStep{ID: "s2"}.Label())
}
