// File: cmd/validate_test.go
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflowDoc = `{
	"version": 1,
	"name": "login smoke",
	"vars": {"email": "qa@example.com"},
	"steps": [
		{
			"id": "s1",
			"name": "enter email",
			"pattern": {
				"kind": "text_input",
				"textInput": {"value": "{{email}}", "clear": true}
			},
			"path": {
				"target": {
					"identity": {"id": "email"},
					"structure": {"tag": "input"}
				}
			}
		},
		{
			"id": "s2",
			"name": "submit",
			"pattern": {"kind": "simple_click"},
			"path": {
				"target": {
					"identity": {"testId": "login-btn"},
					"structure": {"tag": "button"}
				}
			}
		}
	]
}`

func writeWorkflowFile(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestValidateCmd_ValidFile(t *testing.T) {
	path := writeWorkflowFile(t, "login.json", validWorkflowDoc)

	cmd := newValidateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "ok")
	assert.Contains(t, out.String(), "login smoke")
	assert.Contains(t, out.String(), "2 steps")
}

func TestValidateCmd_InvalidFile(t *testing.T) {
	path := writeWorkflowFile(t, "broken.json", `{"version": 1, "name": "x", "steps": []}`)

	cmd := newValidateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 workflow files invalid")
	assert.Contains(t, out.String(), "INVALID")
}

func TestValidateCmd_MixedFiles(t *testing.T) {
	good := writeWorkflowFile(t, "good.json", validWorkflowDoc)
	missing := filepath.Join(t.TempDir(), "missing.json")

	cmd := newValidateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{good, missing})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 workflow files invalid")
	assert.Contains(t, out.String(), "ok")
}
