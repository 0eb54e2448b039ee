package workflow

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// compiledSchema compiles the embedded workflow schema exactly once. A
// compile failure means the binary shipped with a broken schema, so the
// error repeats on every call rather than being swallowed.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal(schemaJSON, &doc); err != nil {
			schemaErr = fmt.Errorf("decode embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("workflow.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("register embedded schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("workflow.schema.json")
	})
	return schema, schemaErr
}

// Parse decodes and validates one workflow document: schema first for
// precise structural diagnostics, then the Go-side shape checks the schema
// cannot express (foreign payloads, signature signal coverage).
func Parse(data []byte) (*Workflow, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workflow is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("workflow fails schema: %s", strings.Join(schemaIssues(err), "; "))
	}

	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Load reads and parses one workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return w, nil
}

// schemaIssues flattens the validator's error tree into one line per leaf
// cause, each located by its JSON pointer.
func schemaIssues(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			out = append(out, fmt.Sprintf("/%s: %v", strings.Join(v.InstanceLocation, "/"), v.ErrorKind))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
