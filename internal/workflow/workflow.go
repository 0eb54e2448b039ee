// Package workflow defines the recorded interaction format the engine
// replays: a named step sequence where each step carries a component
// pattern, a boundary path to its target, and the outcomes the recorder
// observed. The loader schema-checks workflow files before the engine ever
// sees them, so a malformed recording fails at load time, not mid-replay.
package workflow

import (
	"fmt"
	"strings"

	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/signature"
	"github.com/nathanhui97/autoflow/internal/verify"
)

// FormatVersion is the workflow file version this build reads.
const FormatVersion = 1

// UniversalStep is one recorded interaction: what to do (Pattern), where to
// do it (Path), and how to tell it worked (Expect). Meta carries recorder
// annotations the engine ignores.
type UniversalStep struct {
	ID      string                   `json:"id"`
	Name    string                   `json:"name,omitempty"`
	Pattern pattern.Pattern          `json:"pattern"`
	Path    signature.DOMPath        `json:"path"`
	Expect  []verify.ExpectedOutcome `json:"expect,omitempty"`
	Meta    map[string]string        `json:"meta,omitempty"`
}

// Label is the step handle used in logs and results.
func (s UniversalStep) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Validate runs the shape checks a step must pass before execution. Pattern
// failures wrap pattern.ErrInvalidPatternData.
func (s UniversalStep) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("step id missing")
	}
	if err := s.Pattern.Validate(); err != nil {
		return err
	}
	if err := s.Path.Validate(); err != nil {
		return fmt.Errorf("path: %w", err)
	}
	for i, e := range s.Expect {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expect[%d]: %w", i, err)
		}
	}
	return nil
}

// Workflow is a recorded sequence plus the default values of its variables.
// Runtime variables override Vars entry by entry at replay time.
type Workflow struct {
	Version int               `json:"version"`
	Name    string            `json:"name"`
	Vars    map[string]string `json:"vars,omitempty"`
	Steps   []UniversalStep   `json:"steps"`
}

// Validate checks the whole document: version, step shapes, id uniqueness.
func (w *Workflow) Validate() error {
	if w.Version != FormatVersion {
		return fmt.Errorf("unsupported workflow version %d (this build reads %d)", w.Version, FormatVersion)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workflow name missing")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}
	seen := make(map[string]int, len(w.Steps))
	for i, st := range w.Steps {
		if prev, ok := seen[st.ID]; ok {
			return fmt.Errorf("step %d: duplicate id %q (first used by step %d)", i, st.ID, prev)
		}
		seen[st.ID] = i
		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Label(), err)
		}
	}
	return nil
}
