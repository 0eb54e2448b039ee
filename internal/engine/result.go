package engine

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nathanhui97/autoflow/internal/action"
	"github.com/nathanhui97/autoflow/internal/pattern"
	"github.com/nathanhui97/autoflow/internal/resolve"
	"github.com/nathanhui97/autoflow/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hooks receive run progress. Any hook may be nil.
type Hooks struct {
	// OnStepStart fires before the step's quiescence wait. i is the
	// zero-based step index.
	OnStepStart func(i int, step workflow.UniversalStep)
	// OnStepDone fires after every step, failed or not.
	OnStepDone func(i int, res StepResult)
	// OnError fires after a failed step, before OnStepDone.
	OnError func(i int, res StepResult)
}

// StepResult records one step's execution: what resolved, what the
// primitive did, and why it failed if it did.
type StepResult struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Kind  pattern.Kind `json:"kind"`
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`

	Resolution *resolve.Result `json:"resolution,omitempty"`
	Action     *action.Result  `json:"action,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// WorkflowResult aggregates a run. Completed counts steps that succeeded;
// Steps holds every step that started, including the failed one a halted
// run stopped at.
type WorkflowResult struct {
	RunID     string        `json:"runId"`
	Workflow  string        `json:"workflow"`
	OK        bool          `json:"ok"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Steps     []StepResult  `json:"steps"`
	Summary   string        `json:"summary,omitempty"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Report renders the result as indented JSON for result files and stdout.
func (r WorkflowResult) Report() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ReportAll renders one combined report for a batch of runs. A single run
// renders as a bare object so small invocations stay easy to read.
func ReportAll(results []WorkflowResult) ([]byte, error) {
	if len(results) == 1 {
		return results[0].Report()
	}
	return json.MarshalIndent(results, "", "  ")
}

// summarize builds the per-step failure summary of a finished run.
func summarize(steps []StepResult, total int) string {
	var parts []string
	for _, s := range steps {
		if s.OK {
			continue
		}
		label := s.ID
		if s.Name != "" && s.Name != s.ID {
			label = fmt.Sprintf("%s (%s)", s.ID, s.Name)
		}
		parts = append(parts, fmt.Sprintf("step %s: %s", label, s.Error))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d of %d steps ran", len(steps), total)
	}
	return fmt.Sprintf("%d of %d steps failed: %s", len(parts), total, strings.Join(parts, "; "))
}
