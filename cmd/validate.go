// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathanhui97/autoflow/internal/workflow"
)

// newValidateCmd creates the `validate` command: schema and pattern shape
// checks only, no browser.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [workflows...]",
		Short: "Checks workflow files against the schema without replaying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				w, err := workflow.Load(path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: INVALID\n  %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%q, %d steps)\n", path, w.Name, len(w.Steps))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d workflow files invalid", failed, len(args))
			}
			return nil
		},
	}
}
