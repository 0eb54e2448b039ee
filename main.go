// ./main.go
package main

import (
	"github.com/nathanhui97/autoflow/cmd"
)

// main is the entry point for the autoflow CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
