// Package main is the entry point for the siteconf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/thoreinstein/siteconf/cmd/siteconf/commands"
	"github.com/thoreinstein/siteconf/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(report(err))
	}
}

// report prints err and its suggestion, returning the exit code.
func report(err error) int {
	code := errors.ExitUser
	var exitErr *errors.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if exitErr != nil && exitErr.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", exitErr.Suggestion)
	}
	return code
}
