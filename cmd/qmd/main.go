// Package main provides the entry point for the qmd CLI.
package main

import (
	"os"

	"github.com/qmd-dev/qmd/cmd/qmd/cmd"
	"github.com/qmd-dev/qmd/internal/qmderr"
)

func main() {
	err := cmd.Execute()
	os.Exit(qmderr.ExitCode(err))
}
