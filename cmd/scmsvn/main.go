// Package main provides the entry point for the scmsvn CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/scmsvn/cmd/scmsvn/commands"
	"github.com/Sumatoshi-tech/scmsvn/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := commands.NewRootCommand(commands.Deps{})

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
