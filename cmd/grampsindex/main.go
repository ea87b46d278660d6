// Package main provides the entry point for the grampsindex CLI.
package main

import (
	"os"

	"github.com/gramps-project/grampsindex/cmd/grampsindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
