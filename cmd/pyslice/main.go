// Package main implements the pyslice CLI.
// It answers dataflow slicing and dependency questions over a log of
// executed notebook cells.
package main

import (
	"os"

	"pyslice/cmd/pyslice/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
