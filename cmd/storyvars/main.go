// Package main is the entry point for the storyvars engine.
// This is a thin wrapper around the cli package.
package main

import (
	"os"

	"github.com/narratek/storyvars/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
