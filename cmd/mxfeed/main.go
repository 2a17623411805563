package main

import (
	"os"

	"github.com/taquant/mxfeed/cmd/mxfeed/commands"
)

// main is the entry point for the mxfeed CLI: go run ./cmd/mxfeed [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
