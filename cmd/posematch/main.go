package main

import (
	"os"

	"github.com/okian/posematch/cmd/posematch/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Errors are printed by the commands with color formatting
	if err := commands.Execute(version + " (commit: " + commit + ")"); err != nil {
		os.Exit(1)
	}
}
