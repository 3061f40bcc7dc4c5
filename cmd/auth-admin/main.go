// Package main is the entry point for the authd admin CLI.
// It manages accounts directly against the configured database.
package main

import (
	"fmt"
	"os"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
