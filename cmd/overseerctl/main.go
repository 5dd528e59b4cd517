// ============================================================================
// Overseer - Main Entry Point
// ============================================================================
//
// File: cmd/overseerctl/main.go
// Purpose: Application entry point and CLI initialization
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./overseerctl --help                      # Show help
//   ./overseerctl run -c configs/prod.yaml    # Start the overseer
//   ./overseerctl start-child                 # Spawn one labor
//   ./overseerctl count                       # Print active labor count
//   ./overseerctl debug                       # Print a state snapshot
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/fleetkeep/overseer/internal/cli"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
