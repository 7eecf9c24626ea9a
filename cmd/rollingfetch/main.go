// Package main is the entry point for the rollingfetch CLI.
//
// rollingfetch can be used either as a library (SDK) or as a standalone
// binary with YAML job files. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	rollingfetch run -c jobs.yaml      # Execute the configured jobs
//	rollingfetch validate -c jobs.yaml # Validate a job file
//	rollingfetch version               # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "rollingfetch",
	Short: "A rolling-window HTTP request runner",
	Long: `rollingfetch executes batches of HTTP requests through a rolling
concurrency window: at most N transfers are in flight at once, and each
completion immediately admits the next pending request.

Quick start:
  1. Create a job file (jobs.yaml)
  2. Run: rollingfetch run -c jobs.yaml

Example job file:
  window: 8
  requests:
    - url: https://api.github.com
    - url: https://example.com/search
      method: POST
      form:
        q: golang
  grids:
    - name: healthchecks
      url_template: "https://{{.env}}.example.com/health"
      dimensions:
        env: [prod, staging]`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this rollingfetch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rollingfetch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
