package main

import (
	"fmt"

	"github.com/jpalmerr/rollingfetch"
	"github.com/jpalmerr/rollingfetch/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a job file without executing any requests.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a job file",
	Long: `Validate a rollingfetch job file without executing any requests.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Job file is valid
  1 - Job file is invalid (error details printed to stderr)

Example:
  rollingfetch validate -c jobs.yaml
  rollingfetch validate --config /etc/rollingfetch/jobs.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to job file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	jobs := cfg.JobList()

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Jobs: %d\n", len(jobs))
	for _, job := range jobs {
		// Count total requests (direct + from grids)
		direct := len(job.Requests)
		fromGrids := 0
		for _, g := range job.Grids {
			// Calculate cartesian product size
			size := 1
			for _, vals := range g.Dimensions {
				size *= len(vals)
			}
			fromGrids += size
		}

		window := job.Window
		if window == 0 {
			window = rollingfetch.DefaultWindow
		}
		fmt.Printf("  %s: window %d, %d direct + %d from grids = %d requests\n",
			job.Name, window, direct, fromGrids, direct+fromGrids)
	}

	return nil
}
