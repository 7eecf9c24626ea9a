package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/jpalmerr/rollingfetch"
	"github.com/jpalmerr/rollingfetch/config"
	"github.com/jpalmerr/rollingfetch/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// runCmd executes the jobs in a config file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured jobs",
	Long: `Execute all jobs in a job file.

Each job runs on its own scheduler with its own concurrency window; jobs
run concurrently with each other. Per-transfer results are logged as they
complete, and a summary per job is printed at the end.

The run stops early on SIGINT/SIGTERM or when any job hits a fatal
transport error.

Example:
  rollingfetch run -c jobs.yaml
  rollingfetch run --config /etc/rollingfetch/jobs.yaml --verbose`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to job file (required)")
	runCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// one correlation ID per invocation, carried on every log line
	logger = logger.With("run_id", uuid.NewString())

	jobs := cfg.JobList()
	logger.Info("config loaded", "jobs", len(jobs))

	// cancel all jobs on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summaries := make([]report.Summary, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			summary, err := runJob(ctx, job, logger.With("job", job.Name))
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, job := range jobs {
		printSummary(job.Name, summaries[i])
	}
	return nil
}

// runJob builds and runs one scheduler, collecting per-transfer stats.
func runJob(ctx context.Context, job config.Job, logger *slog.Logger) (report.Summary, error) {
	requests, err := config.BuildRequests(job)
	if err != nil {
		return report.Summary{}, fmt.Errorf("failed to build requests: %w", err)
	}

	collector := report.New()
	opts := append(config.BuildOptions(job),
		rollingfetch.WithLogger(logger),
		rollingfetch.WithCallback(func(req *rollingfetch.Request, _ rollingfetch.Queue) {
			info := req.Info()
			collector.Record(info.StatusCode, info.Duration, req.Err())
		}),
	)

	sched, err := rollingfetch.New(opts...)
	if err != nil {
		return report.Summary{}, fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, req := range requests {
		sched.Enqueue(req)
	}

	logger.Info("job starting",
		"requests", len(requests),
		"window", sched.Window(),
	)

	if err := sched.Run(ctx); err != nil {
		return report.Summary{}, err
	}

	logger.Info("job finished", "completed", sched.TotalCompleted())
	return collector.Summary(), nil
}

// printSummary writes a human-readable per-job summary to stdout.
func printSummary(name string, s report.Summary) {
	fmt.Printf("job %s:\n", name)
	fmt.Printf("  transfers: %d total, %d succeeded, %d failed\n", s.Total, s.Succeeded, s.Failed)
	if s.Total > 0 {
		fmt.Printf("  duration:  min %s, avg %s, max %s\n", s.Min, s.Avg, s.Max)
		fmt.Printf("  latency:   p50 %s, p90 %s, p99 %s\n", s.P50, s.P90, s.P99)
	}
	statuses := make([]int, 0, len(s.ByStatus))
	for status := range s.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	for _, status := range statuses {
		fmt.Printf("  status %d: %d\n", status, s.ByStatus[status])
	}
}
