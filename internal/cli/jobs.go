package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/spf13/cobra"
)

var errNoServer = errors.New("this command needs --server (or HEALTHRAG_SERVER_URL)")

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect server ingestion jobs",
	Long: `List all background ingestion jobs on the server or inspect one by ID.
Jobs live in server memory and are lost on restart.

Examples:
  healthrag jobs --server http://localhost:8484           # List all jobs
  healthrag jobs --server http://localhost:8484 abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	c := remoteClient()
	if c == nil {
		return errNoServer
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		job, err := c.GetJob(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		printJob(out, job)
		return nil
	}
	return listJobs(ctx, out, c.ListJobs)
}

func listJobs(ctx context.Context, out io.Writer, list func(context.Context) ([]*service.Job, error)) error {
	jobs, err := list(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "%-10s %-12s %-10s %s\n", "ID", "STATUS", "PROGRESS", "STARTED")
	fmt.Fprintln(out, "------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		started := job.StartedAt.Format("15:04:05")
		fmt.Fprintf(out, "%-10s %-12s %-10s %s\n", job.ID, job.Status, progress, started)
	}

	return nil
}

func printJob(out io.Writer, job *service.Job) {
	fmt.Fprintf(out, "Job: %s\n", job.ID)
	fmt.Fprintf(out, "  Status: %s\n", job.Status)
	if job.Total > 0 {
		fmt.Fprintf(out, "  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Fprintf(out, "  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		duration := job.CompletedAt.Sub(job.StartedAt)
		fmt.Fprintf(out, "  Duration: %s\n", duration.Round(time.Second))
	}

	if job.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", job.Error)
	}

	if job.Result != nil {
		fmt.Fprintln(out, "\nResult:")
		fmt.Fprint(out, formatIngestResult(job.Result, defaultTheme))
	}
}
