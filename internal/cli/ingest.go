package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/healthrag/internal/server"
	"github.com/raphaelgruber/healthrag/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestRecursive   bool
	ingestTagEntities bool
	ingestDryRun      bool
	ingestConcurrency int
	ingestBatchSize   int
	ingestNoProgress  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Index paper documents for literature search",
	Long: `Parse Markdown paper documents (YAML frontmatter with pmid, title,
journal, year, authors, section), chunk them, embed the chunks and store
them for literature search.

Directories are scanned for .md and .markdown files. Documents with less
than 200 characters of text are skipped.

With --server the paths are resolved on the server and ingested as a
background job.

Examples:
  healthrag ingest ./papers
  healthrag ingest ./papers -r --tag-entities
  healthrag ingest ./papers --dry-run
  healthrag ingest /srv/papers --server http://localhost:8484`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "scan subdirectories")
	ingestCmd.Flags().BoolVar(&ingestTagEntities, "tag-entities", false, "tag chunks with biomedical entities (one LLM call per chunk)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse and chunk only, do not embed or store")
	ingestCmd.Flags().IntVarP(&ingestConcurrency, "concurrency", "c", 0, "parallel workers (default from config)")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "texts per embedding call (default from config)")
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress bar")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if c := remoteClient(); c != nil {
		paths := make([]string, len(args))
		for i, p := range args {
			paths[i] = filepath.Clean(p)
		}
		job, err := c.StartIngest(ctx, server.IngestRequest{
			Paths:       paths,
			Recursive:   ingestRecursive,
			TagEntities: ingestTagEntities,
			DryRun:      ingestDryRun,
		})
		if err != nil {
			return fmt.Errorf("start ingest: %w", err)
		}
		return followJob(ctx, cmd, c, job, true)
	}

	a, err := getApp(ctx, !ingestDryRun)
	if err != nil {
		return err
	}
	if ingestDryRun && a.Jobs == nil {
		// Dry runs only parse and chunk.
		a.Ingest = service.NewIngestService(a.DB, nil, nil, a.Metrics, logger)
		a.Jobs = service.NewJobManager(a.Ingest, cfg.IngestConcurrency, logger)
	}

	opts := a.IngestOptions()
	opts.Recursive = ingestRecursive
	opts.TagEntities = ingestTagEntities
	opts.DryRun = ingestDryRun
	if ingestConcurrency > 0 {
		opts.Concurrency = ingestConcurrency
	}
	if ingestBatchSize > 0 {
		opts.BatchSize = ingestBatchSize
	}

	job, err := a.Jobs.StartIngest(ctx, args, opts)
	if err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	return followJob(ctx, cmd, localJobs{manager: a.Jobs}, job, false)
}

// followJob shows a progress bar on a terminal and plain polling otherwise.
func followJob(ctx context.Context, cmd *cobra.Command, source jobSource, job *service.Job, background bool) error {
	if !ingestNoProgress && isTerminal(os.Stdout) {
		return RunJobProgress(source, job, background)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s: %d files\n", job.ID, job.Total)
	done, err := waitForJob(ctx, source, job.ID)
	if err != nil {
		return err
	}
	if done.Result != nil {
		fmt.Fprint(out, formatIngestResult(done.Result, defaultTheme))
	}
	return nil
}
