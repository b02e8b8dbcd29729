package cli

import (
	"fmt"

	"github.com/raphaelgruber/healthrag/internal/db"
	"github.com/raphaelgruber/healthrag/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counts and runtime statistics",
	Long: `Show how many patients, papers and paper chunks are stored.

With --server, also show the server's per-stage timings and token usage
since it started.

Examples:
  healthrag stats
  healthrag stats --server http://localhost:8484`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var store *db.Stats
	var snap metrics.Snapshot
	if c := remoteClient(); c != nil {
		resp, err := c.Stats(ctx)
		if err != nil {
			return fmt.Errorf("get server stats: %w", err)
		}
		store, snap = resp.Store, resp.Metrics
	} else {
		a, err := getApp(ctx, false)
		if err != nil {
			return err
		}
		store, err = a.DB.CountStats(ctx)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		snap = a.Metrics.Snapshot()
	}

	if store != nil {
		fmt.Fprintln(out, headingStyle.Render("Store"))
		fmt.Fprintf(out, "  Patients:     %d\n", store.Patients)
		fmt.Fprintf(out, "  Papers:       %d\n", store.Papers)
		fmt.Fprintf(out, "  Paper chunks: %d\n\n", store.PaperChunks)
	}
	renderStats(out, snap)
	return nil
}
