// Package cli provides the command-line interface for healthrag.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/healthrag/internal/app"
	"github.com/raphaelgruber/healthrag/internal/client"
	"github.com/raphaelgruber/healthrag/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config and logger
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error

	// Lazy-initialized store and services
	application *app.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "healthrag",
	Short: "Evidence-grounded answers to patient health questions",
	Long: `healthrag answers a patient's health question from their own record,
wearable trends, drug rules and indexed literature, then checks every claim
in the answer against that evidence.

Commands run against the local store by default. Pass --server to talk to a
running healthrag-server instead.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// getApp connects to the store on first use. Commands that generate or embed
// pass requireModels=true.
func getApp(ctx context.Context, requireModels bool) (*app.App, error) {
	if application == nil {
		a, err := app.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		application = a
	}
	if requireModels {
		if err := application.LoadModels(ctx); err != nil {
			return nil, err
		}
	}
	return application, nil
}

// remoteClient returns a server client when --server is set, nil otherwise.
func remoteClient() *client.Client {
	if serverURL == "" {
		return nil
	}
	return client.New(serverURL)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx aborts the running command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("HEALTHRAG_SERVER_URL"),
		"healthrag-server base URL (default: run locally)")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(intentCmd)
	rootCmd.AddCommand(patientsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "healthrag %s\n", Version)
	},
}
