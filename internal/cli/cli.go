package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grapplerank/ajp-results/internal/config"
	"github.com/grapplerank/ajp-results/internal/export"
	"github.com/grapplerank/ajp-results/internal/logging"
	"github.com/grapplerank/ajp-results/internal/pipeline"
	"github.com/grapplerank/ajp-results/internal/scheduler"
	"github.com/grapplerank/ajp-results/internal/scraper"
	"github.com/grapplerank/ajp-results/internal/store"
)

var (
	flagConfig string
	flagFormat string
	flagYes    bool
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ajp-results",
		Short: "Incrementally scrape AJP Tour competition results",
		Long: `Scrapes event and match results from the AJP Tour website into a local
SQLite database. Runs are incremental: events already scraped successfully
are never fetched again, so an interrupted run can simply be re-run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file (or env: "+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newTablesCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// setup loads and validates configuration, installs the logger, and opens
// the progress store. The caller owns the returned store handle.
func setup() (*config.Config, *store.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if _, err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Database.File, cfg.Scraper.ChunkSize)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func outputFormat() (OutputFormat, error) {
	format := OutputFormat(flagFormat)
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one incremental scrape over all pending events",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			// Interrupt stops dispatching; in-flight events reach
			// their commit checkpoint before the run returns.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runID := uuid.NewString()
			fetcher := scraper.NewFetcher(cfg.FetchTimeout())
			pipe := pipeline.New(fetcher, st,
				pipeline.WithRetryBudget(cfg.Scraper.RetryBudget),
				pipeline.WithCommitRetries(cfg.Scraper.CommitRetries),
				pipeline.WithRunID(runID))
			sched := scheduler.New(st, pipe,
				cfg.Scraper.MaxWorkers, cfg.Scraper.MaxEvents, cfg.NoRetrySet(),
				scheduler.WithRunID(runID))

			summary, err := sched.Run(ctx)
			if err != nil {
				return err
			}
			return WriteSummary(cmd.OutOrStdout(), summary, format)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics from the progress store",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			_, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return WriteStats(cmd.OutOrStdout(), stats, format)
		},
	}
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Show the structure and row counts of the store tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			_, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			tables, err := st.Tables(cmd.Context())
			if err != nil {
				return err
			}
			return WriteTables(cmd.OutOrStdout(), tables, format)
		},
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Destructively clear all scraped data for a full re-scrape",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !flagYes {
				return fmt.Errorf("reset deletes all scraped data; re-run with --yes to confirm")
			}
			_, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database reset successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagYes, "yes", false, "Confirm the destructive reset")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export a consistent CSV snapshot of all scraped data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := setup()
			if err != nil {
				return err
			}
			defer st.Close()

			dir, err := export.New(st, cfg.Export.Dir).Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Data exported to: %s\n", dir)
			return nil
		},
	}
}

// Execute runs the root command and reports failures on stderr. The root
// command silences cobra's own error printing, so a failure that happens
// before the logger exists is still reported, and exactly once.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
