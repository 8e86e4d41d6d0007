package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shivortex/lead-scraper/internal/ingest"
)

var (
	ingestSeeds string
	ingestEvery time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the collectors named in a seeds file and store their listings",
	Long: "Loads a YAML seeds file, runs each seed through its collector, and upserts the normalized " +
		"listings. Unreachable sources are reported and skipped; a store failure aborts with a non-zero exit. " +
		"With --every the run repeats on that interval until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runner := &ingestRunner{
			store:     st,
			registry:  buildRegistry(),
			seedsPath: seedsPath(ingestSeeds),
			lockPath:  cfg.Ingest.LockFile,
		}

		if ingestEvery > 0 {
			return ingest.Every(ctx, ingestEvery, func(ctx context.Context) error {
				_, err := runner.run(ctx)
				return err
			})
		}

		report, err := runner.run(ctx)
		if report != nil {
			fmt.Fprint(cmd.OutOrStdout(), report.Format())
		}
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		return nil
	},
}

// seedsPath prefers the flag over the configured seeds file.
func seedsPath(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Ingest.SeedsFile
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSeeds, "seeds", "", "seeds file (default from config ingest.seeds_file)")
	ingestCmd.Flags().DurationVar(&ingestEvery, "every", 0, "repeat the run on this interval (e.g. 6h); 0 runs once")
	rootCmd.AddCommand(ingestCmd)
}
