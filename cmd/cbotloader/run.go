package main

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"CBOTLoader/internal/logging"
	"CBOTLoader/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [start_date] [end_date] frequency",
	Short: "Load missing dates for one window",
	Long: `Load the dates missing from the price table for one window.

  cbotloader run 2024-01-01 2024-01-31 d   range
  cbotloader run 2024-01-05 w              single date
  cbotloader run d                         today

Dates are YYYY-MM-DD; frequency is d (daily) or w (weekly), any case.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, runID := logging.WithRun(logger)
		log.Info("process starts", "args", args)

		w, err := pipeline.ParseArgs(args, civil.DateOf(time.Now()))
		if err != nil {
			return err
		}
		log.Info("parameters validated", "start", w.Start.String(), "end", w.End.String(), "frequency", w.Frequency.String())

		ctx := pipeline.WithRunID(cmd.Context(), runID)
		p, closeStore, err := buildPipeline(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()

		_, err = p.Run(ctx, w)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
