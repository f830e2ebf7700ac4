package main

import (
	"errors"

	"github.com/spf13/cobra"

	"CBOTLoader/internal/scheduler"
)

var runOnStart bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured cron jobs until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobs, err := scheduler.JobsFromConfig(cfg.Schedule.Jobs)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return errors.New("no schedule.jobs configured")
		}

		ctx := cmd.Context()
		p, closeStore, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		sched := scheduler.NewScheduler(ctx, p, logger)
		if err := sched.RegisterAll(jobs); err != nil {
			return err
		}
		if runOnStart {
			logger.Info("run-on-start enabled, executing jobs now")
			for _, job := range jobs {
				sched.RunNow(job)
			}
		}

		sched.Start()
		defer sched.Stop()

		logger.Info("cbotloader is running, press Ctrl+C to stop")
		<-ctx.Done()
		logger.Info("shutdown signal received, stopping")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run every job once at startup")
	rootCmd.AddCommand(scheduleCmd)
}
