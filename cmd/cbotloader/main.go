package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"CBOTLoader/internal/config"
	"CBOTLoader/internal/logging"
)

var (
	cfgPath  string
	dryRun   bool
	cfg      *config.Config
	logger   *slog.Logger
	logClose io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "cbotloader",
	Short:         "Incremental loader for CBOT futures prices",
	Long:          "Fetches daily or weekly futures bars from Yahoo Finance and appends the dates missing from the price tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dryRun {
			cfg.Pipeline.DryRun = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		logger, logClose, err = logging.New(cfg.Logging, os.Stdout)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "fetch and reconcile but write nothing")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if logClose != nil {
		logClose.Close()
	}
	if err != nil {
		if logger != nil {
			logger.Error("cbotloader failed", "err", err)
		} else {
			fmt.Fprintln(os.Stderr, "cbotloader:", err)
		}
		os.Exit(1)
	}
}
