package main

import (
	"context"
	"fmt"
	"log/slog"

	"CBOTLoader/internal/archive"
	"CBOTLoader/internal/collector"
	"CBOTLoader/internal/config"
	"CBOTLoader/internal/notifier"
	"CBOTLoader/internal/pipeline"
	"CBOTLoader/internal/store"
)

// buildPipeline wires the pipeline from configuration. The returned
// function closes the database.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	bootstrap, err := cfg.BootstrapDate()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	var loader pipeline.Loader = st
	if cfg.Pipeline.DryRun {
		logger.Info("dry run enabled, nothing will be written")
		loader = store.NewNoopLoader(logger)
	}

	fetcher := collector.NewYahooFetcher(cfg.Provider.BaseURL, cfg.Proxy,
		cfg.Provider.Timeout, cfg.Provider.MaxRetries, logger)
	col := collector.NewCollector(fetcher, cfg.Provider.Concurrency, logger)
	logger.Info("data source", "fetcher", fetcher.Name(), "instruments", len(cfg.Instruments))

	p := pipeline.New(pipeline.Options{
		Server:           cfg.Database.Server,
		Database:         cfg.Database.Database,
		Schema:           cfg.Database.Schema,
		Instruments:      cfg.Instruments,
		BootstrapDate:    bootstrap,
		FailOnStoreError: cfg.Pipeline.FailOnStoreError,
	}, st, loader, col, logger)

	if cfg.Archive.Dir != "" && !cfg.Pipeline.DryRun {
		p.Archive = archive.NewParquetArchive(cfg.Archive.Dir, logger)
	}
	if cfg.Telegram.BotToken != "" {
		p.Notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
	}

	return p, func() { st.Close() }, nil
}
