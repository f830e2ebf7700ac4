package store

import (
	"context"
	"log/slog"

	"CBOTLoader/internal/model"
)

// NoopLoader accepts writes without touching the database. Used for dry runs.
type NoopLoader struct {
	log *slog.Logger
}

func NewNoopLoader(logger *slog.Logger) *NoopLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopLoader{log: logger.With("component", "noop_loader")}
}

func (n *NoopLoader) EnsureSchema(_ context.Context, _ model.Coordinate) error { return nil }

func (n *NoopLoader) Write(_ context.Context, rows []model.PriceRecord, c model.Coordinate, mode model.WriteMode) (int, error) {
	n.log.Info("dry run, rows not written", "table", c.String(), "rows", len(rows), "mode", mode.String())
	return len(rows), nil
}
