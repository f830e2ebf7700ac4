package collector

import (
	"context"

	"CBOTLoader/internal/model"
)

// Fetcher downloads bars for one ticker over a window.
type Fetcher interface {
	// FetchBars returns the bars the provider has for ticker in w, oldest
	// first. No data in range is an empty slice, not an error.
	FetchBars(ctx context.Context, ticker string, w model.DateWindow) ([]model.Bar, error)
	Name() string
}
