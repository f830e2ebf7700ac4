package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"CBOTLoader/internal/model"
)

// MockFetcher returns fixed bars per ticker for development and testing.
type MockFetcher struct {
	Bars map[string][]model.Bar
	Errs map[string]error

	mu    sync.Mutex
	calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, ticker string, _ model.DateWindow) ([]model.Bar, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ticker)
	m.mu.Unlock()
	if err := m.Errs[ticker]; err != nil {
		return nil, err
	}
	return m.Bars[ticker], nil
}

// Calls returns the tickers requested so far.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Collector fetches every instrument of a job and assembles one batch.
type Collector struct {
	Fetcher     Fetcher
	Concurrency int
	Now         func() time.Time
	log         *slog.Logger
}

// NewCollector creates a new Collector. Concurrency below 1 means one
// fetch at a time.
func NewCollector(fetcher Fetcher, concurrency int, logger *slog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		Fetcher:     fetcher,
		Concurrency: concurrency,
		Now:         time.Now,
		log:         logger.With("component", "collector", "source", fetcher.Name()),
	}
}

// Collect fetches bars for each instrument over w and returns them as one
// batch, instruments in the given order. Every row carries the same
// download time and run id; intraday ids run 1..N across the batch.
//
// A provider failure for one instrument is logged and that instrument
// contributes no rows. Only context cancellation is returned as an error.
func (c *Collector) Collect(ctx context.Context, instruments []model.Instrument, w model.DateWindow) ([]model.PriceRecord, error) {
	results := make([][]model.Bar, len(instruments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for i, inst := range instruments {
		g.Go(func() error {
			bars, err := c.Fetcher.FetchBars(gctx, inst.Ticker, w)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn("fetch failed, instrument skipped",
					"name", inst.Name, "ticker", inst.Ticker, "err", err)
				return nil
			}
			c.log.Info("fetched", "name", inst.Name, "ticker", inst.Ticker, "bars", len(bars))
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	now := c.Now()
	runID := model.RunIDFor(now)

	total := 0
	for _, bars := range results {
		total += len(bars)
	}
	rows := make([]model.PriceRecord, 0, total)
	for i, inst := range instruments {
		for _, b := range results[i] {
			rows = append(rows, model.PriceRecord{
				Name:         inst.Name,
				Ticker:       inst.Ticker,
				Date:         b.Date,
				Open:         b.Open,
				High:         b.High,
				Low:          b.Low,
				Close:        b.Close,
				AdjClose:     b.AdjClose,
				Volume:       b.Volume,
				DownloadTime: now,
				RunID:        runID,
				IntradayID:   len(rows) + 1,
			})
		}
	}

	c.log.Info("batch assembled", "instruments", len(instruments), "rows", len(rows), "run_id", runID)
	return rows, nil
}
