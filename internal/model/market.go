package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Instrument pairs a human readable product name with its provider ticker.
type Instrument struct {
	Name   string `yaml:"name"`
	Ticker string `yaml:"ticker"`
}

// Bar is a single OHLCV bar as returned by a provider, dated in the
// exchange's local calendar.
type Bar struct {
	Date     civil.Date
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
}

// PriceRecord is one row of the target table.
type PriceRecord struct {
	Name         string
	Ticker       string
	Date         civil.Date
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	AdjClose     decimal.Decimal
	Volume       int64
	DownloadTime time.Time
	RunID        string
	IntradayID   int
}

// RunIDFor returns the batch label for a processing date, e.g. 2024-01-07 -> "240107".
func RunIDFor(t time.Time) string {
	return t.Format("060102")
}
