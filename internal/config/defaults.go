package config

import (
	"time"

	"CBOTLoader/internal/model"
)

// Supported database drivers.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
)

// Default values for optional configuration fields.
const (
	DefaultDriver        = DriverSQLite
	DefaultSQLitePath    = "data/cbot_prices.db"
	DefaultServer        = "FRED"
	DefaultDatabase      = "Raw"
	DefaultSchema        = "CBOT"
	DefaultProviderURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultConcurrency   = 1
	DefaultBootstrapDate = "2000-01-01"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 30
)

// DefaultInstruments is the product list loaded when the config names none.
func DefaultInstruments() []model.Instrument {
	return []model.Instrument{
		{Name: "Soybean Meal", Ticker: "ZS=F"},
		{Name: "Corn", Ticker: "ZC=F"},
		{Name: "Soybean Oil", Ticker: "ZL=F"},
		{Name: "Lean Hogs", Ticker: "HE=F"},
		{Name: "Live Cattle", Ticker: "LE=F"},
		{Name: "Cocoa", Ticker: "CC=F"},
		{Name: "Coffee", Ticker: "KC=F"},
		{Name: "Cotton", Ticker: "CT=F"},
		{Name: "Orange Juice", Ticker: "OJ=F"},
		{Name: "Sugar", Ticker: "SB=F"},
	}
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = DefaultSQLitePath
	}
	if c.Database.Server == "" {
		c.Database.Server = DefaultServer
	}
	if c.Database.Database == "" {
		c.Database.Database = DefaultDatabase
	}
	if c.Database.Schema == "" {
		c.Database.Schema = DefaultSchema
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case DriverPostgres:
			c.Database.Port = 5432
		case DriverSQLServer:
			c.Database.Port = 1433
		}
	}

	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderURL
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultTimeout
	}
	if c.Provider.Concurrency == 0 {
		c.Provider.Concurrency = DefaultConcurrency
	}

	if len(c.Instruments) == 0 {
		c.Instruments = DefaultInstruments()
	}

	if c.Pipeline.BootstrapDate == "" {
		c.Pipeline.BootstrapDate = DefaultBootstrapDate
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}
