package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"CBOTLoader/internal/model"
)

// Config holds all application configuration. It is built once at startup
// and handed to constructors; nothing reads the environment after Load.
type Config struct {
	Database    DatabaseConfig     `yaml:"database"`
	Provider    ProviderConfig     `yaml:"provider"`
	Instruments []model.Instrument `yaml:"instruments"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
	Logging     LoggingConfig      `yaml:"logging"`
	Archive     ArchiveConfig      `yaml:"archive"`
	Telegram    TelegramConfig     `yaml:"telegram"`
	Schedule    ScheduleConfig     `yaml:"schedule"`
	Proxy       string             `yaml:"proxy"`
}

// DatabaseConfig locates the target table. Driver is one of sqlite,
// postgres or sqlserver.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Trusted uses integrated (OS) authentication instead of user/password.
	Trusted bool   `yaml:"trusted"`
	Path    string `yaml:"path"`
	SSLMode string `yaml:"ssl_mode"`
}

// ProviderConfig tunes the market-data HTTP client.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Concurrency int           `yaml:"concurrency"`
}

// PipelineConfig controls orchestration policy.
type PipelineConfig struct {
	// BootstrapDate is the "beginning of history" start date. A run starting
	// on it replaces the table instead of appending.
	BootstrapDate    string `yaml:"bootstrap_date"`
	FailOnStoreError bool   `yaml:"fail_on_store_error"`
	DryRun           bool   `yaml:"dry_run"`
}

// LoggingConfig configures the slog handler and optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ArchiveConfig enables a Parquet copy of every loaded batch.
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

// TelegramConfig enables run summaries over the Telegram Bot API.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// ScheduleConfig lists the jobs run by the schedule command.
type ScheduleConfig struct {
	Jobs []ScheduleJob `yaml:"jobs"`
}

// ScheduleJob runs a frequency over the trailing LookbackDays on a cron spec.
type ScheduleJob struct {
	Cron         string `yaml:"cron"`
	Frequency    string `yaml:"frequency"`
	LookbackDays int    `yaml:"lookback_days"`
}

// Load reads .env and the YAML file at path, then applies environment
// variable overrides and defaults. A missing file of either kind is not an
// error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Preset before decoding so an explicit max_retries: 0 survives.
	cfg := &Config{Provider: ProviderConfig{MaxRetries: DefaultMaxRetries}}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_SERVER"); v != "" {
		cfg.Database.Server = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_DATABASE"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("DB_SCHEMA"); v != "" {
		cfg.Database.Schema = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_TRUSTED"); v != "" {
		if trusted, err := strconv.ParseBool(v); err == nil {
			cfg.Database.Trusted = trusted
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
	}
	if v := os.Getenv("BOOTSTRAP_DATE"); v != "" {
		cfg.Pipeline.BootstrapDate = v
	}
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	db := c.Database
	switch db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres, DriverSQLServer:
		if db.Server == "" {
			return fmt.Errorf("database.server is required for %s", db.Driver)
		}
		if db.Database == "" {
			return fmt.Errorf("database.database is required for %s", db.Driver)
		}
		if !db.Trusted && db.User == "" {
			return errors.New("database.user is required unless database.trusted is set")
		}
		if db.Trusted && db.Driver == DriverPostgres {
			return errors.New("database.trusted is only supported for sqlserver")
		}
	default:
		return fmt.Errorf("database.driver must be one of sqlite, postgres, sqlserver, got %q", db.Driver)
	}
	if !ValidIdentifier(db.Schema) {
		return fmt.Errorf("database.schema %q is not a valid identifier", db.Schema)
	}

	if len(c.Instruments) == 0 {
		return errors.New("at least one instrument is required")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if strings.TrimSpace(inst.Name) == "" || strings.TrimSpace(inst.Ticker) == "" {
			return fmt.Errorf("instruments[%d]: name and ticker are required", i)
		}
		if _, dup := seen[inst.Ticker]; dup {
			return fmt.Errorf("instruments[%d]: duplicate ticker %q", i, inst.Ticker)
		}
		seen[inst.Ticker] = struct{}{}
	}

	if c.Provider.Concurrency < 1 {
		return errors.New("provider.concurrency must be >= 1")
	}
	if c.Provider.MaxRetries < 0 {
		return errors.New("provider.max_retries must be >= 0")
	}

	if _, err := c.BootstrapDate(); err != nil {
		return err
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}

	for i, job := range c.Schedule.Jobs {
		if job.Cron == "" {
			return fmt.Errorf("schedule.jobs[%d].cron is required", i)
		}
		if _, err := model.ParseFrequency(job.Frequency); err != nil {
			return fmt.Errorf("schedule.jobs[%d]: %w", i, err)
		}
		if job.LookbackDays < 0 {
			return fmt.Errorf("schedule.jobs[%d].lookback_days must be >= 0", i)
		}
	}
	return nil
}

// BootstrapDate parses Pipeline.BootstrapDate.
func (c *Config) BootstrapDate() (civil.Date, error) {
	d, err := civil.ParseDate(c.Pipeline.BootstrapDate)
	if err != nil {
		return civil.Date{}, fmt.Errorf("pipeline.bootstrap_date %q: %w", c.Pipeline.BootstrapDate, err)
	}
	return d, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// ValidIdentifier reports whether s is safe to splice into SQL as a schema
// or table name.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}
