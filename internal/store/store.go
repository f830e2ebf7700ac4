package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/civil"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"CBOTLoader/internal/config"
	"CBOTLoader/internal/model"
)

// ErrInvalidCoordinate is returned when a coordinate names a schema or
// table that may not be interpolated into SQL.
var ErrInvalidCoordinate = errors.New("invalid table coordinate")

// Status tags the outcome of an existing-dates query.
type Status int

const (
	Found Status = iota
	NotFound
	QueryFailed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "query_failed"
	}
}

// ExistingResult is the answer to "which dates are already stored".
// Dates is set only for Found, Err only for QueryFailed.
type ExistingResult struct {
	Status Status
	Dates  []civil.Date
	Err    error
}

// Set returns the stored dates as a set; empty unless Found.
func (r ExistingResult) Set() model.DateSet {
	return model.NewDateSet(r.Dates...)
}

// SQLStore reads and writes the price tables of one database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	mu      sync.Mutex
	log     *slog.Logger
}

// Open connects to the database described by cfg and verifies the
// connection. For sqlite the parent directory is created and WAL mode is
// enabled.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*SQLStore, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildConnString(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", d.name(), err)
	}
	if cfg.Driver == config.DriverSQLite {
		// A single connection keeps writes serialized.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{db: db, dialect: d, log: logger.With("component", "store", "driver", d.name())}
	s.log.Info("database opened", "server", cfg.Server, "database", cfg.Database)
	return s, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	s.log.Info("closing database")
	return s.db.Close()
}

func checkCoordinate(c model.Coordinate) error {
	if c.Table != model.Daily.TableName() && c.Table != model.Weekly.TableName() {
		return fmt.Errorf("%w: unknown table %q", ErrInvalidCoordinate, c.Table)
	}
	if !config.ValidIdentifier(c.Schema) {
		return fmt.Errorf("%w: schema %q", ErrInvalidCoordinate, c.Schema)
	}
	return nil
}

func (s *SQLStore) tableExists(ctx context.Context, c model.Coordinate) (bool, error) {
	q, args := s.dialect.tableExists(c.Schema, c.Table)
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExistingDates returns the distinct dates stored in the coordinate's
// table, ascending. A missing schema or table is NotFound; any other
// failure is QueryFailed.
func (s *SQLStore) ExistingDates(ctx context.Context, c model.Coordinate) ExistingResult {
	if err := checkCoordinate(c); err != nil {
		return ExistingResult{Status: QueryFailed, Err: err}
	}

	exists, err := s.tableExists(ctx, c)
	if err != nil {
		return ExistingResult{Status: QueryFailed, Err: fmt.Errorf("check table %s: %w", c, err)}
	}
	if !exists {
		s.log.Info("table not found", "table", c.String())
		return ExistingResult{Status: NotFound}
	}

	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s",
		s.dialect.quote("Date"), s.dialect.table(c.Schema, c.Table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return ExistingResult{Status: QueryFailed, Err: fmt.Errorf("query dates %s: %w", c, err)}
	}
	defer rows.Close()

	seen := make(model.DateSet)
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return ExistingResult{Status: QueryFailed, Err: fmt.Errorf("scan date: %w", err)}
		}
		if raw == nil {
			continue
		}
		d, err := model.NormalizeDate(raw)
		if err != nil {
			return ExistingResult{Status: QueryFailed, Err: err}
		}
		seen[d] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return ExistingResult{Status: QueryFailed, Err: fmt.Errorf("read dates: %w", err)}
	}

	dates := make([]civil.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return ExistingResult{Status: Found, Dates: dates}
}

// EnsureSchema creates the coordinate's schema if it does not exist.
// It is a no-op for sqlite.
func (s *SQLStore) EnsureSchema(ctx context.Context, c model.Coordinate) error {
	if err := checkCoordinate(c); err != nil {
		return err
	}
	stmt := s.dialect.createSchema(c.Schema)
	if stmt == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create schema %s: %w", c.Schema, err)
	}
	return nil
}

// Write creates the table if needed and inserts rows in one transaction.
// Replace deletes every existing row first, inside the same transaction.
// It returns the number of rows written.
func (s *SQLStore) Write(ctx context.Context, rows []model.PriceRecord, c model.Coordinate, mode model.WriteMode) (int, error) {
	if err := checkCoordinate(c); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.dialect.createTable(c.Schema, c.Table)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", c, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	table := s.dialect.table(c.Schema, c.Table)
	if mode == model.Replace {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return 0, fmt.Errorf("clear %s: %w", c, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			s.log.Info("table cleared for replace", "table", c.String(), "rows", n)
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.insertStatement(table))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			s.dialect.dateValue(r.Date),
			r.Open, r.High, r.Low, r.Close, r.AdjClose,
			r.Volume, r.DownloadTime.UTC(), r.RunID, r.Ticker, r.Name, r.IntradayID,
		); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", r.Ticker, r.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("rows written", "table", c.String(), "rows", len(rows), "mode", mode.String())
	return len(rows), nil
}

func (s *SQLStore) insertStatement(table string) string {
	cols := columnsFor(0)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		names[i] = s.dialect.quote(col.name)
		marks[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", "))
}
