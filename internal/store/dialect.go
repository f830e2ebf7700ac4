package store

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"CBOTLoader/internal/config"
)

// dialect holds the SQL that differs between the supported targets.
type dialect interface {
	name() string
	driverName() string
	placeholder(n int) string
	quote(ident string) string
	// table returns the qualified, quoted table reference.
	table(schema, table string) string
	// tableExists returns a parameterized catalog query counting matching tables.
	tableExists(schema, table string) (string, []any)
	// createSchema returns the statement creating schema, or "" when the
	// target has no schemas.
	createSchema(schema string) string
	createTable(schema, table string) string
	dateValue(d civil.Date) any
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverSQLite:
		return sqliteDialect{}, nil
	case config.DriverPostgres:
		return postgresDialect{}, nil
	case config.DriverSQLServer:
		return sqlserverDialect{}, nil
	}
	return nil, fmt.Errorf("store: unsupported driver %q", driver)
}

type column struct {
	name string
	kind string
}

// columnsFor lists the price table layout in insert order. kinds are
// indexed sqlite, postgres, sqlserver.
func columnsFor(i int) []column {
	spec := [][4]string{
		{"Date", "TEXT NOT NULL", "DATE NOT NULL", "DATE NOT NULL"},
		{"Open", "REAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
		{"High", "REAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
		{"Low", "REAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
		{"Close", "REAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
		{"Adj_Close", "REAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
		{"Volume", "INTEGER", "BIGINT", "BIGINT"},
		{"Download_time", "TEXT", "TIMESTAMPTZ", "DATETIME2"},
		{"RunId", "TEXT", "VARCHAR(6)", "VARCHAR(6)"},
		{"Ticker", "TEXT", "VARCHAR(16)", "VARCHAR(16)"},
		{"Name", "TEXT", "VARCHAR(64)", "NVARCHAR(64)"},
		{"Intraday_Id", "INTEGER", "INTEGER", "INT"},
	}
	cols := make([]column, len(spec))
	for j, s := range spec {
		cols[j] = column{name: s[0], kind: s[i+1]}
	}
	return cols
}

func columnDefs(d dialect, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = d.quote(c.name) + " " + c.kind
	}
	return strings.Join(defs, ",\n\t")
}

// SQLite has no schemas; the coordinate's schema is ignored.
type sqliteDialect struct{}

func (sqliteDialect) name() string { return config.DriverSQLite }
func (sqliteDialect) driverName() string { return "sqlite" }
func (sqliteDialect) placeholder(int) string { return "?" }
func (sqliteDialect) quote(ident string) string { return `"` + ident + `"` }
func (d sqliteDialect) table(_, table string) string {
	return d.quote(table)
}
func (sqliteDialect) tableExists(_, table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}
func (sqliteDialect) createSchema(string) string { return "" }
func (d sqliteDialect) createTable(schema, table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.table(schema, table), columnDefs(d, columnsFor(0)))
}
func (sqliteDialect) dateValue(d civil.Date) any { return d.String() }

type postgresDialect struct{}

func (postgresDialect) name() string { return config.DriverPostgres }
func (postgresDialect) driverName() string { return "pgx" }
func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) quote(ident string) string { return `"` + ident + `"` }
func (d postgresDialect) table(schema, table string) string {
	return d.quote(schema) + "." + d.quote(table)
}
func (postgresDialect) tableExists(schema, table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2`,
		[]any{schema, table}
}
func (d postgresDialect) createSchema(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.quote(schema)
}
func (d postgresDialect) createTable(schema, table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.table(schema, table), columnDefs(d, columnsFor(1)))
}
func (postgresDialect) dateValue(d civil.Date) any { return d.In(time.UTC) }

type sqlserverDialect struct{}

func (sqlserverDialect) name() string { return config.DriverSQLServer }
func (sqlserverDialect) driverName() string { return "sqlserver" }
func (sqlserverDialect) placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (sqlserverDialect) quote(ident string) string { return "[" + ident + "]" }
func (d sqlserverDialect) table(schema, table string) string {
	return d.quote(schema) + "." + d.quote(table)
}
func (sqlserverDialect) tableExists(schema, table string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`,
		[]any{schema, table}
}
func (d sqlserverDialect) createSchema(schema string) string {
	// CREATE SCHEMA must be the only statement in its batch.
	return fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.schemas WHERE name = N'%s') EXEC('CREATE SCHEMA %s')",
		schema, d.quote(schema))
}
func (d sqlserverDialect) createTable(schema, table string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (\n\t%s\n)",
		d.table(schema, table), d.table(schema, table), columnDefs(d, columnsFor(2)))
}
func (sqlserverDialect) dateValue(d civil.Date) any { return d.In(time.UTC) }
