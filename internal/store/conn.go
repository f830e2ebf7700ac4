package store

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"CBOTLoader/internal/config"
)

// BuildConnString returns the database/sql DSN for cfg. Passwords are
// escaped so special characters survive. Trusted sqlserver connections
// carry no credentials and fall back to integrated authentication.
func BuildConnString(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("store: sqlite path is empty")
		}
		return cfg.Path, nil

	case config.DriverPostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "prefer"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort(cfg),
			Path:     "/" + cfg.Database,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String(), nil

	case config.DriverSQLServer:
		q := url.Values{}
		q.Set("database", cfg.Database)
		q.Set("app name", "cbotloader")
		u := url.URL{
			Scheme:   "sqlserver",
			Host:     hostPort(cfg),
			RawQuery: q.Encode(),
		}
		if !cfg.Trusted {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("store: unsupported driver %q", cfg.Driver)
}

func hostPort(cfg config.DatabaseConfig) string {
	if cfg.Port == 0 {
		return cfg.Server
	}
	return net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
}
