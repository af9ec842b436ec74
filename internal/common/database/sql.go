// internal/common/database/sql.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hajj-assistant/internal/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLClient wraps a database/sql handle together with the driver it speaks.
type SQLClient struct {
	DB     *sql.DB
	Driver string
}

// OpenReadOnly opens the agency registry with a handle that refuses writes
// at the driver level.
func OpenReadOnly(cfg config.DatabaseConfig) (*SQLClient, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(cfg.Postgres, cfg.Postgres.GetReadOnlyDSN())
	case config.DriverSQLite:
		return openSQLite(cfg.SQLite.GetReadOnlyDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenWriter opens a writable handle. Only the complaints sink uses it.
func OpenWriter(cfg config.DatabaseConfig) (*SQLClient, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(cfg.Postgres, cfg.Postgres.GetDSN())
	case config.DriverSQLite:
		client, err := openSQLite(cfg.SQLite.GetDSN())
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		client.DB.SetMaxOpenConns(1)
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(cfg config.PostgresConfig, dsn string) (*SQLClient, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Driver: config.DriverPostgres}, nil
}

func openSQLite(dsn string) (*SQLClient, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Driver: config.DriverSQLite}, nil
}

// Ping tests the database connection
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
