package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig holds SQLite connection settings.
type SQLiteConfig struct {
	// DSN is the database file path or connection string.
	DSN string

	// BusyTimeout sets how long to wait for database locks.
	BusyTimeout time.Duration

	// EnableForeignKeys enables foreign key constraint checking.
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, ...). Empty keeps the default.
	JournalMode string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the settings used by the scheduler store.
func DefaultSQLiteConfig(dsn string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               dsn,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		MaxOpenConns:      1,
	}
}

// Open opens the database described by config and applies its pragmas.
func Open(ctx context.Context, config SQLiteConfig) (*sql.DB, error) {
	if strings.TrimSpace(config.DSN) == "" {
		return nil, fmt.Errorf("invalid SQLite configuration: DSN cannot be empty")
	}

	db, err := sql.Open("sqlite", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	pragmas := []string{}
	if config.EnableForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	if config.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", config.BusyTimeout.Milliseconds()))
	}
	if config.JournalMode != "" && !strings.Contains(config.DSN, ":memory:") {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA journal_mode = %s", config.JournalMode))
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}
