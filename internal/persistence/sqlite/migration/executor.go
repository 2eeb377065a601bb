package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteExecutor runs migrations against a SQLite database.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor creates a new SQLite migration executor.
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewDatabaseError("", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of m and records it in one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, m Migration) (err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(m.Version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(m.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return NewDatabaseError(m.Version, fmt.Sprintf("execute statement %d", i+1), execErr)
		}
	}

	const insertSQL = `INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`
	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, insertSQL, m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds()); execErr != nil {
		return NewDatabaseError(m.Version, "record migration", execErr)
	}

	if err = tx.Commit(); err != nil {
		return NewDatabaseError(m.Version, "commit transaction", err)
	}
	return nil
}

// AppliedMigrations returns every recorded migration ordered by version.
func (e *SQLiteExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC`

	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &elapsedMs, &record.Checksum); err != nil {
			return nil, NewDatabaseError("", "scan applied migration", err)
		}
		record.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", "iterate applied migrations", err)
	}
	return applied, nil
}
