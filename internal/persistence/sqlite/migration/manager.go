package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Executor is the database side of the migration process.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, m Migration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

// Manager applies a fixed set of migrations in version order.
type Manager struct {
	executor   Executor
	migrations []Migration
	logger     *slog.Logger
}

// NewManager creates a Manager for migrations as returned by Scan.
func NewManager(executor Executor, migrations []Migration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor:   executor,
		migrations: migrations,
		logger:     logger.With("component", "migration"),
	}
}

// Run applies every pending migration. Already applied versions are checked
// against their recorded checksum and skipped.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.Info("schema version", "current", status.CurrentVersion, "pending", len(status.Pending))

	for _, migration := range status.Pending {
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.Error("migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute", fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.Info("migration applied", "version", migration.Version, "description", migration.Description)
	}
	return nil
}

// Status reports applied and pending migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[int]string, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		number, _ := strconv.Atoi(a.Version)
		checksums[number] = a.Checksum
		status.CurrentVersion = a.Version
	}

	for _, migration := range m.migrations {
		number, _ := strconv.Atoi(migration.Version)
		recorded, ok := checksums[number]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if recorded != "" && recorded != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
