package migration

import "time"

// Migration is one versioned SQL file.
type Migration struct {
	Version     string // numeric version, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // hex sha256 of SQL
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status describes the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
