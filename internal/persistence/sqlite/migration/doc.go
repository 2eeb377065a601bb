// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql") and are read from an fs.FS, usually an
// embedded directory. Applied versions are tracked in the schema_migrations
// table together with the checksum of the file that was applied, so an edited
// migration is reported instead of silently skipped.
//
// Example usage:
//
//	migrations, err := migration.Scan(files, "migrations")
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migrations, logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
