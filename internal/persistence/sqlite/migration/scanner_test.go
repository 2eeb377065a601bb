package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders migrations by numeric version", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON a(id);")},
			"migrations/002_second_table.sql":   {Data: []byte("CREATE TABLE b (id TEXT);")},
			"migrations/001_initial_schema.sql": {Data: []byte("-- initial\nCREATE TABLE a (id TEXT);")},
			"migrations/README.md":              {Data: []byte("ignored")},
		}

		migrations, err := Scan(fsys, "migrations")
		if err != nil {
			t.Fatalf("Scan returned error: %v", err)
		}
		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}
		got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
		want := []string{"001", "002", "010"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("unexpected order: %v", got)
			}
		}
		if migrations[0].Description != "initial schema" {
			t.Fatalf("unexpected description: %q", migrations[0].Description)
		}
		if len(migrations[0].Checksum) != 64 {
			t.Fatalf("expected hex sha256 checksum, got %q", migrations[0].Checksum)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			"m/1_b.sql":   {Data: []byte("CREATE TABLE b (id TEXT);")},
		}
		_, err := Scan(fsys, "m")
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects malformed file names", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/initial.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		}
		_, err := Scan(fsys, "m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
		var migrationErr *MigrationError
		if !errors.As(err, &migrationErr) || migrationErr.Operation != "validate filename" {
			t.Fatalf("expected MigrationError for filename validation, got %#v", err)
		}
	})

	t.Run("rejects comment-only files", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/001_empty.sql": {Data: []byte("-- nothing here\n")},
		}
		if _, err := Scan(fsys, "m"); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := splitStatements("-- header\nCREATE TABLE a (id TEXT);\n\n-- note\nCREATE TABLE b (\n  id TEXT\n);\n")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE TABLE b (\nid TEXT\n)" {
		t.Fatalf("unexpected statement: %q", statements[1])
	}
}
