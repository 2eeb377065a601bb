package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/tutor-scheduler/internal/persistence"
	"github.com/example/tutor-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database.
type SQLiteHarness struct {
	Availability persistence.AvailabilityRepository
	Sessions     persistence.SessionRepository
	Storage      *sqlite.Storage
	Clock        *Clock
	IDs          *IDGenerator

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	clock := NewClock(ReferenceTime())
	ids := NewIDGenerator("")
	path := filepath.Join(tb.TempDir(), "scheduler.db")

	storage, err := sqlite.Open(context.Background(), path,
		sqlite.WithClock(clock.NowFunc()),
		sqlite.WithIDGenerator(ids.NextFunc()),
		sqlite.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Availability: storage,
		Sessions:     storage,
		Storage:      storage,
		Clock:        clock,
		IDs:          ids,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
