package sqlite

import (
	"context"
	"embed"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/tutor-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite backed repositories over one connection pool.
type Storage struct {
	*AvailabilityRepository
	*SessionRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Option customises Storage.
type Option func(*options)

type options struct {
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// WithIDGenerator overrides the session id source. The default is a random UUID.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithClock overrides the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Open opens the SQLite database at dsn. Call Migrate before first use.
func Open(ctx context.Context, dsn string, opts ...Option) (*Storage, error) {
	o := options{newID: uuid.NewString, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := NewConnectionPool(ctx, migration.DefaultSQLiteConfig(dsn))
	if err != nil {
		return nil, err
	}

	return &Storage{
		AvailabilityRepository: NewAvailabilityRepository(pool, o.now),
		SessionRepository:      NewSessionRepository(pool, o.newID, o.now),
		pool:                   pool,
		logger:                 o.logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := migration.Scan(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migrations, s.logger).Run(ctx)
}

// Close releases the underlying database.
func (s *Storage) Close() error {
	return s.pool.Close()
}
