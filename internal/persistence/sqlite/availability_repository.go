package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/tutor-scheduler/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite
type AvailabilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewAvailabilityRepository creates a new SQLite availability repository
func NewAvailabilityRepository(pool *ConnectionPool, now func() time.Time) *AvailabilityRepository {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    now,
	}
}

// UpsertWindows inserts or replaces windows keyed by (tutor, date, slot). The
// batch is written atomically.
func (r *AvailabilityRepository) UpsertWindows(ctx context.Context, windows []persistence.AvailabilityWindow) error {
	if len(windows) == 0 {
		return nil
	}

	const query = `
		INSERT INTO availability_windows (tutor_id, date, slot_id, start_minute, end_minute, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tutor_id, date, slot_id) DO UPDATE SET
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`

	updatedAt := r.now().UTC().Format(time.RFC3339Nano)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, query)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, w := range windows {
				if strings.TrimSpace(w.TutorID) == "" || strings.TrimSpace(w.SlotID) == "" || strings.TrimSpace(w.Date) == "" {
					return fmt.Errorf("%w: window requires tutor, date and slot", persistence.ErrConstraintViolation)
				}
				if _, err := stmt.ExecContext(ctx, w.TutorID, w.Date, w.SlotID, w.StartMinute, w.EndMinute, w.Timezone, updatedAt); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ListWindows returns windows matching filter ordered by tutor, date, start
// and slot.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, filter persistence.WindowFilter) ([]persistence.AvailabilityWindow, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.TutorIDs) > 0 {
		conditions = append(conditions, "tutor_id IN ("+placeholders(len(filter.TutorIDs))+")")
		for _, id := range filter.TutorIDs {
			args = append(args, id)
		}
	}
	if filter.From != "" {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT tutor_id, date, slot_id, start_minute, end_minute, timezone, updated_at FROM availability_windows`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY tutor_id, date, start_minute, slot_id"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	windows := make([]persistence.AvailabilityWindow, 0)
	for rows.Next() {
		var (
			w         persistence.AvailabilityWindow
			updatedAt string
		)
		if err := rows.Scan(&w.TutorID, &w.Date, &w.SlotID, &w.StartMinute, &w.EndMinute, &w.Timezone, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		w.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return windows, nil
}

// DeleteWindow removes one window.
func (r *AvailabilityRepository) DeleteWindow(ctx context.Context, tutorID, date, slotID string) error {
	result, err := r.pool.DB().ExecContext(ctx,
		`DELETE FROM availability_windows WHERE tutor_id = ? AND date = ? AND slot_id = ?`,
		tutorID, date, slotID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
