package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/tutor-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	newID  func() string
	now    func() time.Time
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool, newID func() string, now func() time.Time) *SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &SessionRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		newID:  newID,
		now:    now,
	}
}

const sessionColumns = `id, tutor_id, title, start_time, duration_minutes, max_participants, status, linked_slot_id, created_at, updated_at`

// CreateSession stores a session and its enrollments. An empty ID is
// replaced by a generated one and an empty status defaults to scheduled.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if strings.TrimSpace(session.TutorID) == "" || session.ScheduledStart.IsZero() {
		return persistence.Session{}, fmt.Errorf("%w: session requires tutor and start", persistence.ErrConstraintViolation)
	}
	if session.ID == "" && r.newID != nil {
		session.ID = r.newID()
	}
	if session.ID == "" {
		return persistence.Session{}, fmt.Errorf("%w: session id is required", persistence.ErrConstraintViolation)
	}
	if session.Status == "" {
		session.Status = "scheduled"
	}

	now := r.now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.EnrolledStudentIDs = uniqueStrings(session.EnrolledStudentIDs)
	if session.MaxParticipants > 0 && len(session.EnrolledStudentIDs) > session.MaxParticipants {
		return persistence.Session{}, fmt.Errorf("%w: %d students enrolled for %d places",
			persistence.ErrConstraintViolation, len(session.EnrolledStudentIDs), session.MaxParticipants)
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, tutor_id, title, start_unix, start_time, duration_minutes, max_participants, status, linked_slot_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID,
			session.TutorID,
			session.Title,
			session.ScheduledStart.Unix(),
			session.ScheduledStart.Format(time.RFC3339),
			session.DurationMinutes,
			session.MaxParticipants,
			session.Status,
			session.LinkedSlotID,
			session.CreatedAt.Format(time.RFC3339Nano),
			session.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		for _, student := range session.EnrolledStudentIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO session_enrollments (session_id, student_id) VALUES (?, ?)`, session.ID, student); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return cloneSession(session), nil
}

// GetSession returns the session with id.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	enrollments, err := r.loadEnrollments(ctx, []string{session.ID})
	if err != nil {
		return persistence.Session{}, err
	}
	session.EnrolledStudentIDs = enrollments[session.ID]
	return session, nil
}

// ListSessions returns sessions overlapping the filter range ordered by start
// and id.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
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
	if !filter.To.IsZero() {
		conditions = append(conditions, "start_unix < ?")
		args = append(args, filter.To.Unix())
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "start_unix + duration_minutes * 60 > ?")
		args = append(args, filter.From.Unix())
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_unix, id"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.Session, 0)
	ids := make([]string, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		sessions = append(sessions, session)
		ids = append(ids, session.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	enrollments, err := r.loadEnrollments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].EnrolledStudentIDs = enrollments[sessions[i].ID]
	}
	return sessions, nil
}

// UpdateSessionStatus sets the status of the session with id.
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, id, status string) (persistence.Session, error) {
	result, err := r.pool.DB().ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, r.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return r.GetSession(ctx, id)
}

func (r *SessionRepository) loadEnrollments(ctx context.Context, ids []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT session_id, student_id FROM session_enrollments WHERE session_id IN (`+placeholders(len(ids))+`) ORDER BY session_id, student_id`,
		args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, studentID string
		if err := rows.Scan(&sessionID, &studentID); err != nil {
			return nil, r.mapper.MapError(err)
		}
		result[sessionID] = append(result[sessionID], studentID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session                     persistence.Session
		start, createdAt, updatedAt string
	)
	if err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.Title,
		&start,
		&session.DurationMinutes,
		&session.MaxParticipants,
		&session.Status,
		&session.LinkedSlotID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, err
	}

	var err error
	if session.ScheduledStart, err = time.Parse(time.RFC3339, start); err != nil {
		return persistence.Session{}, fmt.Errorf("sqlite: session %s has malformed start %q: %w", session.ID, start, err)
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	session.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return session, nil
}

func cloneSession(session persistence.Session) persistence.Session {
	if session.EnrolledStudentIDs != nil {
		session.EnrolledStudentIDs = append([]string(nil), session.EnrolledStudentIDs...)
	}
	return session
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}
