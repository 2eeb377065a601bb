package persistence

import (
	"context"
	"time"
)

// WindowFilter narrows availability queries. Dates are inclusive YYYY-MM-DD
// bounds; empty values leave that side open.
type WindowFilter struct {
	TutorIDs []string
	From     string
	To       string
}

// AvailabilityRepository stores tutor availability windows keyed by
// (tutor, date, slot).
type AvailabilityRepository interface {
	UpsertWindows(ctx context.Context, windows []AvailabilityWindow) error
	ListWindows(ctx context.Context, filter WindowFilter) ([]AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, tutorID, date, slotID string) error
}

// SessionFilter narrows session queries to sessions overlapping [From, To).
// Zero times leave that side open.
type SessionFilter struct {
	TutorIDs []string
	From     time.Time
	To       time.Time
}

// SessionRepository stores teaching sessions and their enrollments.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string) (Session, error)
}
