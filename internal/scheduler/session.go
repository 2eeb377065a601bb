package scheduler

import (
	"fmt"
	"time"
)

// SessionStatus tracks the lifecycle of a teaching session.
type SessionStatus string

const (
	// StatusScheduled is a booked session that has not started.
	StatusScheduled SessionStatus = "scheduled"
	// StatusActive is a session in progress.
	StatusActive SessionStatus = "active"
	// StatusCompleted is a finished session.
	StatusCompleted SessionStatus = "completed"
	// StatusCancelled is a cancelled session. It occupies no time.
	StatusCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Session is a scheduled or proposed teaching session.
type Session struct {
	ID                       string        `json:"id,omitempty"`
	TutorID                  string        `json:"tutorId"`
	Title                    string        `json:"title,omitempty"`
	ScheduledStart           time.Time     `json:"scheduledStart"`
	DurationMinutes          int           `json:"durationMinutes"`
	MaxParticipants          int           `json:"maxParticipants,omitempty"`
	EnrolledStudentIDs       []string      `json:"enrolledStudentIds,omitempty"`
	Status                   SessionStatus `json:"status"`
	LinkedAvailabilitySlotID string        `json:"linkedAvailabilitySlotId,omitempty"`
}

// End returns the instant the session finishes.
func (s Session) End() time.Time {
	return s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Interval returns the session's [start, end) range.
func (s Session) Interval() Range {
	return Range{Start: s.ScheduledStart, End: s.End()}
}

// Cancelled reports whether the session has been cancelled.
func (s Session) Cancelled() bool {
	return s.Status == StatusCancelled
}

// Ref returns the session id, or a stable placeholder for sessions that have
// not been persisted yet.
func (s Session) Ref() string {
	if s.ID != "" {
		return s.ID
	}
	return "unsaved:" + s.TutorID + "@" + s.ScheduledStart.UTC().Format(time.RFC3339)
}

// ValidateEnrollment checks that the distinct enrolled students fit within
// MaxParticipants. A zero limit admits any number.
func (s Session) ValidateEnrollment() error {
	if s.MaxParticipants <= 0 {
		return nil
	}
	distinct := make(map[string]struct{}, len(s.EnrolledStudentIDs))
	for _, id := range s.EnrolledStudentIDs {
		distinct[id] = struct{}{}
	}
	if len(distinct) > s.MaxParticipants {
		return fmt.Errorf("%w: %d students for %d places", ErrOverEnrolled, len(distinct), s.MaxParticipants)
	}
	return nil
}

// SessionSummary is the subset of a session carried in conflict details.
type SessionSummary struct {
	ID              string        `json:"id"`
	TutorID         string        `json:"tutorId"`
	Title           string        `json:"title,omitempty"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	DurationMinutes int           `json:"durationMinutes"`
	Status          SessionStatus `json:"status"`
}

// Summarize returns the summary form of s.
func Summarize(s Session) SessionSummary {
	return SessionSummary{
		ID:              s.Ref(),
		TutorID:         s.TutorID,
		Title:           s.Title,
		Start:           s.ScheduledStart,
		End:             s.End(),
		DurationMinutes: s.DurationMinutes,
		Status:          s.Status,
	}
}
