package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/tutor-scheduler/internal/persistence"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

var (
	windowCounter  uint64
	sessionCounter uint64
)

// Monday 2025-01-13 08:00 UTC.
var referenceTime = time.Date(2025, time.January, 13, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar date of ReferenceTime shifted by days.
func ReferenceDate(days int) scheduler.Date {
	return scheduler.DateOf(referenceTime).AddDays(days)
}

// ----------------------------- Window fixtures -----------------------------

// WindowFixture represents a deterministic availability window that can be
// materialised for engine or persistence tests.
type WindowFixture struct {
	TutorID  string
	Date     scheduler.Date
	SlotID   string
	Start    scheduler.ClockTime
	End      scheduler.ClockTime
	Timezone string
}

// WindowOption configures the generated window fixture.
type WindowOption func(*WindowFixture)

// NewWindowFixture returns a one hour window on the Wednesday after
// ReferenceTime with optional overrides.
func NewWindowFixture(opts ...WindowOption) WindowFixture {
	idx := atomic.AddUint64(&windowCounter, 1)
	fixture := WindowFixture{
		TutorID: "tutor-1",
		Date:    ReferenceDate(2),
		SlotID:  fmt.Sprintf("slot-%03d", idx),
		Start:   scheduler.Clock(9, 0),
		End:     scheduler.Clock(10, 0),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWindowTutor overrides the tutor.
func WithWindowTutor(tutorID string) WindowOption {
	return func(f *WindowFixture) { f.TutorID = tutorID }
}

// WithWindowSlot overrides the date and slot id.
func WithWindowSlot(date scheduler.Date, slotID string) WindowOption {
	return func(f *WindowFixture) {
		f.Date = date
		f.SlotID = slotID
	}
}

// WithWindowTimes sets the wall-clock bounds from hour values.
func WithWindowTimes(startHour, endHour int) WindowOption {
	return func(f *WindowFixture) {
		f.Start = scheduler.Clock(startHour, 0)
		f.End = scheduler.Clock(endHour, 0)
	}
}

// WithWindowTimezone sets the IANA zone of the window.
func WithWindowTimezone(tz string) WindowOption {
	return func(f *WindowFixture) { f.Timezone = tz }
}

// Domain converts the fixture into the engine representation.
func (f WindowFixture) Domain() scheduler.AvailabilityWindow {
	return scheduler.AvailabilityWindow{
		TutorID:   f.TutorID,
		Date:      f.Date,
		SlotID:    f.SlotID,
		StartTime: f.Start,
		EndTime:   f.End,
		Timezone:  f.Timezone,
	}
}

// Persistence converts the fixture into the stored representation.
func (f WindowFixture) Persistence() persistence.AvailabilityWindow {
	return persistence.AvailabilityWindow{
		TutorID:     f.TutorID,
		Date:        f.Date.String(),
		SlotID:      f.SlotID,
		StartMinute: int(f.Start),
		EndMinute:   int(f.End),
		Timezone:    f.Timezone,
	}
}

// ----------------------------- Session fixtures -----------------------------

// SessionFixture represents a deterministic teaching session.
type SessionFixture struct {
	ID              string
	TutorID         string
	Title           string
	Start           time.Time
	DurationMinutes int
	MaxParticipants int
	Status          scheduler.SessionStatus
	LinkedSlotID    string
	StudentIDs      []string
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a scheduled one hour session starting at 09:00 UTC
// on the Wednesday after ReferenceTime with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:              fmt.Sprintf("session-%03d", idx),
		TutorID:         "tutor-1",
		Title:           fmt.Sprintf("Session %03d", idx),
		Start:           ReferenceDate(2).At(scheduler.Clock(9, 0), time.UTC),
		DurationMinutes: 60,
		MaxParticipants: 1,
		Status:          scheduler.StatusScheduled,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session id. An empty id makes the session unsaved.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) { f.ID = id }
}

// WithSessionTutor overrides the tutor.
func WithSessionTutor(tutorID string) SessionOption {
	return func(f *SessionFixture) { f.TutorID = tutorID }
}

// WithSessionStart overrides the start instant.
func WithSessionStart(start time.Time) SessionOption {
	return func(f *SessionFixture) { f.Start = start }
}

// WithSessionDuration overrides the length in minutes.
func WithSessionDuration(minutes int) SessionOption {
	return func(f *SessionFixture) { f.DurationMinutes = minutes }
}

// WithSessionStatus overrides the lifecycle status.
func WithSessionStatus(status scheduler.SessionStatus) SessionOption {
	return func(f *SessionFixture) { f.Status = status }
}

// WithSessionLinkedSlot links the session to an availability window.
func WithSessionLinkedSlot(key scheduler.SlotKey) SessionOption {
	return func(f *SessionFixture) { f.LinkedSlotID = key.String() }
}

// WithSessionStudents sets the enrolled students.
func WithSessionStudents(ids ...string) SessionOption {
	return func(f *SessionFixture) { f.StudentIDs = append([]string(nil), ids...) }
}

// Domain converts the fixture into the engine representation.
func (f SessionFixture) Domain() scheduler.Session {
	return scheduler.Session{
		ID:                       f.ID,
		TutorID:                  f.TutorID,
		Title:                    f.Title,
		ScheduledStart:           f.Start,
		DurationMinutes:          f.DurationMinutes,
		MaxParticipants:          f.MaxParticipants,
		EnrolledStudentIDs:       append([]string(nil), f.StudentIDs...),
		Status:                   f.Status,
		LinkedAvailabilitySlotID: f.LinkedSlotID,
	}
}

// Persistence converts the fixture into the stored representation.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:                 f.ID,
		TutorID:            f.TutorID,
		Title:              f.Title,
		ScheduledStart:     f.Start,
		DurationMinutes:    f.DurationMinutes,
		MaxParticipants:    f.MaxParticipants,
		Status:             string(f.Status),
		LinkedSlotID:       f.LinkedSlotID,
		EnrolledStudentIDs: append([]string(nil), f.StudentIDs...),
	}
}
