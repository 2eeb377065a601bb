package application

import (
	"fmt"
	"time"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

// AvailabilityQuery narrows the windows fetched from the availability collaborator.
// An empty TutorIDs slice means every tutor.
type AvailabilityQuery struct {
	TutorIDs []string
	From     scheduler.Date
	To       scheduler.Date
}

// SessionQuery selects sessions whose [start, end) overlaps [From, To).
type SessionQuery struct {
	TutorIDs []string
	From     time.Time
	To       time.Time
}

// AvailableSlotsParams requests the bookable windows in a date range.
type AvailableSlotsParams struct {
	TutorIDs []string
	From     scheduler.Date
	To       scheduler.Date
	// DurationMinutes overrides the configured session length when positive.
	DurationMinutes int
}

// CreateSessionsParams wraps a submitted selection.
type CreateSessionsParams struct {
	Keys            []scheduler.SlotKey
	Title           string
	DurationMinutes int
	MaxParticipants int
}

// FailedCreation is a request the session store rejected.
type FailedCreation struct {
	Request scheduler.CreationRequest
	Err     error
}

// BatchResult reports the outcome of a batch creation.
type BatchResult struct {
	Requested int
	Created   []scheduler.Session
	Skipped   []scheduler.SkippedSelection
	Failed    []FailedCreation
	// Conflicts involving the created sessions. They never undo the creation.
	Conflicts []scheduler.Conflict
}

// Summary describes skipped selections for display. It is empty when nothing was skipped.
func (r BatchResult) Summary() string {
	if len(r.Skipped) == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d selected slots are no longer available and were skipped", len(r.Skipped), r.Requested)
}

// ReportParams scopes a conflict report to tutors and a date range.
type ReportParams struct {
	TutorIDs []string
	From     scheduler.Date
	To       scheduler.Date
	// Fresh bypasses the report cache.
	Fresh bool
}

// Report lists conflicts ordered by severity with one resolution per conflict.
type Report struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	From        scheduler.Date         `json:"from"`
	To          scheduler.Date         `json:"to"`
	Conflicts   []scheduler.Conflict   `json:"conflicts"`
	Resolutions []scheduler.Resolution `json:"resolutions"`
}

// Resolution returns the resolution proposed for conflictID.
func (r Report) Resolution(conflictID string) (scheduler.Resolution, bool) {
	for _, res := range r.Resolutions {
		if res.ConflictID == conflictID {
			return res, true
		}
	}
	return scheduler.Resolution{}, false
}

// without returns a copy of the report with conflictID and its resolution removed.
func (r Report) without(conflictID string) Report {
	out := r
	out.Conflicts = make([]scheduler.Conflict, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		if c.ID != conflictID {
			out.Conflicts = append(out.Conflicts, c)
		}
	}
	out.Resolutions = make([]scheduler.Resolution, 0, len(r.Resolutions))
	for _, res := range r.Resolutions {
		if res.ConflictID != conflictID {
			out.Resolutions = append(out.Resolutions, res)
		}
	}
	return out
}

// ApplyResolutionParams picks one proposed slot for a conflict in a report.
type ApplyResolutionParams struct {
	Report     ReportParams
	ConflictID string
	Slot       scheduler.CandidateSlot
}

// RescheduleRequest asks the session collaborator to move a session. The
// service does not persist it.
type RescheduleRequest struct {
	ConflictID               string    `json:"conflictId"`
	SessionID                string    `json:"sessionId"`
	NewStart                 time.Time `json:"newStart"`
	DurationMinutes          int       `json:"durationMinutes"`
	LinkedAvailabilitySlotID string    `json:"linkedAvailabilitySlotId"`
}
