package scheduler

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ConflictType describes the kind of inconsistency detected.
type ConflictType string

const (
	// ConflictTutorDoubleBooking indicates two sessions of one tutor overlap.
	ConflictTutorDoubleBooking ConflictType = "tutor_double_booking"
	// ConflictAvailabilityMismatch indicates a session lies outside its tutor's availability.
	ConflictAvailabilityMismatch ConflictType = "availability_mismatch"
)

// Severity ranks conflicts for display.
type Severity string

const (
	// SeverityHigh marks conflicts that double book a tutor.
	SeverityHigh Severity = "high"
	// SeverityMedium marks sessions outside declared availability.
	SeverityMedium Severity = "medium"
	// SeverityLow is reserved for advisory findings.
	SeverityLow Severity = "low"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// DoubleBookingDetails lists the two overlapping sessions.
type DoubleBookingDetails struct {
	First  SessionSummary `json:"first"`
	Second SessionSummary `json:"second"`
}

// MismatchDetails lists the session and the tutor's windows on its date.
type MismatchDetails struct {
	Session          SessionSummary       `json:"session"`
	Date             Date                 `json:"date"`
	AvailableWindows []AvailabilityWindow `json:"availableWindows"`
}

// ConflictDetails carries the type specific payload. Exactly one field is set.
type ConflictDetails struct {
	DoubleBooking *DoubleBookingDetails `json:"doubleBooking,omitempty"`
	Mismatch      *MismatchDetails      `json:"mismatch,omitempty"`
}

// Conflict is an advisory finding over a set of sessions.
type Conflict struct {
	ID                 string          `json:"id"`
	Type               ConflictType    `json:"type"`
	Severity           Severity        `json:"severity"`
	AffectedSessionIDs []string        `json:"affectedSessionIds"`
	Details            ConflictDetails `json:"details"`
}

// DetectConflicts reports tutor double bookings and, when availability is
// supplied, sessions scheduled outside their tutor's declared windows.
// Cancelled sessions are ignored. The result is recomputed from the inputs on
// every call; double bookings come first.
func DetectConflicts(sessions []Session, availability *AvailabilityIndex) []Conflict {
	active := activeSessions(sessions)

	conflicts := detectDoubleBookings(active)
	if availability != nil {
		conflicts = append(conflicts, detectMismatches(active, availability)...)
	}
	return conflicts
}

// SortConflicts orders conflicts by severity, high first, keeping detection
// order within a severity.
func SortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Severity.rank() < conflicts[j].Severity.rank()
	})
}

func activeSessions(sessions []Session) []Session {
	active := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Cancelled() {
			continue
		}
		active = append(active, s)
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].ScheduledStart.Equal(active[j].ScheduledStart) {
			return active[i].ScheduledStart.Before(active[j].ScheduledStart)
		}
		return active[i].Ref() < active[j].Ref()
	})
	return active
}

func detectDoubleBookings(active []Session) []Conflict {
	byTutor := make(map[string][]Session)
	tutors := make([]string, 0)
	for _, s := range active {
		if _, ok := byTutor[s.TutorID]; !ok {
			tutors = append(tutors, s.TutorID)
		}
		byTutor[s.TutorID] = append(byTutor[s.TutorID], s)
	}
	sort.Strings(tutors)

	var conflicts []Conflict
	for _, tutor := range tutors {
		list := byTutor[tutor]
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				a, b := list[i], list[j]
				if !a.Interval().Overlaps(b.Interval()) {
					continue
				}
				conflicts = append(conflicts, Conflict{
					ID:                 ConflictID(ConflictTutorDoubleBooking, a.Ref(), b.Ref()),
					Type:               ConflictTutorDoubleBooking,
					Severity:           SeverityHigh,
					AffectedSessionIDs: []string{a.Ref(), b.Ref()},
					Details: ConflictDetails{DoubleBooking: &DoubleBookingDetails{
						First:  Summarize(a),
						Second: Summarize(b),
					}},
				})
			}
		}
	}
	return conflicts
}

func detectMismatches(active []Session, availability *AvailabilityIndex) []Conflict {
	var conflicts []Conflict
	for _, s := range active {
		date, windows := windowsOnSessionDate(s, availability)
		interval := s.Interval()

		compliant := false
		for _, w := range windows {
			if availability.Interval(w).Contains(interval) {
				compliant = true
				break
			}
		}
		if compliant {
			continue
		}

		conflicts = append(conflicts, Conflict{
			ID:                 ConflictID(ConflictAvailabilityMismatch, s.Ref()),
			Type:               ConflictAvailabilityMismatch,
			Severity:           SeverityMedium,
			AffectedSessionIDs: []string{s.Ref()},
			Details: ConflictDetails{Mismatch: &MismatchDetails{
				Session:          Summarize(s),
				Date:             date,
				AvailableWindows: windows,
			}},
		})
	}
	return conflicts
}

// windowsOnSessionDate gathers the tutor's windows whose date equals the
// session's calendar date as seen from each window's own timezone. The
// returned date is the session's date in the course timezone.
func windowsOnSessionDate(s Session, availability *AvailabilityIndex) (Date, []AvailabilityWindow) {
	courseDate := DateOf(s.ScheduledStart.In(availability.DefaultLocation()))
	candidates, err := availability.WindowsInRange(s.TutorID, courseDate.AddDays(-1), courseDate.AddDays(1))
	if err != nil {
		return courseDate, []AvailabilityWindow{}
	}

	windows := make([]AvailabilityWindow, 0, len(candidates))
	for _, w := range candidates {
		local := s.ScheduledStart.In(availability.Location(w))
		if DateOf(local) != w.Date {
			continue
		}
		windows = append(windows, w)
	}
	return courseDate, windows
}

// ConflictID derives a stable identifier from the conflict type and the
// sessions involved. The order of refs does not matter.
func ConflictID(kind ConflictType, refs ...string) string {
	sorted := make([]string, len(refs))
	copy(sorted, refs)
	sort.Strings(sorted)

	sum := blake2b.Sum256([]byte(string(kind) + "\x00" + strings.Join(sorted, "\x00")))
	return "cf_" + hex.EncodeToString(sum[:8])
}

// sessionsForTutor returns the tutor's non-cancelled sessions other than exclude.
func sessionsForTutor(sessions []Session, tutorID, exclude string) []Range {
	busy := make([]Range, 0)
	for _, s := range sessions {
		if s.TutorID != tutorID || s.Cancelled() || s.Ref() == exclude {
			continue
		}
		busy = append(busy, s.Interval())
	}
	return busy
}
