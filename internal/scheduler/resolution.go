package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// Strategy names a remedy for a conflict.
type Strategy string

const (
	// StrategyReschedule moves the session into another window.
	StrategyReschedule Strategy = "reschedule"
	// StrategyExtendAvailability asks the tutor to open availability covering the session.
	StrategyExtendAvailability Strategy = "extend_availability"
	// StrategyManual leaves the conflict to a human.
	StrategyManual Strategy = "manual"
)

const (
	doubleBookingLookBehind = 24 * time.Hour
	doubleBookingLookAhead  = 72 * time.Hour
	doubleBookingCandidates = 5
	mismatchLookAhead       = 7 * 24 * time.Hour
	mismatchCandidates      = 10
)

// CandidateLookBehind is how far before a double-booked session replacement
// windows are searched.
const CandidateLookBehind = doubleBookingLookBehind

// CandidateSlot is an alternative placement for a session.
type CandidateSlot struct {
	Key   SlotKey   `json:"slotKey"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Action is one suggested remedy and the slots it applies to.
type Action struct {
	Strategy    Strategy        `json:"strategy"`
	Description string          `json:"description"`
	Slots       []CandidateSlot `json:"slots"`
}

// Resolution is the proposed remedy for one conflict.
type Resolution struct {
	ConflictID      string          `json:"conflictId"`
	Strategy        Strategy        `json:"strategy"`
	TargetSessionID string          `json:"targetSessionId,omitempty"`
	CandidateSlots  []CandidateSlot `json:"candidateSlots"`
	Actions         []Action        `json:"actions,omitempty"`
}

// HasCandidate reports whether slot is one of the resolution's candidates.
func (r Resolution) HasCandidate(slot CandidateSlot) bool {
	for _, c := range r.CandidateSlots {
		if c.Key == slot.Key && c.Start.Equal(slot.Start) && c.End.Equal(slot.End) {
			return true
		}
	}
	return false
}

// ProposeResolution suggests how to clear a conflict. Only windows starting at
// or after now are offered. Unknown conflict types fall back to manual handling.
func ProposeResolution(conflict Conflict, sessions []Session, availability *AvailabilityIndex, now time.Time) Resolution {
	switch conflict.Type {
	case ConflictTutorDoubleBooking:
		return proposeForDoubleBooking(conflict, sessions, availability, now)
	case ConflictAvailabilityMismatch:
		return proposeForMismatch(conflict, sessions, availability, now)
	default:
		return Resolution{ConflictID: conflict.ID, Strategy: StrategyManual, CandidateSlots: []CandidateSlot{}}
	}
}

func proposeForDoubleBooking(conflict Conflict, sessions []Session, availability *AvailabilityIndex, now time.Time) Resolution {
	target, ok := rescheduleTarget(conflict, sessions)
	if !ok {
		return Resolution{ConflictID: conflict.ID, Strategy: StrategyManual, CandidateSlots: []CandidateSlot{}}
	}

	from := target.ScheduledStart.Add(-doubleBookingLookBehind)
	to := target.ScheduledStart.Add(doubleBookingLookAhead)
	if from.Before(now) {
		from = now
	}
	candidates := searchCandidates(target, sessions, availability, from, to, doubleBookingCandidates)

	return Resolution{
		ConflictID:      conflict.ID,
		Strategy:        StrategyReschedule,
		TargetSessionID: target.Ref(),
		CandidateSlots:  candidates,
		Actions: []Action{{
			Strategy:    StrategyReschedule,
			Description: fmt.Sprintf("move %q to a free window of tutor %s", target.Title, target.TutorID),
			Slots:       candidates,
		}},
	}
}

func proposeForMismatch(conflict Conflict, sessions []Session, availability *AvailabilityIndex, now time.Time) Resolution {
	if len(conflict.AffectedSessionIDs) == 0 {
		return Resolution{ConflictID: conflict.ID, Strategy: StrategyManual, CandidateSlots: []CandidateSlot{}}
	}
	target, ok := findSession(sessions, conflict.AffectedSessionIDs[0])
	if !ok {
		return Resolution{ConflictID: conflict.ID, Strategy: StrategyManual, CandidateSlots: []CandidateSlot{}}
	}

	candidates := searchCandidates(target, sessions, availability, now, now.Add(mismatchLookAhead), mismatchCandidates)

	extension := CandidateSlot{
		Key:   SlotKey{TutorID: target.TutorID, Date: DateOf(target.ScheduledStart.In(availability.DefaultLocation()))},
		Start: target.ScheduledStart,
		End:   target.End(),
	}

	strategy := StrategyReschedule
	if len(candidates) == 0 {
		strategy = StrategyExtendAvailability
	}

	return Resolution{
		ConflictID:      conflict.ID,
		Strategy:        strategy,
		TargetSessionID: target.Ref(),
		CandidateSlots:  candidates,
		Actions: []Action{
			{
				Strategy:    StrategyExtendAvailability,
				Description: fmt.Sprintf("ask tutor %s to open availability covering the session", target.TutorID),
				Slots:       []CandidateSlot{extension},
			},
			{
				Strategy:    StrategyReschedule,
				Description: fmt.Sprintf("move %q into an existing window within 7 days", target.Title),
				Slots:       candidates,
			},
		},
	}
}

// rescheduleTarget picks the later-starting session of a double booking. Equal
// starts are broken by the lexicographically greater id.
func rescheduleTarget(conflict Conflict, sessions []Session) (Session, bool) {
	if len(conflict.AffectedSessionIDs) != 2 {
		return Session{}, false
	}
	a, okA := findSession(sessions, conflict.AffectedSessionIDs[0])
	b, okB := findSession(sessions, conflict.AffectedSessionIDs[1])
	switch {
	case !okA && !okB:
		return Session{}, false
	case !okA:
		return b, true
	case !okB:
		return a, true
	}
	if a.ScheduledStart.After(b.ScheduledStart) {
		return a, true
	}
	if b.ScheduledStart.After(a.ScheduledStart) {
		return b, true
	}
	if a.Ref() > b.Ref() {
		return a, true
	}
	return b, true
}

// searchCandidates lists windows of the target's tutor starting within
// [from, to] that can hold the session without overlapping any of the tutor's
// other active sessions.
func searchCandidates(target Session, sessions []Session, availability *AvailabilityIndex, from, to time.Time, limit int) []CandidateSlot {
	candidates := []CandidateSlot{}
	if availability == nil || to.Before(from) {
		return candidates
	}

	// Dates are padded by a day on both sides; the instant check below is exact.
	loc := availability.DefaultLocation()
	windows, err := availability.WindowsInRange(target.TutorID, DateOf(from.In(loc)).AddDays(-1), DateOf(to.In(loc)).AddDays(1))
	if err != nil {
		return candidates
	}

	busy := sessionsForTutor(sessions, target.TutorID, target.Ref())
	length := time.Duration(target.DurationMinutes) * time.Minute
	current := target.Interval()

	for _, w := range windows {
		interval := availability.Interval(w)
		if interval.Start.Before(from) || interval.Start.After(to) {
			continue
		}
		if interval.Duration() < length {
			continue
		}
		slot := NewRange(interval.Start, length)
		if slot.Start.Equal(current.Start) && slot.End.Equal(current.End) {
			continue
		}
		if overlapsAny(slot, busy) {
			continue
		}
		candidates = append(candidates, CandidateSlot{Key: w.Key(), Start: slot.Start, End: slot.End})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func findSession(sessions []Session, ref string) (Session, bool) {
	for _, s := range sessions {
		if s.Ref() == ref {
			return s, true
		}
	}
	return Session{}, false
}
