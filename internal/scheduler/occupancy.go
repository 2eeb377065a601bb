package scheduler

import "time"

// FilterOccupied returns the windows dated on date whose slot interval
// [start, start+durationMinutes) overlaps no non-cancelled session of tutorID.
// Windows are placed in their own timezone and compared as absolute instants.
// When durationMinutes is not positive each window's own length is used.
func FilterOccupied(tutorID string, date Date, windows []AvailabilityWindow, sessions []Session, durationMinutes int, defaultLoc *time.Location) []AvailabilityWindow {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}

	busy := make([]Range, 0, len(sessions))
	for _, s := range sessions {
		if s.TutorID != tutorID || s.Cancelled() {
			continue
		}
		busy = append(busy, s.Interval())
	}

	free := make([]AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		if w.Date != date {
			continue
		}
		loc, err := w.Location(defaultLoc)
		if err != nil {
			continue
		}
		minutes := durationMinutes
		if minutes <= 0 {
			minutes = w.DurationMinutes()
		}
		slot := NewRange(w.Date.At(w.StartTime, loc), time.Duration(minutes)*time.Minute)
		if overlapsAny(slot, busy) {
			continue
		}
		free = append(free, w)
	}
	return free
}

func overlapsAny(r Range, busy []Range) bool {
	for _, b := range busy {
		if r.Overlaps(b) {
			return true
		}
	}
	return false
}
