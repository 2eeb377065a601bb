package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func window(tutorID, date, slotID, start, end string) AvailabilityWindow {
	startClock, err := ParseClock(start)
	if err != nil {
		panic(err)
	}
	endClock, err := ParseClock(end)
	if err != nil {
		panic(err)
	}
	return AvailabilityWindow{
		TutorID:   tutorID,
		Date:      MustParseDate(date),
		SlotID:    slotID,
		StartTime: startClock,
		EndTime:   endClock,
	}
}

func session(id, tutorID string, start time.Time, minutes int) Session {
	return Session{
		ID:              id,
		TutorID:         tutorID,
		Title:           "Session " + id,
		ScheduledStart:  start,
		DurationMinutes: minutes,
		Status:          StatusScheduled,
	}
}

func mustIndex(t *testing.T, windows ...AvailabilityWindow) *AvailabilityIndex {
	t.Helper()
	idx, rejected := NewAvailabilityIndex(windows, time.UTC)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejected windows: %+v", rejected)
	}
	return idx
}

func slotIDs(windows []AvailabilityWindow) []string {
	ids := make([]string, 0, len(windows))
	for _, w := range windows {
		ids = append(ids, w.SlotID)
	}
	return ids
}
