package scheduler

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildCreationRequestsSkipsStaleSelections(t *testing.T) {
	t.Parallel()

	windows := []AvailabilityWindow{
		window("T", "2025-01-15", "s1", "09:00", "10:00"),
		window("T", "2025-01-15", "s2", "10:00", "11:00"),
		window("T", "2025-01-16", "s3", "09:00", "10:30"),
		window("U", "2025-01-16", "s4", "13:00", "14:00"),
		window("U", "2025-01-17", "s5", "13:00", "14:00"),
	}
	keys := make([]SlotKey, 0, len(windows))
	for _, w := range windows {
		keys = append(keys, w.Key())
	}

	// s3 was withdrawn between selection and submission.
	refreshed := mustIndex(t, windows[0], windows[1], windows[3], windows[4])

	requests, skipped := BuildCreationRequests(keys, refreshed, CreationTemplate{Title: "Algebra", DurationMinutes: 60, MaxParticipants: 4})
	if len(requests) != 4 {
		t.Fatalf("expected 4 creation requests, got %d", len(requests))
	}
	if len(skipped) != 1 {
		t.Fatalf("expected 1 skipped selection, got %d", len(skipped))
	}
	if skipped[0].Key != windows[2].Key() {
		t.Fatalf("expected s3 to be skipped, got %s", skipped[0].Key)
	}
	if !errors.Is(skipped[0].Err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", skipped[0].Err)
	}

	first := requests[0]
	if first.TutorID != "T" || first.DurationMinutes != 60 || first.Title != "Algebra" || first.MaxParticipants != 4 {
		t.Fatalf("unexpected request %+v", first)
	}
	if !first.ScheduledStart.Equal(utc(2025, time.January, 15, 9, 0)) {
		t.Fatalf("unexpected start %s", first.ScheduledStart)
	}
	if first.LinkedAvailabilitySlotID != windows[0].Key().String() {
		t.Fatalf("expected linked slot %s, got %s", windows[0].Key(), first.LinkedAvailabilitySlotID)
	}
}

func TestBuildCreationRequestsDurationFallback(t *testing.T) {
	t.Parallel()

	w := window("T", "2025-01-16", "long", "09:00", "10:30")
	requests, _ := BuildCreationRequests([]SlotKey{w.Key()}, mustIndex(t, w), CreationTemplate{})
	if len(requests) != 1 || requests[0].DurationMinutes != 90 {
		t.Fatalf("expected window length to be used, got %+v", requests)
	}
	if s := requests[0].Session(); s.Status != StatusScheduled || !s.End().Equal(utc(2025, time.January, 16, 10, 30)) {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestCreationRequestCarriesTimezoneOffset(t *testing.T) {
	t.Parallel()

	w := window("T", "2025-07-01", "berlin", "09:00", "10:00")
	w.Timezone = "Europe/Berlin"
	requests, _ := BuildCreationRequests([]SlotKey{w.Key()}, mustIndex(t, w), CreationTemplate{DurationMinutes: 45})

	payload, err := json.Marshal(requests[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"scheduledStart":"2025-07-01T09:00:00+02:00"`) {
		t.Fatalf("expected zone qualified start, got %s", payload)
	}
}
