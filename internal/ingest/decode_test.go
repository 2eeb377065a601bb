package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/tutor-scheduler/internal/recurrence"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("accepts both field spellings", func(t *testing.T) {
		t.Parallel()

		input := `{
			"availability_windows": [
				{"tutor_id": "tutor-1", "date": "2025-01-15", "slot_id": "morning", "start_time": "09:00", "end_time": "12:00"},
				{"tutorId": "tutor-2", "date": "2025-01-15", "slotId": "evening", "startTime": "18:00", "endTime": "20:00", "timezone": "Asia/Tokyo"}
			],
			"templates": [
				{"tutorId": "tutor-1", "weekdays": ["Mon", "wednesday", 5], "start_time": "13:00", "end_time": "15:00", "starts_on": "2025-01-01"}
			],
			"sessions": [
				{"id": "s1", "tutor_id": "tutor-1", "scheduled_start": "2025-01-15T09:30:00Z", "duration_minutes": 60, "enrolled_student_ids": ["st-1"]},
				{"tutorId": "tutor-2", "scheduledStart": "2025-01-15T18:00:00+09:00", "durationMinutes": 45, "status": "Cancelled", "linkedAvailabilitySlotId": "tutor-2|2025-01-15|evening"}
			]
		}`

		doc, rejects, err := Decode(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if len(rejects) != 0 {
			t.Fatalf("unexpected rejects: %v", rejects)
		}
		if len(doc.Windows) != 2 || len(doc.Templates) != 1 || len(doc.Sessions) != 2 {
			t.Fatalf("unexpected document sizes: %d windows, %d templates, %d sessions", len(doc.Windows), len(doc.Templates), len(doc.Sessions))
		}

		w := doc.Windows[0]
		if w.TutorID != "tutor-1" || w.SlotID != "morning" || w.StartTime != scheduler.Clock(9, 0) || w.EndTime != scheduler.Clock(12, 0) {
			t.Fatalf("unexpected window: %#v", w)
		}
		if doc.Windows[1].Timezone != "Asia/Tokyo" {
			t.Fatalf("expected timezone to be decoded, got %q", doc.Windows[1].Timezone)
		}

		tmpl := doc.Templates[0]
		if tmpl.Frequency != recurrence.FrequencyWeekly || len(tmpl.Weekdays) != 3 || tmpl.Weekdays[2] != time.Friday {
			t.Fatalf("unexpected template: %#v", tmpl)
		}
		if !tmpl.EndsOn.IsZero() {
			t.Fatalf("expected open ended template, got %s", tmpl.EndsOn)
		}

		first := doc.Sessions[0]
		if first.Status != scheduler.StatusScheduled || first.DurationMinutes != 60 || len(first.EnrolledStudentIDs) != 1 {
			t.Fatalf("unexpected session: %#v", first)
		}
		second := doc.Sessions[1]
		if second.Status != scheduler.StatusCancelled || second.LinkedAvailabilitySlotID != "tutor-2|2025-01-15|evening" {
			t.Fatalf("unexpected session: %#v", second)
		}
		if !second.ScheduledStart.Equal(time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start: %v", second.ScheduledStart)
		}
	})

	t.Run("reports malformed records individually", func(t *testing.T) {
		t.Parallel()

		input := `{
			"windows": [
				{"tutorId": "tutor-1", "date": "2025-01-15", "slotId": "ok", "startTime": "09:00", "endTime": "10:00"},
				{"tutorId": "tutor-1", "date": "2025-01-15", "slotId": "inverted", "startTime": "11:00", "endTime": "10:00"},
				{"date": "2025-01-15", "slotId": "no-tutor", "startTime": "09:00", "endTime": "10:00"}
			],
			"sessions": [
				{"tutorId": "tutor-1", "scheduledStart": "tomorrow", "durationMinutes": 60},
				{"tutorId": "tutor-1", "scheduledStart": "2025-01-15T09:00:00Z", "durationMinutes": 0},
				"not an object"
			]
		}`

		doc, rejects, err := Decode(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if len(doc.Windows) != 1 || len(doc.Sessions) != 0 {
			t.Fatalf("unexpected document: %#v", doc)
		}
		if len(rejects) != 5 {
			t.Fatalf("expected 5 rejects, got %d: %v", len(rejects), rejects)
		}
		if rejects[0].Kind != KindSession || rejects[0].Index != 0 {
			t.Fatalf("expected rejects ordered by kind and index, got %v", rejects)
		}
		if rejects[3].Kind != KindWindow || rejects[3].Index != 1 || !errors.Is(&rejects[3], scheduler.ErrInvalidRange) {
			t.Fatalf("expected inverted window to wrap ErrInvalidRange, got %v", &rejects[3])
		}
	})

	t.Run("rejects sessions with more students than places", func(t *testing.T) {
		t.Parallel()

		input := `{"sessions": [
			{"tutorId": "tutor-1", "scheduledStart": "2025-01-15T09:00:00Z", "durationMinutes": 60, "maxParticipants": 1, "enrolledStudentIds": ["st-1", "st-2"]},
			{"tutorId": "tutor-1", "scheduledStart": "2025-01-15T11:00:00Z", "durationMinutes": 60, "maxParticipants": 2, "enrolledStudentIds": ["st-1", "st-2"]},
			{"tutorId": "tutor-1", "scheduledStart": "2025-01-15T13:00:00Z", "durationMinutes": 60, "enrolledStudentIds": ["st-1", "st-2", "st-3"]}
		]}`

		doc, rejects, err := Decode(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if len(doc.Sessions) != 2 {
			t.Fatalf("expected 2 sessions to decode, got %d", len(doc.Sessions))
		}
		if len(rejects) != 1 || rejects[0].Kind != KindSession || rejects[0].Index != 0 {
			t.Fatalf("expected the first session to be rejected, got %v", rejects)
		}
		if !errors.Is(&rejects[0], scheduler.ErrOverEnrolled) {
			t.Fatalf("expected ErrOverEnrolled, got %v", &rejects[0])
		}
	})

	t.Run("rejects documents that are not objects", func(t *testing.T) {
		t.Parallel()

		if _, _, err := Decode(strings.NewReader(`[1, 2]`)); !errors.Is(err, ErrMalformedDocument) {
			t.Fatalf("expected ErrMalformedDocument, got %v", err)
		}
		if _, _, err := Decode(strings.NewReader(`{"windows": {}}`)); !errors.Is(err, ErrMalformedDocument) {
			t.Fatalf("expected ErrMalformedDocument for non-array collection, got %v", err)
		}
	})
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"tutorId", "tutor_id", "TutorID", "tutor-id"} {
		if got := normalizeKey(key); got != "tutorid" {
			t.Fatalf("normalizeKey(%q) = %q", key, got)
		}
	}
}
