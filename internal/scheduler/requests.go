package scheduler

import (
	"fmt"
	"time"
)

// CreationTemplate carries the session attributes shared by a batch.
type CreationTemplate struct {
	Title           string
	DurationMinutes int
	MaxParticipants int
}

// CreationRequest is the payload handed to the session store for one selected
// window. ScheduledStart is expressed in the window's timezone.
type CreationRequest struct {
	TutorID                  string    `json:"tutorId"`
	Title                    string    `json:"title,omitempty"`
	ScheduledStart           time.Time `json:"scheduledStart"`
	DurationMinutes          int       `json:"durationMinutes"`
	MaxParticipants          int       `json:"maxParticipants,omitempty"`
	LinkedAvailabilitySlotID string    `json:"linkedAvailabilitySlotId"`
}

// Session returns the unsaved session the request describes.
func (r CreationRequest) Session() Session {
	return Session{
		TutorID:                  r.TutorID,
		Title:                    r.Title,
		ScheduledStart:           r.ScheduledStart,
		DurationMinutes:          r.DurationMinutes,
		MaxParticipants:          r.MaxParticipants,
		Status:                   StatusScheduled,
		LinkedAvailabilitySlotID: r.LinkedAvailabilitySlotID,
	}
}

// SkippedSelection is a selected key that produced no request.
type SkippedSelection struct {
	Key SlotKey `json:"key"`
	Err error   `json:"-"`
}

// Reason returns the skip error as text.
func (s SkippedSelection) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// BuildCreationRequests converts selected keys into creation payloads. Keys
// whose window is no longer indexed are skipped with ErrSlotUnavailable and
// the rest of the batch is still converted. A template duration that is not
// positive falls back to each window's own length.
func BuildCreationRequests(keys []SlotKey, availability *AvailabilityIndex, template CreationTemplate) ([]CreationRequest, []SkippedSelection) {
	requests := make([]CreationRequest, 0, len(keys))
	var skipped []SkippedSelection

	for _, key := range keys {
		w, ok := availability.Lookup(key)
		if !ok {
			skipped = append(skipped, SkippedSelection{Key: key, Err: fmt.Errorf("%w: %s", ErrSlotUnavailable, key)})
			continue
		}

		duration := template.DurationMinutes
		if duration <= 0 {
			duration = w.DurationMinutes()
		}

		requests = append(requests, CreationRequest{
			TutorID:                  w.TutorID,
			Title:                    template.Title,
			ScheduledStart:           availability.Interval(w).Start,
			DurationMinutes:          duration,
			MaxParticipants:          template.MaxParticipants,
			LinkedAvailabilitySlotID: key.String(),
		})
	}
	return requests, skipped
}
