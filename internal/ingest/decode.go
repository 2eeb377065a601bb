package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/example/tutor-scheduler/internal/recurrence"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

// ErrMalformedDocument is returned when the input is not a JSON object.
var ErrMalformedDocument = errors.New("ingest: malformed document")

// Kind names the record collection a RecordError belongs to.
type Kind string

const (
	KindWindow   Kind = "window"
	KindTemplate Kind = "template"
	KindSession  Kind = "session"
)

// RecordError describes one record that could not be decoded.
type RecordError struct {
	Kind  Kind
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("ingest: %s %d: %v", e.Kind, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Document is the decoded content of an import file.
type Document struct {
	Windows   []scheduler.AvailabilityWindow
	Templates []recurrence.Template
	Sessions  []scheduler.Session
}

// Empty reports whether nothing was decoded.
func (d Document) Empty() bool {
	return len(d.Windows) == 0 && len(d.Templates) == 0 && len(d.Sessions) == 0
}

var collectionAliases = map[string]Kind{
	"windows":             KindWindow,
	"availability":        KindWindow,
	"availabilitywindows": KindWindow,
	"templates":           KindTemplate,
	"weeklytemplates":     KindTemplate,
	"sessions":            KindSession,
}

// Decode reads one JSON object holding any of the "windows", "templates" and
// "sessions" collections. Record level problems are returned as RecordErrors
// alongside the records that did decode; the error result is reserved for
// input that is not a document at all.
func Decode(r io.Reader) (Document, []RecordError, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return Document{}, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	var (
		doc     Document
		rejects []RecordError
	)
	for key, raw := range top {
		kind, ok := collectionAliases[normalizeKey(key)]
		if !ok {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Document{}, nil, fmt.Errorf("%w: %q is not an array", ErrMalformedDocument, key)
		}

		for i, item := range items {
			rec, err := newRecord(item)
			if err == nil {
				switch kind {
				case KindWindow:
					var w scheduler.AvailabilityWindow
					if w, err = decodeWindow(rec); err == nil {
						doc.Windows = append(doc.Windows, w)
					}
				case KindTemplate:
					var t recurrence.Template
					if t, err = decodeTemplate(rec); err == nil {
						doc.Templates = append(doc.Templates, t)
					}
				case KindSession:
					var s scheduler.Session
					if s, err = decodeSession(rec); err == nil {
						doc.Sessions = append(doc.Sessions, s)
					}
				}
			}
			if err != nil {
				rejects = append(rejects, RecordError{Kind: kind, Index: i, Err: err})
			}
		}
	}
	sort.SliceStable(rejects, func(i, j int) bool {
		if rejects[i].Kind != rejects[j].Kind {
			return rejects[i].Kind < rejects[j].Kind
		}
		return rejects[i].Index < rejects[j].Index
	})
	return doc, rejects, nil
}

func decodeWindow(rec record) (scheduler.AvailabilityWindow, error) {
	var (
		w   scheduler.AvailabilityWindow
		err error
	)
	if w.TutorID, err = rec.requiredText("tutorId"); err != nil {
		return w, err
	}
	if w.SlotID, err = rec.requiredText("slotId", "id"); err != nil {
		return w, err
	}
	if w.Date, err = rec.date("date"); err != nil {
		return w, err
	}
	if w.StartTime, err = rec.clock("startTime"); err != nil {
		return w, err
	}
	if w.EndTime, err = rec.clock("endTime"); err != nil {
		return w, err
	}
	if w.Timezone, err = rec.text("timezone"); err != nil {
		return w, err
	}
	return w, w.Validate()
}

func decodeTemplate(rec record) (recurrence.Template, error) {
	var (
		t   recurrence.Template
		err error
	)
	if t.ID, err = rec.text("id", "slotId"); err != nil {
		return t, err
	}
	if t.TutorID, err = rec.requiredText("tutorId"); err != nil {
		return t, err
	}
	frequency, err := rec.text("frequency")
	if err != nil {
		return t, err
	}
	if t.Frequency, err = recurrence.ParseFrequency(frequency); err != nil {
		return t, err
	}
	if t.Weekdays, err = rec.weekdays("weekdays", "daysOfWeek"); err != nil {
		return t, err
	}
	if t.StartTime, err = rec.clock("startTime"); err != nil {
		return t, err
	}
	if t.EndTime, err = rec.clock("endTime"); err != nil {
		return t, err
	}
	if t.Timezone, err = rec.text("timezone"); err != nil {
		return t, err
	}
	if t.StartsOn, err = rec.date("startsOn", "startDate"); err != nil {
		return t, err
	}
	if rec.has("endsOn", "endDate") {
		if t.EndsOn, err = rec.date("endsOn", "endDate"); err != nil {
			return t, err
		}
	}
	if t.StartTime >= t.EndTime {
		return t, fmt.Errorf("%w: %s-%s", recurrence.ErrInvalidDuration, t.StartTime, t.EndTime)
	}
	return t, nil
}

func decodeSession(rec record) (scheduler.Session, error) {
	var (
		s   scheduler.Session
		err error
	)
	if s.ID, err = rec.text("id"); err != nil {
		return s, err
	}
	if s.TutorID, err = rec.requiredText("tutorId"); err != nil {
		return s, err
	}
	if s.Title, err = rec.text("title"); err != nil {
		return s, err
	}
	start, err := rec.requiredText("scheduledStart", "start")
	if err != nil {
		return s, err
	}
	if s.ScheduledStart, err = time.Parse(time.RFC3339, start); err != nil {
		return s, fmt.Errorf("scheduledStart: %w", err)
	}
	if s.DurationMinutes, err = rec.integer("durationMinutes", "duration"); err != nil {
		return s, err
	}
	if s.DurationMinutes <= 0 {
		return s, fmt.Errorf("durationMinutes must be positive, got %d", s.DurationMinutes)
	}
	if s.MaxParticipants, err = rec.integer("maxParticipants"); err != nil {
		return s, err
	}
	if s.EnrolledStudentIDs, err = rec.textList("enrolledStudentIds", "studentIds"); err != nil {
		return s, err
	}
	status, err := rec.text("status")
	if err != nil {
		return s, err
	}
	s.Status = scheduler.StatusScheduled
	if status != "" {
		s.Status = scheduler.SessionStatus(strings.ToLower(status))
		if !s.Status.Valid() {
			return s, fmt.Errorf("unknown status %q", status)
		}
	}
	if s.LinkedAvailabilitySlotID, err = rec.text("linkedAvailabilitySlotId", "linkedSlotId"); err != nil {
		return s, err
	}
	return s, s.ValidateEnrollment()
}
