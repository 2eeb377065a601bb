package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

// record is a JSON object keyed by normalized field name.
type record map[string]json.RawMessage

func newRecord(raw json.RawMessage) (record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	rec := make(record, len(fields))
	for key, value := range fields {
		rec[normalizeKey(key)] = value
	}
	return rec, nil
}

// normalizeKey folds "tutor_id", "tutorId" and "TutorID" to "tutorid".
func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(key, "_", ""), "-", ""))
}

func (r record) lookup(names ...string) (string, json.RawMessage, bool) {
	for _, name := range names {
		if raw, ok := r[normalizeKey(name)]; ok && string(raw) != "null" {
			return name, raw, true
		}
	}
	return names[0], nil, false
}

func (r record) has(names ...string) bool {
	_, _, ok := r.lookup(names...)
	return ok
}

func (r record) text(names ...string) (string, error) {
	name, raw, ok := r.lookup(names...)
	if !ok {
		return "", nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return strings.TrimSpace(value), nil
}

func (r record) requiredText(names ...string) (string, error) {
	value, err := r.text(names...)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%s is required", names[0])
	}
	return value, nil
}

func (r record) integer(names ...string) (int, error) {
	name, raw, ok := r.lookup(names...)
	if !ok {
		return 0, nil
	}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}

func (r record) textList(names ...string) ([]string, error) {
	name, raw, ok := r.lookup(names...)
	if !ok {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%s must be an array of strings", name)
	}
	return values, nil
}

func (r record) date(names ...string) (scheduler.Date, error) {
	value, err := r.requiredText(names...)
	if err != nil {
		return scheduler.Date{}, err
	}
	return scheduler.ParseDate(value)
}

func (r record) clock(names ...string) (scheduler.ClockTime, error) {
	value, err := r.requiredText(names...)
	if err != nil {
		return 0, err
	}
	return scheduler.ParseClock(value)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// weekdays accepts names ("monday", "Mon") or numbers with 0 as Sunday.
func (r record) weekdays(names ...string) ([]time.Weekday, error) {
	name, raw, ok := r.lookup(names...)
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s must be an array", name)
	}

	days := make([]time.Weekday, 0, len(items))
	for _, item := range items {
		var number int
		if err := json.Unmarshal(item, &number); err == nil {
			if number < 0 || number > 6 {
				return nil, fmt.Errorf("%s: weekday %d out of range", name, number)
			}
			days = append(days, time.Weekday(number))
			continue
		}
		var label string
		if err := json.Unmarshal(item, &label); err != nil {
			return nil, fmt.Errorf("%s: weekday must be a name or number", name)
		}
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			return nil, fmt.Errorf("%s: unknown weekday %q", name, label)
		}
		days = append(days, day)
	}
	return days, nil
}
