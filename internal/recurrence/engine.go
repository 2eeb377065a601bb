package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the template frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates windows for each day within the range.
	FrequencyDaily
	// FrequencyWeekly generates windows for the selected weekdays.
	FrequencyWeekly
)

// ParseFrequency maps "daily" and "weekly" to a Frequency. Empty input is weekly.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "weekly":
		return FrequencyWeekly, nil
	case "daily":
		return FrequencyDaily, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// Template describes a tutor's recurring availability. A zero EndsOn leaves
// the template open ended.
type Template struct {
	ID        string
	TutorID   string
	Frequency Frequency
	Weekdays  []time.Weekday
	StartTime scheduler.ClockTime
	EndTime   scheduler.ClockTime
	Timezone  string
	StartsOn  scheduler.Date
	EndsOn    scheduler.Date
}

// SlotID returns the slot id shared by every window the template produces.
func (t Template) SlotID() string {
	if id := strings.TrimSpace(t.ID); id != "" {
		return id
	}
	compact := func(c scheduler.ClockTime) string { return strings.ReplaceAll(c.String(), ":", "") }
	return "wk-" + compact(t.StartTime) + "-" + compact(t.EndTime)
}

// DefaultMaxDays bounds a single expansion.
const DefaultMaxDays = 366

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the generation window is reversed or too long.
var ErrInvalidWindow = errors.New("recurrence: invalid generation window")

// ErrInvalidDuration indicates the template start is not before its end.
var ErrInvalidDuration = errors.New("recurrence: template start must be before end")

// ErrInvalidTemplate indicates the template misses identifying fields.
var ErrInvalidTemplate = errors.New("recurrence: invalid template")

// Engine expands templates into dated availability windows.
type Engine struct {
	maxDays int
}

// NewEngine constructs an Engine refusing ranges longer than maxDays.
// Non-positive values use DefaultMaxDays.
func NewEngine(maxDays int) *Engine {
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	return &Engine{maxDays: maxDays}
}

// Expand produces the template's windows dated within [from, to], both
// inclusive, in chronological order.
//
// Dates are civil, so daylight saving transitions never move a window to a
// neighbouring day. The window's wall-clock times are kept in the template's
// timezone.
func (e *Engine) Expand(t Template, from, to scheduler.Date) ([]scheduler.AvailabilityWindow, error) {
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, to, from)
	}
	if span := daysBetween(from, to); span >= e.maxDays {
		return nil, fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidWindow, span+1, e.maxDays)
	}

	lower := from
	if t.StartsOn.After(lower) {
		lower = t.StartsOn
	}
	upper := to
	if !t.EndsOn.IsZero() && t.EndsOn.Before(upper) {
		upper = t.EndsOn
	}

	weekdaySet := make(map[time.Weekday]struct{}, len(t.Weekdays))
	for _, day := range t.Weekdays {
		weekdaySet[day] = struct{}{}
	}

	windows := make([]scheduler.AvailabilityWindow, 0)
	for current := lower; !current.After(upper); current = current.AddDays(1) {
		include, err := shouldInclude(t.Frequency, weekdaySet, weekday(current))
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		windows = append(windows, scheduler.AvailabilityWindow{
			TutorID:   t.TutorID,
			Date:      current,
			SlotID:    t.SlotID(),
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
			Timezone:  t.Timezone,
		})
	}
	return windows, nil
}

// ExpandAll expands every template. Templates that fail are reported in the
// joined error while the others still contribute windows.
func (e *Engine) ExpandAll(templates []Template, from, to scheduler.Date) ([]scheduler.AvailabilityWindow, error) {
	var (
		windows []scheduler.AvailabilityWindow
		errs    []error
	)
	for i, t := range templates {
		expanded, err := e.Expand(t, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %d (%s): %w", i, t.SlotID(), err))
			continue
		}
		windows = append(windows, expanded...)
	}
	return windows, errors.Join(errs...)
}

func validateTemplate(t Template) error {
	if strings.TrimSpace(t.TutorID) == "" {
		return fmt.Errorf("%w: tutor id is required", ErrInvalidTemplate)
	}
	if t.StartsOn.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidTemplate)
	}
	if !t.EndsOn.IsZero() && t.EndsOn.Before(t.StartsOn) {
		return fmt.Errorf("%w: ends on %s before starting on %s", ErrInvalidTemplate, t.EndsOn, t.StartsOn)
	}
	if t.StartTime < 0 || t.EndTime > scheduler.EndOfDay || t.StartTime >= t.EndTime {
		return fmt.Errorf("%w: %s-%s", ErrInvalidDuration, t.StartTime, t.EndTime)
	}
	if tz := strings.TrimSpace(t.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidTemplate, tz)
		}
	}
	return nil
}

func shouldInclude(freq Frequency, weekdaySet map[time.Weekday]struct{}, day time.Weekday) (bool, error) {
	switch freq {
	case FrequencyDaily:
		if len(weekdaySet) == 0 {
			return true, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyWeekly:
		if len(weekdaySet) == 0 {
			return false, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	default:
		return false, ErrInvalidFrequency
	}
}

func weekday(d scheduler.Date) time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func daysBetween(from, to scheduler.Date) int {
	a := time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year, to.Month, to.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
