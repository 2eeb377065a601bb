package scheduler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SlotKey identifies one availability window: a tutor's slot on a calendar date.
type SlotKey struct {
	TutorID string
	Date    Date
	SlotID  string
}

const slotKeySeparator = "|"

// String encodes the key. Components are escaped so that identifiers containing
// the separator still decode back to the same key.
func (k SlotKey) String() string {
	return url.PathEscape(k.TutorID) + slotKeySeparator + k.Date.String() + slotKeySeparator + url.PathEscape(k.SlotID)
}

// IsZero reports whether the key is unset.
func (k SlotKey) IsZero() bool {
	return k.TutorID == "" && k.Date.IsZero() && k.SlotID == ""
}

// ParseSlotKey decodes a key produced by SlotKey.String. The slot id may be
// empty: such a key names a tutor's date rather than an existing window.
func ParseSlotKey(value string) (SlotKey, error) {
	parts := strings.Split(value, slotKeySeparator)
	if len(parts) != 3 {
		return SlotKey{}, fmt.Errorf("%w: %q", ErrInvalidSlotKey, value)
	}
	tutorID, err := url.PathUnescape(parts[0])
	if err != nil {
		return SlotKey{}, fmt.Errorf("%w: %q", ErrInvalidSlotKey, value)
	}
	date, err := ParseDate(parts[1])
	if err != nil {
		return SlotKey{}, fmt.Errorf("%w: %q", ErrInvalidSlotKey, value)
	}
	slotID, err := url.PathUnescape(parts[2])
	if err != nil {
		return SlotKey{}, fmt.Errorf("%w: %q", ErrInvalidSlotKey, value)
	}
	if tutorID == "" {
		return SlotKey{}, fmt.Errorf("%w: %q", ErrInvalidSlotKey, value)
	}
	return SlotKey{TutorID: tutorID, Date: date, SlotID: slotID}, nil
}

// MarshalText implements encoding.TextMarshaler so keys can be used in JSON maps.
func (k SlotKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SlotKey) UnmarshalText(text []byte) error {
	parsed, err := ParseSlotKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AvailabilityWindow is one bookable interval for one tutor on one calendar date.
type AvailabilityWindow struct {
	TutorID   string    `json:"tutorId"`
	Date      Date      `json:"date"`
	SlotID    string    `json:"slotId"`
	StartTime ClockTime `json:"startTime"`
	EndTime   ClockTime `json:"endTime"`
	// Timezone is an IANA zone name. Empty means the course timezone.
	Timezone string `json:"timezone,omitempty"`
}

// Key returns the composite key of the window.
func (w AvailabilityWindow) Key() SlotKey {
	return SlotKey{TutorID: w.TutorID, Date: w.Date, SlotID: w.SlotID}
}

// DurationMinutes returns the declared length of the window.
func (w AvailabilityWindow) DurationMinutes() int {
	return int(w.EndTime - w.StartTime)
}

// Validate checks the window's structural invariants.
func (w AvailabilityWindow) Validate() error {
	if strings.TrimSpace(w.TutorID) == "" {
		return fmt.Errorf("%w: tutor id is required", ErrInvalidWindow)
	}
	if strings.TrimSpace(w.SlotID) == "" {
		return fmt.Errorf("%w: slot id is required", ErrInvalidWindow)
	}
	if w.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidWindow)
	}
	if w.StartTime < 0 || w.EndTime > EndOfDay {
		return fmt.Errorf("%w: %s-%s is outside the day", ErrInvalidRange, w.StartTime, w.EndTime)
	}
	if w.StartTime >= w.EndTime {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange, w.StartTime, w.EndTime)
	}
	return nil
}

// Location resolves the window's timezone, falling back to defaultLoc when unset.
func (w AvailabilityWindow) Location(defaultLoc *time.Location) (*time.Location, error) {
	if strings.TrimSpace(w.Timezone) == "" {
		if defaultLoc == nil {
			return time.UTC, nil
		}
		return defaultLoc, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidWindow, w.Timezone)
	}
	return loc, nil
}

// Interval returns the absolute range covered by the window.
func (w AvailabilityWindow) Interval(defaultLoc *time.Location) (Range, error) {
	loc, err := w.Location(defaultLoc)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: w.Date.At(w.StartTime, loc), End: w.Date.At(w.EndTime, loc)}, nil
}
