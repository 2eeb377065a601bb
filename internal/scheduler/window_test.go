package scheduler

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()

	valid := map[string]ClockTime{
		"09:00":    Clock(9, 0),
		"00:00":    0,
		"23:59":    Clock(23, 59),
		"24:00":    EndOfDay,
		"14:30:00": Clock(14, 30),
	}
	for input, want := range valid {
		got, err := ParseClock(input)
		if err != nil {
			t.Fatalf("ParseClock(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseClock(%q) = %s, want %s", input, got, want)
		}
	}

	for _, input := range []string{"", "9", "9:5", "25:00", "24:30", "12:60", "ab:cd"} {
		if _, err := ParseClock(input); err == nil {
			t.Fatalf("expected ParseClock(%q) to fail", input)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	t.Parallel()

	d := MustParseDate("2024-12-31")
	if got := d.AddDays(1).String(); got != "2025-01-01" {
		t.Fatalf("expected year rollover, got %s", got)
	}
	if got := d.AddDays(-31).String(); got != "2024-11-30" {
		t.Fatalf("expected 2024-11-30, got %s", got)
	}
	if !d.Before(d.AddDays(1)) || !d.AddDays(1).After(d) {
		t.Fatalf("expected ordering helpers to agree")
	}
	if _, err := ParseDate("2025-02-30"); err == nil {
		t.Fatalf("expected invalid calendar date to fail")
	}
}

func TestSlotKeyRoundTrip(t *testing.T) {
	t.Parallel()

	keys := []SlotKey{
		{TutorID: "tutor-1", Date: MustParseDate("2025-01-15"), SlotID: "slot-a"},
		{TutorID: "tutor_with_underscores", Date: MustParseDate("2025-01-15"), SlotID: "slot_1"},
		{TutorID: "pipe|tutor", Date: MustParseDate("2025-03-01"), SlotID: "a/b%c"},
		{TutorID: "tutor-1", Date: MustParseDate("2025-01-15")},
	}

	for _, key := range keys {
		parsed, err := ParseSlotKey(key.String())
		if err != nil {
			t.Fatalf("ParseSlotKey(%q) returned error: %v", key.String(), err)
		}
		if parsed != key {
			t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, key)
		}
	}

	for _, input := range []string{"", "tutor|2025-01-15", "tutor|not-a-date|slot", "|2025-01-15|slot"} {
		if _, err := ParseSlotKey(input); !errors.Is(err, ErrInvalidSlotKey) {
			t.Fatalf("expected ErrInvalidSlotKey for %q, got %v", input, err)
		}
	}
}

func TestSlotKeyAsJSONMapKey(t *testing.T) {
	t.Parallel()

	key := SlotKey{TutorID: "t|1", Date: MustParseDate("2025-01-15"), SlotID: "s1"}
	payload, err := json.Marshal(map[SlotKey]int{key: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[SlotKey]int
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded[key] != 3 {
		t.Fatalf("expected key to survive JSON, got %v", decoded)
	}
}

func TestAvailabilityWindowValidate(t *testing.T) {
	t.Parallel()

	if err := window("t", "2025-01-15", "s", "09:00", "10:00").Validate(); err != nil {
		t.Fatalf("expected valid window, got %v", err)
	}
	if err := window("t", "2025-01-15", "s", "10:00", "10:00").Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for empty window, got %v", err)
	}
	if err := window("t", "2025-01-15", "s", "11:00", "10:00").Validate(); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for reversed window, got %v", err)
	}
	if err := window("", "2025-01-15", "s", "09:00", "10:00").Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for missing tutor, got %v", err)
	}
}

func TestAvailabilityWindowInterval(t *testing.T) {
	t.Parallel()

	w := window("t", "2025-01-15", "s", "09:00", "10:30")
	w.Timezone = "Asia/Tokyo"

	r, err := w.Interval(time.UTC)
	if err != nil {
		t.Fatalf("Interval returned error: %v", err)
	}
	if want := utc(2025, time.January, 15, 0, 0); !r.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, r.Start)
	}
	if w.DurationMinutes() != 90 {
		t.Fatalf("expected 90 minutes, got %d", w.DurationMinutes())
	}

	w.Timezone = "Mars/Olympus_Mons"
	if _, err := w.Interval(time.UTC); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for unknown zone, got %v", err)
	}
}
