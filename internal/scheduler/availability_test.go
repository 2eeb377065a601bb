package scheduler

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestNewAvailabilityIndexRejectsMalformedWindows(t *testing.T) {
	t.Parallel()

	badZone := window("t1", "2025-01-15", "tz", "09:00", "10:00")
	badZone.Timezone = "Nowhere/Special"

	idx, rejected := NewAvailabilityIndex([]AvailabilityWindow{
		window("t1", "2025-01-15", "a", "09:00", "10:00"),
		window("t1", "2025-01-15", "a", "11:00", "12:00"),
		window("t1", "2025-01-15", "reversed", "12:00", "11:00"),
		badZone,
		window("t2", "2025-01-16", "b", "13:00", "14:00"),
	}, time.UTC)

	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed windows, got %d", idx.Len())
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejected windows, got %d", len(rejected))
	}
	if !errors.Is(rejected[0].Err, ErrDuplicateWindow) {
		t.Fatalf("expected duplicate rejection first, got %v", rejected[0].Err)
	}
	if !errors.Is(rejected[1].Err, ErrInvalidRange) {
		t.Fatalf("expected invalid range rejection, got %v", rejected[1].Err)
	}
	if !errors.Is(rejected[2].Err, ErrInvalidWindow) {
		t.Fatalf("expected unknown zone rejection, got %v", rejected[2].Err)
	}
	if got := idx.Tutors(); !reflect.DeepEqual(got, []string{"t1", "t2"}) {
		t.Fatalf("unexpected tutors %v", got)
	}
}

func TestAvailabilityIndexFindSlot(t *testing.T) {
	t.Parallel()

	idx := mustIndex(t,
		window("t1", "2025-01-15", "a", "09:00", "10:00"),
		window("t1", "2025-01-15", "b", "14:00", "15:00"),
	)
	date := MustParseDate("2025-01-15")

	if w, ok := idx.FindSlot("t1", date, "b"); !ok || w.StartTime != Clock(14, 0) {
		t.Fatalf("expected slot b, got %+v (found=%v)", w, ok)
	}

	misses := []struct {
		name   string
		tutor  string
		date   Date
		slotID string
	}{
		{"unknown tutor", "t9", date, "a"},
		{"unknown date", "t1", date.AddDays(1), "a"},
		{"unknown slot", "t1", date, "removed"},
	}
	for _, tc := range misses {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := idx.FindSlot(tc.tutor, tc.date, tc.slotID); ok {
				t.Fatalf("expected not found")
			}
		})
	}

	var nilIdx *AvailabilityIndex
	if _, ok := nilIdx.FindSlot("t1", date, "a"); ok {
		t.Fatalf("expected nil index to report not found")
	}
}

func TestAvailabilityIndexWindowsForDate(t *testing.T) {
	t.Parallel()

	idx := mustIndex(t,
		window("t1", "2025-01-15", "late", "14:00", "15:00"),
		window("t1", "2025-01-15", "early", "09:00", "10:00"),
	)

	got := idx.WindowsForDate("t1", MustParseDate("2025-01-15"))
	if !reflect.DeepEqual(slotIDs(got), []string{"early", "late"}) {
		t.Fatalf("expected windows ordered by start, got %v", slotIDs(got))
	}

	// The returned slice is a copy.
	got[0].SlotID = "mutated"
	again := idx.WindowsForDate("t1", MustParseDate("2025-01-15"))
	if again[0].SlotID != "early" {
		t.Fatalf("expected index to be unaffected by caller mutation")
	}

	empty := idx.WindowsForDate("t1", MustParseDate("2025-01-16"))
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestAvailabilityIndexWindowsInRange(t *testing.T) {
	t.Parallel()

	idx := mustIndex(t,
		window("t1", "2025-01-17", "d", "09:00", "10:00"),
		window("t1", "2025-01-14", "a", "09:00", "10:00"),
		window("t1", "2025-01-15", "c", "11:00", "12:00"),
		window("t1", "2025-01-15", "b", "09:00", "10:00"),
		window("t1", "2025-01-18", "e", "09:00", "10:00"),
		window("t2", "2025-01-15", "other", "09:00", "10:00"),
	)

	got, err := idx.WindowsInRange("t1", MustParseDate("2025-01-14"), MustParseDate("2025-01-17"))
	if err != nil {
		t.Fatalf("WindowsInRange returned error: %v", err)
	}
	if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(slotIDs(got), want) {
		t.Fatalf("expected %v, got %v", want, slotIDs(got))
	}

	for i := 0; i < 5; i++ {
		again, _ := idx.WindowsInRange("t1", MustParseDate("2025-01-14"), MustParseDate("2025-01-17"))
		if !reflect.DeepEqual(again, got) {
			t.Fatalf("expected stable order across calls")
		}
	}

	if _, err := idx.WindowsInRange("t1", MustParseDate("2025-01-18"), MustParseDate("2025-01-14")); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for reversed range, got %v", err)
	}
}

func TestAvailabilityIndexConcurrentReads(t *testing.T) {
	t.Parallel()

	tokyo := window("t1", "2025-01-15", "a", "09:00", "10:00")
	tokyo.Timezone = "Asia/Tokyo"
	idx := mustIndex(t, tokyo, window("t1", "2025-01-15", "b", "11:00", "12:00"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, w := range idx.WindowsForDate("t1", MustParseDate("2025-01-15")) {
				_ = idx.Interval(w)
			}
		}()
	}
	wg.Wait()
}
