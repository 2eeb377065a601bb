package scheduler

import (
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestDetectConflictsDoubleBooking(t *testing.T) {
	t.Parallel()

	a := session("a", "T", utc(2025, time.January, 15, 10, 0), 60)
	b := session("b", "T", utc(2025, time.January, 15, 10, 30), 60)

	t.Run("overlapping pair yields one conflict regardless of order", func(t *testing.T) {
		forward := DetectConflicts([]Session{a, b}, nil)
		backward := DetectConflicts([]Session{b, a}, nil)

		if len(forward) != 1 {
			t.Fatalf("expected exactly one conflict, got %d", len(forward))
		}
		c := forward[0]
		if c.Type != ConflictTutorDoubleBooking || c.Severity != SeverityHigh {
			t.Fatalf("unexpected conflict %+v", c)
		}
		if !reflect.DeepEqual(c.AffectedSessionIDs, []string{"a", "b"}) {
			t.Fatalf("expected affected [a b], got %v", c.AffectedSessionIDs)
		}
		if c.Details.DoubleBooking == nil || c.Details.Mismatch != nil {
			t.Fatalf("expected double booking details only, got %+v", c.Details)
		}
		if !reflect.DeepEqual(forward, backward) {
			t.Fatalf("expected input order not to matter:\n%+v\n%+v", forward, backward)
		}
	})

	t.Run("touching sessions do not conflict", func(t *testing.T) {
		next := session("c", "T", a.End(), 60)
		if got := DetectConflicts([]Session{a, next}, nil); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("cancelled sessions are ignored", func(t *testing.T) {
		cancelled := b
		cancelled.Status = StatusCancelled
		if got := DetectConflicts([]Session{a, cancelled}, nil); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("different tutors do not conflict", func(t *testing.T) {
		other := b
		other.TutorID = "U"
		if got := DetectConflicts([]Session{a, other}, nil); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("three mutually overlapping sessions yield three pairs", func(t *testing.T) {
		c := session("c", "T", utc(2025, time.January, 15, 10, 45), 30)
		got := DetectConflicts([]Session{c, b, a}, nil)
		if len(got) != 3 {
			t.Fatalf("expected 3 conflicts, got %d", len(got))
		}
		seen := make(map[string]bool)
		for _, conflict := range got {
			if seen[conflict.ID] {
				t.Fatalf("duplicate conflict id %s", conflict.ID)
			}
			seen[conflict.ID] = true
		}
	})

	t.Run("unsaved sessions are referenced by placeholder", func(t *testing.T) {
		unsaved := b
		unsaved.ID = ""
		got := DetectConflicts([]Session{a, unsaved}, nil)
		if len(got) != 1 {
			t.Fatalf("expected one conflict, got %d", len(got))
		}
		if !strings.HasPrefix(got[0].AffectedSessionIDs[1], "unsaved:") {
			t.Fatalf("expected placeholder ref, got %v", got[0].AffectedSessionIDs)
		}
	})
}

func TestDetectConflictsNoSelfConflict(t *testing.T) {
	t.Parallel()

	idx := mustIndex(t,
		window("T", "2025-01-15", "morning", "09:00", "12:00"),
		window("T", "2025-01-16", "morning", "09:00", "12:00"),
	)
	sessions := []Session{
		session("a", "T", utc(2025, time.January, 15, 9, 0), 60),
		session("b", "T", utc(2025, time.January, 15, 10, 0), 60),
		session("c", "T", utc(2025, time.January, 16, 11, 0), 60),
	}

	if got := DetectConflicts(sessions, idx); len(got) != 0 {
		t.Fatalf("expected no conflicts, got %+v", got)
	}
}

func TestDetectConflictsMismatch(t *testing.T) {
	t.Parallel()

	ny := window("T", "2025-01-15", "ny-morning", "09:00", "12:00")
	ny.Timezone = "America/New_York"
	idx := mustIndex(t, ny)

	t.Run("session inside window after timezone conversion is compliant", func(t *testing.T) {
		// 14:30 UTC is 09:30 in New York.
		s := session("inside", "T", utc(2025, time.January, 15, 14, 30), 60)
		if got := DetectConflicts([]Session{s}, idx); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("session matching clock strings but not instants is a mismatch", func(t *testing.T) {
		s := session("clock", "T", utc(2025, time.January, 15, 9, 30), 60)
		got := DetectConflicts([]Session{s}, idx)
		if len(got) != 1 {
			t.Fatalf("expected one conflict, got %d", len(got))
		}
		c := got[0]
		if c.Type != ConflictAvailabilityMismatch || c.Severity != SeverityMedium {
			t.Fatalf("unexpected conflict %+v", c)
		}
		if !reflect.DeepEqual(c.AffectedSessionIDs, []string{"clock"}) {
			t.Fatalf("unexpected affected ids %v", c.AffectedSessionIDs)
		}
		if c.Details.Mismatch == nil {
			t.Fatalf("expected mismatch details")
		}
		if c.Details.Mismatch.Date != MustParseDate("2025-01-15") {
			t.Fatalf("unexpected date %s", c.Details.Mismatch.Date)
		}
	})

	t.Run("session overrunning the window end is a mismatch", func(t *testing.T) {
		s := session("overrun", "T", utc(2025, time.January, 15, 16, 30), 60)
		got := DetectConflicts([]Session{s}, idx)
		if len(got) != 1 {
			t.Fatalf("expected one conflict, got %d", len(got))
		}
		if ids := slotIDs(got[0].Details.Mismatch.AvailableWindows); !reflect.DeepEqual(ids, []string{"ny-morning"}) {
			t.Fatalf("expected the day's window in details, got %v", ids)
		}
	})

	t.Run("tutor without availability is a mismatch", func(t *testing.T) {
		s := session("nobody", "U", utc(2025, time.January, 15, 14, 30), 60)
		got := DetectConflicts([]Session{s}, idx)
		if len(got) != 1 || got[0].Type != ConflictAvailabilityMismatch {
			t.Fatalf("expected a mismatch, got %+v", got)
		}
		if got[0].Details.Mismatch.AvailableWindows == nil {
			t.Fatalf("expected empty window list, got nil")
		}
	})
}

func TestDetectConflictsIdempotent(t *testing.T) {
	t.Parallel()

	idx := mustIndex(t, window("T", "2025-01-15", "morning", "09:00", "11:00"))
	sessions := []Session{
		session("a", "T", utc(2025, time.January, 15, 10, 0), 60),
		session("b", "T", utc(2025, time.January, 15, 10, 30), 60),
		session("c", "T", utc(2025, time.January, 15, 15, 0), 60),
	}

	first := DetectConflicts(sessions, idx)
	second := DetectConflicts(sessions, idx)
	if !reflect.DeepEqual(conflictIDs(first), conflictIDs(second)) {
		t.Fatalf("expected identical conflicts, got %v and %v", conflictIDs(first), conflictIDs(second))
	}
	// a/b overlap; b and c fall outside the window.
	if len(first) != 3 {
		t.Fatalf("expected 3 conflicts, got %d", len(first))
	}
	if first[0].Type != ConflictTutorDoubleBooking {
		t.Fatalf("expected double bookings to come first")
	}
}

func TestSortConflicts(t *testing.T) {
	t.Parallel()

	conflicts := []Conflict{
		{ID: "m1", Severity: SeverityMedium},
		{ID: "l1", Severity: SeverityLow},
		{ID: "h1", Severity: SeverityHigh},
		{ID: "m2", Severity: SeverityMedium},
		{ID: "h2", Severity: SeverityHigh},
	}
	SortConflicts(conflicts)

	var got []string
	for _, c := range conflicts {
		got = append(got, c.ID)
	}
	if want := []string{"h1", "h2", "m1", "m2", "l1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestConflictIDDeterministic(t *testing.T) {
	t.Parallel()

	first := ConflictID(ConflictTutorDoubleBooking, "a", "b")
	if first != ConflictID(ConflictTutorDoubleBooking, "b", "a") {
		t.Fatalf("expected id to ignore ref order")
	}
	if first == ConflictID(ConflictAvailabilityMismatch, "a", "b") {
		t.Fatalf("expected conflict type to change the id")
	}
	if !strings.HasPrefix(first, "cf_") || len(first) != 3+16 {
		t.Fatalf("unexpected id format %q", first)
	}
}

func conflictIDs(conflicts []Conflict) []string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}
