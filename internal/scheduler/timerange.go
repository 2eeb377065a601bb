package scheduler

import "time"

// Overlaps reports whether the half-open ranges [aStart, aEnd) and [bStart, bEnd)
// intersect. Ranges that only touch at a boundary do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Range is a half-open interval of absolute instants.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range starting at start and lasting d.
func NewRange(start time.Time, d time.Duration) Range {
	return Range{Start: start, End: start.Add(d)}
}

// IsValid reports whether the range has a positive length.
func (r Range) IsValid() bool {
	return r.End.After(r.Start)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether r and other intersect.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r.Start, r.End, other.Start, other.End)
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}
