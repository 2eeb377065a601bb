package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// RejectedWindow records an availability window excluded from an index.
type RejectedWindow struct {
	Window AvailabilityWindow
	Err    error
}

// AvailabilityIndex groups availability windows by tutor and date.
//
// The index is immutable after construction and safe for concurrent reads.
type AvailabilityIndex struct {
	defaultLoc *time.Location
	byTutor    map[string]map[Date][]AvailabilityWindow
	locations  map[string]*time.Location
	size       int
	sealed     bool
}

// NewAvailabilityIndex builds an index over windows. Windows that fail
// validation, name an unknown timezone, or repeat an existing key are left out
// and returned as rejected; the remaining windows are still indexed.
func NewAvailabilityIndex(windows []AvailabilityWindow, defaultLoc *time.Location) (*AvailabilityIndex, []RejectedWindow) {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	idx := &AvailabilityIndex{
		defaultLoc: defaultLoc,
		byTutor:    make(map[string]map[Date][]AvailabilityWindow),
		locations:  make(map[string]*time.Location),
	}

	var rejected []RejectedWindow
	seen := make(map[SlotKey]struct{}, len(windows))
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			rejected = append(rejected, RejectedWindow{Window: w, Err: err})
			continue
		}
		if _, err := idx.resolve(w); err != nil {
			rejected = append(rejected, RejectedWindow{Window: w, Err: err})
			continue
		}
		key := w.Key()
		if _, dup := seen[key]; dup {
			rejected = append(rejected, RejectedWindow{Window: w, Err: fmt.Errorf("%w: %s", ErrDuplicateWindow, key)})
			continue
		}
		seen[key] = struct{}{}

		dates, ok := idx.byTutor[w.TutorID]
		if !ok {
			dates = make(map[Date][]AvailabilityWindow)
			idx.byTutor[w.TutorID] = dates
		}
		dates[w.Date] = append(dates[w.Date], w)
		idx.size++
	}

	for _, dates := range idx.byTutor {
		for date, list := range dates {
			sortWindows(list)
			dates[date] = list
		}
	}
	idx.sealed = true

	return idx, rejected
}

// Len returns the number of indexed windows.
func (idx *AvailabilityIndex) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// DefaultLocation returns the timezone applied to windows without one.
func (idx *AvailabilityIndex) DefaultLocation() *time.Location {
	if idx == nil || idx.defaultLoc == nil {
		return time.UTC
	}
	return idx.defaultLoc
}

// Tutors returns the indexed tutor ids in ascending order.
func (idx *AvailabilityIndex) Tutors() []string {
	if idx == nil {
		return nil
	}
	tutors := make([]string, 0, len(idx.byTutor))
	for tutor := range idx.byTutor {
		tutors = append(tutors, tutor)
	}
	sort.Strings(tutors)
	return tutors
}

// FindSlot looks up a window by tutor, date and slot id. A missing tutor, date
// or slot is reported through the boolean, never as an error.
func (idx *AvailabilityIndex) FindSlot(tutorID string, date Date, slotID string) (AvailabilityWindow, bool) {
	if idx == nil {
		return AvailabilityWindow{}, false
	}
	for _, w := range idx.byTutor[tutorID][date] {
		if w.SlotID == slotID {
			return w, true
		}
	}
	return AvailabilityWindow{}, false
}

// Lookup is FindSlot keyed by a SlotKey.
func (idx *AvailabilityIndex) Lookup(key SlotKey) (AvailabilityWindow, bool) {
	return idx.FindSlot(key.TutorID, key.Date, key.SlotID)
}

// WindowsForDate returns the tutor's windows on date ordered by start time.
func (idx *AvailabilityIndex) WindowsForDate(tutorID string, date Date) []AvailabilityWindow {
	if idx == nil {
		return []AvailabilityWindow{}
	}
	list := idx.byTutor[tutorID][date]
	out := make([]AvailabilityWindow, len(list))
	copy(out, list)
	return out
}

// WindowsInRange returns the tutor's windows dated within [start, end], ordered
// by date, start time and slot id.
func (idx *AvailabilityIndex) WindowsInRange(tutorID string, start, end Date) ([]AvailabilityWindow, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, start, end)
	}
	out := []AvailabilityWindow{}
	if idx == nil {
		return out, nil
	}
	for date, list := range idx.byTutor[tutorID] {
		if date.Before(start) || date.After(end) {
			continue
		}
		out = append(out, list...)
	}
	sortWindows(out)
	return out, nil
}

// Interval returns the absolute range of an indexed window.
func (idx *AvailabilityIndex) Interval(w AvailabilityWindow) Range {
	loc, err := idx.resolve(w)
	if err != nil {
		loc = idx.DefaultLocation()
	}
	return Range{Start: w.Date.At(w.StartTime, loc), End: w.Date.At(w.EndTime, loc)}
}

// Location returns the timezone the window is expressed in.
func (idx *AvailabilityIndex) Location(w AvailabilityWindow) *time.Location {
	loc, err := idx.resolve(w)
	if err != nil {
		return idx.DefaultLocation()
	}
	return loc
}

// resolve loads a window's timezone. Loaded zones are memoized while the index
// is being built; once sealed the map is only read.
func (idx *AvailabilityIndex) resolve(w AvailabilityWindow) (*time.Location, error) {
	if idx == nil {
		return w.Location(time.UTC)
	}
	if w.Timezone == "" {
		return idx.DefaultLocation(), nil
	}
	if loc, ok := idx.locations[w.Timezone]; ok {
		return loc, nil
	}
	loc, err := w.Location(idx.DefaultLocation())
	if err != nil {
		return nil, err
	}
	if !idx.sealed {
		idx.locations[w.Timezone] = loc
	}
	return loc, nil
}

func sortWindows(list []AvailabilityWindow) {
	sort.SliceStable(list, func(i, j int) bool {
		if c := list[i].Date.Compare(list[j].Date); c != 0 {
			return c < 0
		}
		if list[i].StartTime != list[j].StartTime {
			return list[i].StartTime < list[j].StartTime
		}
		return list[i].SlotID < list[j].SlotID
	})
}
