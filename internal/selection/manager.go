// Package selection tracks the availability windows a user has picked for a
// batch of session creations.
package selection

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

// Mode controls how Toggle treats an unselected window.
type Mode string

const (
	// ModeSingle keeps at most one window; selecting another replaces it.
	ModeSingle Mode = "single"
	// ModeMulti accumulates windows up to MaxSelections.
	ModeMulti Mode = "multi"
)

// Outcome reports what a Toggle call did.
type Outcome int

const (
	// Refused means the selection was left unchanged because the limit was reached.
	Refused Outcome = iota
	// Added means the window was appended.
	Added
	// Removed means the window was already selected and has been removed.
	Removed
	// Replaced means the window replaced the previous single-mode selection.
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Replaced:
		return "replaced"
	default:
		return "refused"
	}
}

// Options configures a Manager.
type Options struct {
	Mode Mode
	// MaxSelections bounds multi-mode selections. Zero means unlimited.
	MaxSelections int
	Logger        *slog.Logger
}

// Manager holds one in-progress selection. It is meant for a single owner and
// does no locking; callers sharing a Manager must serialize access.
type Manager struct {
	mode    Mode
	limit   int
	logger  *slog.Logger
	order   []scheduler.SlotKey
	windows map[scheduler.SlotKey]scheduler.AvailabilityWindow
}

// New returns an empty selection.
func New(opts Options) *Manager {
	mode := opts.Mode
	if mode != ModeSingle {
		mode = ModeMulti
	}
	limit := opts.MaxSelections
	if limit < 0 {
		limit = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		mode:    mode,
		limit:   limit,
		logger:  logger.With("component", "selection"),
		windows: make(map[scheduler.SlotKey]scheduler.AvailabilityWindow),
	}
}

// Mode returns the current selection mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// SetMode switches modes. Switching to single mode keeps only the most recently
// added window.
func (m *Manager) SetMode(mode Mode) {
	if mode != ModeSingle {
		m.mode = ModeMulti
		return
	}
	m.mode = ModeSingle
	if len(m.order) > 1 {
		last := m.order[len(m.order)-1]
		window := m.windows[last]
		m.Clear()
		m.add(window)
	}
}

// Toggle removes window when it is selected and adds it otherwise. In multi
// mode an add beyond MaxSelections is refused and logged.
func (m *Manager) Toggle(window scheduler.AvailabilityWindow) Outcome {
	key := window.Key()
	if _, ok := m.windows[key]; ok {
		m.remove(key)
		return Removed
	}

	if m.mode == ModeSingle {
		replaced := len(m.order) > 0
		m.Clear()
		m.add(window)
		if replaced {
			return Replaced
		}
		return Added
	}

	if m.limit > 0 && len(m.order) >= m.limit {
		m.logger.Warn("selection limit reached",
			"slot", key.String(),
			"max_selections", m.limit,
		)
		return Refused
	}
	m.add(window)
	return Added
}

// RangeRequest describes a bulk selection.
type RangeRequest struct {
	Availability *scheduler.AvailabilityIndex
	Sessions     []scheduler.Session
	From         scheduler.Date
	To           scheduler.Date
	// TutorID restricts the selection to one tutor. Empty selects across all tutors.
	TutorID string
	// DurationMinutes is the slot length checked against existing sessions.
	DurationMinutes int
}

// SelectRange adds every unselected, unoccupied window dated within
// [From, To]. The whole batch is refused, returning zero, when it would push
// the selection past the limit. In single mode exactly one matching window is
// required.
func (m *Manager) SelectRange(req RangeRequest) (int, error) {
	if req.From.After(req.To) {
		return 0, fmt.Errorf("%w: %s is after %s", scheduler.ErrInvalidRange, req.From, req.To)
	}

	tutors := []string{req.TutorID}
	if req.TutorID == "" {
		tutors = req.Availability.Tutors()
	}

	loc := req.Availability.DefaultLocation()
	var picked []scheduler.AvailabilityWindow
	for _, tutor := range tutors {
		for date := req.From; !date.After(req.To); date = date.AddDays(1) {
			windows := req.Availability.WindowsForDate(tutor, date)
			for _, w := range scheduler.FilterOccupied(tutor, date, windows, req.Sessions, req.DurationMinutes, loc) {
				if m.IsSelected(w.Key()) {
					continue
				}
				picked = append(picked, w)
			}
		}
	}
	if len(picked) == 0 {
		return 0, nil
	}

	if m.mode == ModeSingle {
		if len(picked) != 1 {
			m.logger.Warn("range selection refused in single mode", "matching", len(picked))
			return 0, nil
		}
		m.Clear()
		m.add(picked[0])
		return 1, nil
	}

	if m.limit > 0 && len(m.order)+len(picked) > m.limit {
		m.logger.Warn("range selection refused",
			"selected", len(m.order),
			"matching", len(picked),
			"max_selections", m.limit,
		)
		return 0, nil
	}
	for _, w := range picked {
		m.add(w)
	}
	return len(picked), nil
}

// IsSelected reports whether key is part of the selection.
func (m *Manager) IsSelected(key scheduler.SlotKey) bool {
	_, ok := m.windows[key]
	return ok
}

// Len returns the number of selected windows.
func (m *Manager) Len() int {
	return len(m.order)
}

// Keys returns the selected keys in selection order.
func (m *Manager) Keys() []scheduler.SlotKey {
	keys := make([]scheduler.SlotKey, len(m.order))
	copy(keys, m.order)
	return keys
}

// Selected returns the selected windows in selection order.
func (m *Manager) Selected() []scheduler.AvailabilityWindow {
	windows := make([]scheduler.AvailabilityWindow, 0, len(m.order))
	for _, key := range m.order {
		windows = append(windows, m.windows[key])
	}
	return windows
}

// Clear empties the selection.
func (m *Manager) Clear() {
	m.order = nil
	m.windows = make(map[scheduler.SlotKey]scheduler.AvailabilityWindow)
}

func (m *Manager) add(window scheduler.AvailabilityWindow) {
	key := window.Key()
	m.order = append(m.order, key)
	m.windows[key] = window
}

func (m *Manager) remove(key scheduler.SlotKey) {
	delete(m.windows, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// defaultWindowMinutes is counted for windows without a usable duration.
const defaultWindowMinutes = 60

// Stats summarizes a selection.
type Stats struct {
	Total        int            `json:"total"`
	ByTutor      map[string]int `json:"byTutor"`
	ByDate       map[string]int `json:"byDate"`
	UniqueTutors int            `json:"uniqueTutors"`
	UniqueDates  int            `json:"uniqueDates"`
	TotalMinutes int            `json:"totalMinutes"`
}

// Stats aggregates the current selection.
func (m *Manager) Stats() Stats {
	stats := Stats{
		Total:   len(m.order),
		ByTutor: make(map[string]int),
		ByDate:  make(map[string]int),
	}
	for _, key := range m.order {
		w := m.windows[key]
		stats.ByTutor[w.TutorID]++
		stats.ByDate[w.Date.String()]++

		minutes := w.DurationMinutes()
		if minutes <= 0 {
			minutes = defaultWindowMinutes
		}
		stats.TotalMinutes += minutes
	}
	stats.UniqueTutors = len(stats.ByTutor)
	stats.UniqueDates = len(stats.ByDate)
	return stats
}

// Dates returns the distinct selected dates in ascending order.
func (s Stats) Dates() []string {
	dates := make([]string, 0, len(s.ByDate))
	for date := range s.ByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
