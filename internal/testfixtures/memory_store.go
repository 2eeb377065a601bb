package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/tutor-scheduler/internal/application"
	"github.com/example/tutor-scheduler/internal/persistence"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

// MemoryStore is an in-memory availability source and session store for
// application tests.
type MemoryStore struct {
	mu       sync.RWMutex
	windows  map[scheduler.SlotKey]scheduler.AvailabilityWindow
	sessions map[string]scheduler.Session
	failures map[string]error
	ids      *IDGenerator
}

// NewMemoryStore returns an empty store assigning ids from ids. A nil
// generator uses a fresh "session" sequence.
func NewMemoryStore(ids *IDGenerator) *MemoryStore {
	if ids == nil {
		ids = NewIDGenerator("")
	}
	return &MemoryStore{
		windows:  make(map[scheduler.SlotKey]scheduler.AvailabilityWindow),
		sessions: make(map[string]scheduler.Session),
		failures: make(map[string]error),
		ids:      ids,
	}
}

// AddWindows stores windows, replacing any with the same key.
func (m *MemoryStore) AddWindows(windows ...scheduler.AvailabilityWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range windows {
		m.windows[w.Key()] = w
	}
}

// RemoveWindow deletes the window with key and reports whether it existed.
func (m *MemoryStore) RemoveWindow(key scheduler.SlotKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.windows[key]
	delete(m.windows, key)
	return ok
}

// AddSessions stores sessions as they are. Sessions without an id get one.
func (m *MemoryStore) AddSessions(sessions ...scheduler.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s.ID == "" {
			s.ID = m.ids.Next()
		}
		m.sessions[s.ID] = s
	}
}

// FailCreate makes CreateSession return err for requests linked to key.
func (m *MemoryStore) FailCreate(key scheduler.SlotKey, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key.String()] = err
}

// Sessions returns every stored session ordered by start and id.
func (m *MemoryStore) Sessions() []scheduler.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedSessionsLocked(func(scheduler.Session) bool { return true })
}

// ListAvailability implements application.AvailabilitySource.
func (m *MemoryStore) ListAvailability(_ context.Context, query application.AvailabilityQuery) ([]scheduler.AvailabilityWindow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tutors := toSet(query.TutorIDs)
	windows := make([]scheduler.AvailabilityWindow, 0, len(m.windows))
	for _, w := range m.windows {
		if len(tutors) > 0 {
			if _, ok := tutors[w.TutorID]; !ok {
				continue
			}
		}
		if !query.From.IsZero() && w.Date.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && w.Date.After(query.To) {
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].Key().String() < windows[j].Key().String()
	})
	return windows, nil
}

// ListSessions implements application.SessionStore.
func (m *MemoryStore) ListSessions(_ context.Context, query application.SessionQuery) ([]scheduler.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tutors := toSet(query.TutorIDs)
	return m.sortedSessionsLocked(func(s scheduler.Session) bool {
		if len(tutors) > 0 {
			if _, ok := tutors[s.TutorID]; !ok {
				return false
			}
		}
		if !query.To.IsZero() && !s.ScheduledStart.Before(query.To) {
			return false
		}
		if !query.From.IsZero() && !s.End().After(query.From) {
			return false
		}
		return true
	}), nil
}

// GetSession implements application.SessionStore.
func (m *MemoryStore) GetSession(_ context.Context, id string) (scheduler.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return scheduler.Session{}, persistence.ErrNotFound
	}
	return s, nil
}

// CreateSession implements application.SessionStore.
func (m *MemoryStore) CreateSession(_ context.Context, request scheduler.CreationRequest) (scheduler.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[request.LinkedAvailabilitySlotID]; ok {
		return scheduler.Session{}, err
	}
	for _, existing := range m.sessions {
		if existing.LinkedAvailabilitySlotID != "" && existing.LinkedAvailabilitySlotID == request.LinkedAvailabilitySlotID && !existing.Cancelled() {
			return scheduler.Session{}, fmt.Errorf("%w: slot %s already booked", persistence.ErrDuplicate, request.LinkedAvailabilitySlotID)
		}
	}

	s := request.Session()
	s.ID = m.ids.Next()
	m.sessions[s.ID] = s
	return s, nil
}

// UpdateSessionStatus implements application.SessionStore.
func (m *MemoryStore) UpdateSessionStatus(_ context.Context, id string, status scheduler.SessionStatus) (scheduler.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return scheduler.Session{}, persistence.ErrNotFound
	}
	s.Status = status
	m.sessions[id] = s
	return s, nil
}

func (m *MemoryStore) sortedSessionsLocked(keep func(scheduler.Session) bool) []scheduler.Session {
	sessions := make([]scheduler.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if keep(s) {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].ScheduledStart.Equal(sessions[j].ScheduledStart) {
			return sessions[i].ScheduledStart.Before(sessions[j].ScheduledStart)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
