package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/tutor-scheduler/internal/persistence"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

// AvailabilitySource supplies tutor availability windows.
type AvailabilitySource interface {
	ListAvailability(ctx context.Context, query AvailabilityQuery) ([]scheduler.AvailabilityWindow, error)
}

// SessionStore reads and persists sessions.
type SessionStore interface {
	ListSessions(ctx context.Context, query SessionQuery) ([]scheduler.Session, error)
	GetSession(ctx context.Context, id string) (scheduler.Session, error)
	CreateSession(ctx context.Context, request scheduler.CreationRequest) (scheduler.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status scheduler.SessionStatus) (scheduler.Session, error)
}

// BookingOptions configures a BookingService. Zero values fall back to defaults.
type BookingOptions struct {
	Location           *time.Location
	SessionDuration    int
	CancellationWindow time.Duration
	CacheTTL           time.Duration
	CacheSize          int
	Now                func() time.Time
	Logger             *slog.Logger
}

const (
	defaultSessionDuration    = 60
	defaultCancellationWindow = 24 * time.Hour

	// Candidate searches reach up to a week past the report range.
	resolutionLookAhead = 8 * 24 * time.Hour

	// Windows declared in other timezones may sit this far from the course day.
	zoneSpread = 48 * time.Hour
)

// BookingService runs the selection to creation to conflict review flow
// against the availability and session collaborators. It is safe for
// concurrent use.
type BookingService struct {
	availability       AvailabilitySource
	sessions           SessionStore
	loc                *time.Location
	sessionDuration    int
	cancellationWindow time.Duration
	reports            *reportCache
	now                func() time.Time
	logger             *slog.Logger
}

// NewBookingService wires the collaborators.
func NewBookingService(availability AvailabilitySource, sessions SessionStore, opts BookingOptions) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = defaultSessionDuration
	}
	if opts.CancellationWindow <= 0 {
		opts.CancellationWindow = defaultCancellationWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BookingService{
		availability:       availability,
		sessions:           sessions,
		loc:                opts.Location,
		sessionDuration:    opts.SessionDuration,
		cancellationWindow: opts.CancellationWindow,
		reports:            newReportCache(opts.CacheTTL, opts.CacheSize, opts.Now),
		now:                opts.Now,
		logger:             defaultLogger(opts.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// AvailableSlots returns the windows in [From, To] that no active session
// occupies, ordered by date, start time and tutor.
func (s *BookingService) AvailableSlots(ctx context.Context, params AvailableSlotsParams) (slots []scheduler.AvailabilityWindow, err error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	logger := s.loggerWith(ctx, "AvailableSlots", "from", params.From.String(), "to", params.To.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "listing available slots failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "available slots listed", "count", len(slots))
	}()

	if err = validateDateRange(params.From, params.To); err != nil {
		return nil, err
	}

	var idx *scheduler.AvailabilityIndex
	idx, err = s.loadAvailability(ctx, logger, params.TutorIDs, params.From, params.To)
	if err != nil {
		return nil, err
	}

	var sessions []scheduler.Session
	sessions, err = s.listSessions(ctx, params.TutorIDs, s.dayStart(params.From).Add(-zoneSpread), s.dayStart(params.To.AddDays(1)).Add(zoneSpread))
	if err != nil {
		return nil, err
	}

	duration := params.DurationMinutes
	if duration <= 0 {
		duration = s.sessionDuration
	}

	tutors := params.TutorIDs
	if len(tutors) == 0 {
		tutors = idx.Tutors()
	}

	slots = make([]scheduler.AvailabilityWindow, 0)
	for _, tutor := range tutors {
		for date := params.From; !date.After(params.To); date = date.AddDays(1) {
			windows := idx.WindowsForDate(tutor, date)
			if len(windows) == 0 {
				continue
			}
			slots = append(slots, scheduler.FilterOccupied(tutor, date, windows, sessions, duration, s.loc)...)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if c := slots[i].Date.Compare(slots[j].Date); c != 0 {
			return c < 0
		}
		if slots[i].StartTime != slots[j].StartTime {
			return slots[i].StartTime < slots[j].StartTime
		}
		return slots[i].TutorID < slots[j].TutorID
	})
	return slots, nil
}

// CreateSessions turns a selection into sessions. Selections whose window has
// disappeared are skipped, store failures are recorded per request, and the
// rest of the batch proceeds. Conflicts found after creation are reported but
// never roll anything back.
func (s *BookingService) CreateSessions(ctx context.Context, params CreateSessionsParams) (result BatchResult, err error) {
	if s == nil {
		return BatchResult{}, fmt.Errorf("BookingService is nil")
	}
	if s.sessions == nil {
		return BatchResult{}, fmt.Errorf("session store not configured")
	}

	logger := s.loggerWith(ctx, "CreateSessions", "selected", len(params.Keys))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "batch creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"created", len(result.Created),
			"skipped", len(result.Skipped),
			"failed", len(result.Failed),
			"conflicts", len(result.Conflicts),
		).InfoContext(ctx, "batch creation finished")
	}()

	vErr := &ValidationError{}
	if len(params.Keys) == 0 {
		vErr.add("keys", "at least one slot must be selected")
	}
	if params.DurationMinutes < 0 {
		vErr.add("duration_minutes", "must not be negative")
	}
	if params.MaxParticipants < 0 {
		vErr.add("max_participants", "must not be negative")
	}
	if vErr.HasErrors() {
		return BatchResult{}, vErr
	}

	tutors, from, to := selectionBounds(params.Keys)

	var idx *scheduler.AvailabilityIndex
	idx, err = s.loadAvailability(ctx, logger, tutors, from, to)
	if err != nil {
		return BatchResult{}, err
	}

	duration := params.DurationMinutes
	if duration == 0 {
		duration = s.sessionDuration
	}
	requests, skipped := scheduler.BuildCreationRequests(params.Keys, idx, scheduler.CreationTemplate{
		Title:           params.Title,
		DurationMinutes: duration,
		MaxParticipants: params.MaxParticipants,
	})

	result.Requested = len(params.Keys)
	result.Skipped = skipped
	for _, skip := range skipped {
		logger.WarnContext(ctx, "selected slot no longer available", "slot", skip.Key.String())
	}

	created := make(map[string]struct{}, len(requests))
	for _, request := range requests {
		session, createErr := s.sessions.CreateSession(ctx, request)
		if createErr != nil {
			createErr = mapSessionRepoError(createErr)
			logger.ErrorContext(ctx, "session creation failed",
				"slot", request.LinkedAvailabilitySlotID,
				"error", createErr,
				"error_kind", ErrorKind(createErr),
			)
			result.Failed = append(result.Failed, FailedCreation{Request: request, Err: createErr})
			continue
		}
		result.Created = append(result.Created, session)
		created[session.Ref()] = struct{}{}
	}

	if len(result.Created) > 0 {
		s.reports.Invalidate()
	}
	if summary := result.Summary(); summary != "" {
		logger.WarnContext(ctx, summary)
	}

	if len(created) == 0 {
		return result, nil
	}

	// Re-validate the tutors' sessions around the new bookings.
	var existing []scheduler.Session
	existing, err = s.listSessions(ctx, tutors, s.dayStart(from).Add(-24*time.Hour), s.dayStart(to.AddDays(1)).Add(24*time.Hour))
	if err != nil {
		return result, err
	}
	for _, conflict := range scheduler.DetectConflicts(existing, idx) {
		for _, id := range conflict.AffectedSessionIDs {
			if _, ok := created[id]; ok {
				result.Conflicts = append(result.Conflicts, conflict)
				break
			}
		}
	}
	scheduler.SortConflicts(result.Conflicts)
	return result, nil
}

// ConflictReport detects conflicts among sessions overlapping [From, To] and
// proposes a resolution for each. Reports are cached until a write through the
// service or the cache TTL elapses.
func (s *BookingService) ConflictReport(ctx context.Context, params ReportParams) (report Report, err error) {
	if s == nil {
		return Report{}, fmt.Errorf("BookingService is nil")
	}
	if s.sessions == nil {
		return Report{}, fmt.Errorf("session store not configured")
	}

	logger := s.loggerWith(ctx, "ConflictReport", "from", params.From.String(), "to", params.To.String())
	cached := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "conflict report failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conflicts", len(report.Conflicts), "cached", cached).InfoContext(ctx, "conflict report ready")
	}()

	if err = validateDateRange(params.From, params.To); err != nil {
		return Report{}, err
	}

	key := buildReportCacheKey(params)
	if !params.Fresh {
		if hit, ok := s.reports.Get(key); ok {
			cached = true
			return hit, nil
		}
	}

	rangeStart := s.dayStart(params.From)
	rangeEnd := s.dayStart(params.To.AddDays(1))

	var inRange []scheduler.Session
	inRange, err = s.listSessions(ctx, params.TutorIDs, rangeStart, rangeEnd)
	if err != nil {
		return Report{}, err
	}

	// Candidate searches reach a day before each double-booked session and a
	// week past the range. Availability for that span is loaded, together with
	// every session that could occupy one of its windows.
	now := s.now()
	searchFrom := rangeStart.Add(-scheduler.CandidateLookBehind)
	for _, session := range inRange {
		if from := session.ScheduledStart.Add(-scheduler.CandidateLookBehind); from.Before(searchFrom) {
			searchFrom = from
		}
	}
	searchTo := rangeEnd.Add(resolutionLookAhead)
	if ahead := now.Add(resolutionLookAhead); ahead.After(searchTo) {
		searchTo = ahead
	}
	firstDate := scheduler.DateOf(searchFrom.In(s.loc)).AddDays(-1)
	lastDate := scheduler.DateOf(searchTo.In(s.loc)).AddDays(1)

	var idx *scheduler.AvailabilityIndex
	idx, err = s.loadAvailability(ctx, logger, params.TutorIDs, firstDate, lastDate)
	if err != nil {
		return Report{}, err
	}

	var sessions []scheduler.Session
	sessions, err = s.listSessions(ctx, params.TutorIDs, s.dayStart(firstDate).Add(-zoneSpread), s.dayStart(lastDate.AddDays(1)).Add(zoneSpread))
	if err != nil {
		return Report{}, err
	}

	conflicts := scheduler.DetectConflicts(inRange, idx)
	scheduler.SortConflicts(conflicts)

	resolutions := make([]scheduler.Resolution, 0, len(conflicts))
	for _, conflict := range conflicts {
		resolutions = append(resolutions, scheduler.ProposeResolution(conflict, sessions, idx, now))
	}

	report = Report{
		GeneratedAt: now,
		From:        params.From,
		To:          params.To,
		Conflicts:   conflicts,
		Resolutions: resolutions,
	}
	s.reports.Store(key, report)
	return report, nil
}

// ApplyResolution accepts one proposed slot for a conflict. The conflict is
// cleared from the cached report and a RescheduleRequest is returned for the
// session collaborator to carry out; the session itself is not modified.
func (s *BookingService) ApplyResolution(ctx context.Context, params ApplyResolutionParams) (request RescheduleRequest, err error) {
	if s == nil {
		return RescheduleRequest{}, fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "ApplyResolution", "conflict_id", params.ConflictID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "applying resolution failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", request.SessionID, "new_start", request.NewStart).InfoContext(ctx, "resolution applied")
	}()

	lookup := params.Report
	lookup.Fresh = false
	var report Report
	report, err = s.ConflictReport(ctx, lookup)
	if err != nil {
		return RescheduleRequest{}, err
	}

	resolution, ok := report.Resolution(params.ConflictID)
	if !ok {
		return RescheduleRequest{}, ErrNotFound
	}

	vErr := &ValidationError{}
	switch {
	case resolution.Strategy == scheduler.StrategyManual:
		vErr.add("conflict_id", "conflict requires manual handling")
	case !resolution.HasCandidate(params.Slot):
		vErr.add("slot", "slot is not one of the proposed candidates")
	}
	if vErr.HasErrors() {
		return RescheduleRequest{}, vErr
	}

	request = RescheduleRequest{
		ConflictID:               resolution.ConflictID,
		SessionID:                resolution.TargetSessionID,
		NewStart:                 params.Slot.Start,
		DurationMinutes:          int(params.Slot.End.Sub(params.Slot.Start) / time.Minute),
		LinkedAvailabilitySlotID: params.Slot.Key.String(),
	}

	s.reports.Replace(buildReportCacheKey(params.Report), report.without(params.ConflictID))
	return request, nil
}

// CancelSession cancels a scheduled session. Cancellation closes
// CancellationWindow before the session starts.
func (s *BookingService) CancelSession(ctx context.Context, id string) (session scheduler.Session, err error) {
	if s == nil {
		return scheduler.Session{}, fmt.Errorf("BookingService is nil")
	}
	if s.sessions == nil {
		return scheduler.Session{}, fmt.Errorf("session store not configured")
	}

	logger := s.loggerWith(ctx, "CancelSession", "session_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancellation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session cancelled")
	}()

	existing, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return scheduler.Session{}, mapSessionRepoError(err)
	}

	if err = s.cancellable(existing); err != nil {
		return scheduler.Session{}, err
	}

	session, err = s.sessions.UpdateSessionStatus(ctx, id, scheduler.StatusCancelled)
	if err != nil {
		return scheduler.Session{}, mapSessionRepoError(err)
	}
	s.reports.Invalidate()
	return session, nil
}

// CanCancel reports whether session may still be cancelled.
func (s *BookingService) CanCancel(session scheduler.Session) bool {
	return s.cancellable(session) == nil
}

func (s *BookingService) cancellable(session scheduler.Session) error {
	if session.Status != scheduler.StatusScheduled {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}
	if !s.now().Before(session.ScheduledStart.Add(-s.cancellationWindow)) {
		return ErrCancellationWindowClosed
	}
	return nil
}

func (s *BookingService) loadAvailability(ctx context.Context, logger *slog.Logger, tutorIDs []string, from, to scheduler.Date) (*scheduler.AvailabilityIndex, error) {
	if s.availability == nil {
		idx, _ := scheduler.NewAvailabilityIndex(nil, s.loc)
		return idx, nil
	}
	windows, err := s.availability.ListAvailability(ctx, AvailabilityQuery{TutorIDs: tutorIDs, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	idx, rejected := scheduler.NewAvailabilityIndex(windows, s.loc)
	for _, r := range rejected {
		logger.WarnContext(ctx, "availability window rejected",
			"slot", r.Window.Key().String(),
			"error", r.Err,
		)
	}
	return idx, nil
}

func (s *BookingService) listSessions(ctx context.Context, tutorIDs []string, from, to time.Time) ([]scheduler.Session, error) {
	if s.sessions == nil {
		return nil, nil
	}
	sessions, err := s.sessions.ListSessions(ctx, SessionQuery{TutorIDs: tutorIDs, From: from, To: to})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *BookingService) dayStart(date scheduler.Date) time.Time {
	return date.At(0, s.loc)
}

func validateDateRange(from, to scheduler.Date) error {
	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if from.After(to) {
		return fmt.Errorf("%w: %s is after %s", scheduler.ErrInvalidRange, from, to)
	}
	return nil
}

// selectionBounds returns the distinct tutors and the date span covered by keys.
func selectionBounds(keys []scheduler.SlotKey) ([]string, scheduler.Date, scheduler.Date) {
	seen := make(map[string]struct{}, len(keys))
	tutors := make([]string, 0, len(keys))
	var from, to scheduler.Date
	for i, key := range keys {
		if _, ok := seen[key.TutorID]; !ok {
			seen[key.TutorID] = struct{}{}
			tutors = append(tutors, key.TutorID)
		}
		if i == 0 || key.Date.Before(from) {
			from = key.Date
		}
		if i == 0 || key.Date.After(to) {
			to = key.Date
		}
	}
	sort.Strings(tutors)
	return tutors, from, to
}

func mapSessionRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("session", "session violates a store constraint")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
