package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/tutor-scheduler/internal/application"
	"github.com/example/tutor-scheduler/internal/audit"
	"github.com/example/tutor-scheduler/internal/config"
	"github.com/example/tutor-scheduler/internal/ingest"
	"github.com/example/tutor-scheduler/internal/logging"
	"github.com/example/tutor-scheduler/internal/persistence"
	"github.com/example/tutor-scheduler/internal/persistence/sqlite"
	"github.com/example/tutor-scheduler/internal/recurrence"
	"github.com/example/tutor-scheduler/internal/scheduler"
	"github.com/example/tutor-scheduler/internal/selection"
)

const usage = `usage: scheduler <command> [flags]

commands:
  migrate   apply pending schema migrations
  import    load windows, templates and sessions from a JSON document
  slots     list bookable availability windows
  book      select a range of windows and create sessions for them
  report    print the conflict report with proposed resolutions
  resolve   accept a proposed slot for one conflict
  cancel    cancel a scheduled session
  audit     run the periodic conflict audit`

// Template expansion covers four weeks unless -to says otherwise.
const defaultImportDays = 28

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", os.Stderr).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("command failed", "error", err, "error_kind", application.ErrorKind(err))
		os.Exit(1)
	}
}

// app carries the wiring shared by every command.
type app struct {
	cfg     config.Config
	storage *sqlite.Storage
	service *application.BookingService
	logger  *slog.Logger
	out     io.Writer
	now     func() time.Time
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, sqlite.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	a := &app{
		cfg:     cfg,
		storage: storage,
		logger:  logger,
		out:     out,
		now:     time.Now,
	}
	a.service = application.NewBookingService(
		newAvailabilitySourceAdapter(storage),
		newSessionStoreAdapter(storage),
		application.BookingOptions{
			Location:           cfg.Location,
			SessionDuration:    cfg.SessionDuration,
			CancellationWindow: cfg.CancellationWindow,
			CacheTTL:           cfg.ReportCacheTTL,
			CacheSize:          cfg.ReportCacheSize,
			Now:                a.now,
			Logger:             logger,
		},
	)

	switch command {
	case "migrate":
		logger.Info("schema is up to date", "dsn", cfg.SQLiteDSN)
		return nil
	case "import":
		return a.importDocument(ctx, rest)
	case "slots":
		return a.listSlots(ctx, rest)
	case "book":
		return a.book(ctx, rest)
	case "report":
		return a.report(ctx, rest)
	case "resolve":
		return a.resolve(ctx, rest)
	case "cancel":
		return a.cancel(ctx, rest)
	case "audit":
		return a.audit(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// rangeFlags registers the -tutor, -from and -to flags shared by most commands.
type rangeFlags struct {
	tutors string
	from   string
	to     string
}

func (r *rangeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.tutors, "tutor", "", "comma separated tutor ids (default all tutors)")
	fs.StringVar(&r.from, "from", "", "first date, YYYY-MM-DD (default today)")
	fs.StringVar(&r.to, "to", "", "last date, YYYY-MM-DD (default from plus the audit horizon)")
}

func (r *rangeFlags) resolve(today scheduler.Date, defaultDays int) ([]string, scheduler.Date, scheduler.Date, error) {
	from, to := today, scheduler.Date{}
	if r.from != "" {
		parsed, err := scheduler.ParseDate(r.from)
		if err != nil {
			return nil, scheduler.Date{}, scheduler.Date{}, fmt.Errorf("%w: -from: %v", errUsage, err)
		}
		from = parsed
	}
	if r.to != "" {
		parsed, err := scheduler.ParseDate(r.to)
		if err != nil {
			return nil, scheduler.Date{}, scheduler.Date{}, fmt.Errorf("%w: -to: %v", errUsage, err)
		}
		to = parsed
	} else {
		if defaultDays <= 0 {
			defaultDays = 1
		}
		to = from.AddDays(defaultDays - 1)
	}
	return splitList(r.tutors), from, to, nil
}

func (a *app) today() scheduler.Date {
	return scheduler.DateOf(a.now().In(a.cfg.Location))
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

type importSummary struct {
	Windows         int            `json:"windows"`
	TemplateWindows int            `json:"templateWindows"`
	Sessions        int            `json:"sessions"`
	Rejected        []rejectedView `json:"rejected,omitempty"`
}

type rejectedView struct {
	Kind   string `json:"kind"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (a *app) importDocument(ctx context.Context, args []string) error {
	fs := newFlagSet("import")
	var (
		rf   rangeFlags
		path string
	)
	rf.register(fs)
	fs.StringVar(&path, "file", "", "JSON document to import, - for stdin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: import requires -file", errUsage)
	}
	_, from, to, err := rf.resolve(a.today(), defaultImportDays)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	doc, rejects, err := ingest.Decode(r)
	if err != nil {
		return err
	}

	summary := importSummary{}
	for _, rej := range rejects {
		summary.Rejected = append(summary.Rejected, rejectedView{Kind: string(rej.Kind), Index: rej.Index, Reason: rej.Err.Error()})
	}

	expanded, err := recurrence.NewEngine(0).ExpandAll(doc.Templates, from, to)
	if err != nil {
		a.logger.Warn("some templates could not be expanded", "error", err)
		summary.Rejected = append(summary.Rejected, rejectedView{Kind: string(ingest.KindTemplate), Index: -1, Reason: err.Error()})
	}

	windows := make([]persistence.AvailabilityWindow, 0, len(doc.Windows)+len(expanded))
	for _, w := range doc.Windows {
		windows = append(windows, toPersistenceWindow(w))
	}
	for _, w := range expanded {
		windows = append(windows, toPersistenceWindow(w))
	}
	if len(windows) > 0 {
		if err := a.storage.UpsertWindows(ctx, windows); err != nil {
			return fmt.Errorf("store windows: %w", err)
		}
	}
	summary.Windows = len(doc.Windows)
	summary.TemplateWindows = len(expanded)

	for i, s := range doc.Sessions {
		if _, err := a.storage.CreateSession(ctx, toPersistenceSession(s)); err != nil {
			a.logger.Warn("session not imported", "index", i, "session_id", s.ID, "error", err)
			summary.Rejected = append(summary.Rejected, rejectedView{Kind: string(ingest.KindSession), Index: i, Reason: err.Error()})
			continue
		}
		summary.Sessions++
	}

	a.logger.Info("import finished",
		"windows", summary.Windows,
		"template_windows", summary.TemplateWindows,
		"sessions", summary.Sessions,
		"rejected", len(summary.Rejected),
	)
	return a.print(summary)
}

func (a *app) listSlots(ctx context.Context, args []string) error {
	fs := newFlagSet("slots")
	var (
		rf       rangeFlags
		duration int
	)
	rf.register(fs)
	fs.IntVar(&duration, "duration", 0, "session length in minutes (default configured duration)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tutors, from, to, err := rf.resolve(a.today(), a.cfg.AuditHorizonDays)
	if err != nil {
		return err
	}

	slots, err := a.service.AvailableSlots(ctx, application.AvailableSlotsParams{
		TutorIDs:        tutors,
		From:            from,
		To:              to,
		DurationMinutes: duration,
	})
	if err != nil {
		return err
	}
	if slots == nil {
		slots = []scheduler.AvailabilityWindow{}
	}
	return a.print(slots)
}

type batchView struct {
	Requested int                  `json:"requested"`
	Created   []scheduler.Session  `json:"created"`
	Skipped   []rejectedView       `json:"skipped,omitempty"`
	Failed    []rejectedView       `json:"failed,omitempty"`
	Conflicts []scheduler.Conflict `json:"conflicts,omitempty"`
	Summary   string               `json:"summary,omitempty"`
}

func (a *app) book(ctx context.Context, args []string) error {
	fs := newFlagSet("book")
	var (
		rf              rangeFlags
		title           string
		duration        int
		maxParticipants int
		single          bool
	)
	rf.register(fs)
	fs.StringVar(&title, "title", "", "session title")
	fs.IntVar(&duration, "duration", 0, "session length in minutes (default configured duration)")
	fs.IntVar(&maxParticipants, "max-participants", 0, "participant limit, 0 for none")
	fs.BoolVar(&single, "single", false, "book exactly one window")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tutors, from, to, err := rf.resolve(a.today(), 1)
	if err != nil {
		return err
	}

	slots, err := a.service.AvailableSlots(ctx, application.AvailableSlotsParams{
		TutorIDs:        tutors,
		From:            from,
		To:              to,
		DurationMinutes: duration,
	})
	if err != nil {
		return err
	}

	mode := selection.ModeMulti
	if single {
		mode = selection.ModeSingle
	}
	picker := selection.New(selection.Options{
		Mode:          mode,
		MaxSelections: a.cfg.MaxSelections,
		Logger:        a.logger,
	})
	idx, _ := scheduler.NewAvailabilityIndex(slots, a.cfg.Location)
	for _, tutor := range tutorsOrAll(tutors) {
		if _, err := picker.SelectRange(selection.RangeRequest{
			Availability: idx,
			From:         from,
			To:           to,
			TutorID:      tutor,
		}); err != nil {
			return err
		}
	}
	if picker.Len() == 0 {
		return fmt.Errorf("%w: no bookable windows selected", application.ErrNotFound)
	}

	stats := picker.Stats()
	a.logger.Info("windows selected", "count", picker.Len(), "dates", stats.Dates())

	result, err := a.service.CreateSessions(ctx, application.CreateSessionsParams{
		Keys:            picker.Keys(),
		Title:           title,
		DurationMinutes: duration,
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		return err
	}

	view := batchView{
		Requested: result.Requested,
		Created:   result.Created,
		Conflicts: result.Conflicts,
		Summary:   result.Summary(),
	}
	if view.Created == nil {
		view.Created = []scheduler.Session{}
	}
	for _, s := range result.Skipped {
		view.Skipped = append(view.Skipped, rejectedView{Kind: s.Key.String(), Reason: s.Reason()})
	}
	for i, f := range result.Failed {
		view.Failed = append(view.Failed, rejectedView{Kind: f.Request.LinkedAvailabilitySlotID, Index: i, Reason: f.Err.Error()})
	}
	return a.print(view)
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := newFlagSet("report")
	var rf rangeFlags
	rf.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	tutors, from, to, err := rf.resolve(a.today(), a.cfg.AuditHorizonDays)
	if err != nil {
		return err
	}

	report, err := a.service.ConflictReport(ctx, application.ReportParams{
		TutorIDs: tutors,
		From:     from,
		To:       to,
		Fresh:    true,
	})
	if err != nil {
		return err
	}
	return a.print(report)
}

func (a *app) resolve(ctx context.Context, args []string) error {
	fs := newFlagSet("resolve")
	var (
		rf         rangeFlags
		conflictID string
		candidate  int
	)
	rf.register(fs)
	fs.StringVar(&conflictID, "conflict", "", "conflict id from the report")
	fs.IntVar(&candidate, "candidate", 0, "index of the proposed slot to accept")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if conflictID == "" {
		return fmt.Errorf("%w: resolve requires -conflict", errUsage)
	}
	tutors, from, to, err := rf.resolve(a.today(), a.cfg.AuditHorizonDays)
	if err != nil {
		return err
	}

	params := application.ReportParams{TutorIDs: tutors, From: from, To: to}
	report, err := a.service.ConflictReport(ctx, params)
	if err != nil {
		return err
	}
	resolution, ok := report.Resolution(conflictID)
	if !ok {
		return fmt.Errorf("conflict %q: %w", conflictID, application.ErrNotFound)
	}
	if candidate < 0 || candidate >= len(resolution.CandidateSlots) {
		return fmt.Errorf("%w: candidate %d out of range, %d proposed", errUsage, candidate, len(resolution.CandidateSlots))
	}

	request, err := a.service.ApplyResolution(ctx, application.ApplyResolutionParams{
		Report:     params,
		ConflictID: conflictID,
		Slot:       resolution.CandidateSlots[candidate],
	})
	if err != nil {
		return err
	}
	return a.print(request)
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := newFlagSet("cancel")
	var id string
	fs.StringVar(&id, "id", "", "session id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: cancel requires -id", errUsage)
	}

	session, err := a.service.CancelSession(ctx, id)
	if err != nil {
		return err
	}
	return a.print(session)
}

func (a *app) audit(ctx context.Context, args []string) error {
	fs := newFlagSet("audit")
	var (
		tutors string
		once   bool
	)
	fs.StringVar(&tutors, "tutor", "", "comma separated tutor ids (default all tutors)")
	fs.BoolVar(&once, "once", false, "run a single audit and exit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	worker, err := audit.NewWorker(a.service, audit.Options{
		Schedule:    a.cfg.AuditSchedule,
		HorizonDays: a.cfg.AuditHorizonDays,
		TutorIDs:    splitList(tutors),
		Location:    a.cfg.Location,
		Now:         a.now,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	if once {
		result, err := worker.RunOnce(ctx)
		if err != nil {
			return err
		}
		return a.print(result)
	}

	if err := worker.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("audit scheduled", "next_run", worker.NextRun())
	<-ctx.Done()
	worker.Stop()
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tutorsOrAll yields one empty id, meaning every tutor, when none are named.
func tutorsOrAll(tutors []string) []string {
	if len(tutors) == 0 {
		return []string{""}
	}
	return tutors
}

type availabilitySourceAdapter struct {
	repo persistence.AvailabilityRepository
}

func newAvailabilitySourceAdapter(repo persistence.AvailabilityRepository) *availabilitySourceAdapter {
	return &availabilitySourceAdapter{repo: repo}
}

func (a *availabilitySourceAdapter) ListAvailability(ctx context.Context, query application.AvailabilityQuery) ([]scheduler.AvailabilityWindow, error) {
	filter := persistence.WindowFilter{TutorIDs: query.TutorIDs}
	if !query.From.IsZero() {
		filter.From = query.From.String()
	}
	if !query.To.IsZero() {
		filter.To = query.To.String()
	}
	models, err := a.repo.ListWindows(ctx, filter)
	if err != nil {
		return nil, err
	}
	windows := make([]scheduler.AvailabilityWindow, 0, len(models))
	for _, model := range models {
		w, err := toSchedulerWindow(model)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

type sessionStoreAdapter struct {
	repo persistence.SessionRepository
}

func newSessionStoreAdapter(repo persistence.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) ListSessions(ctx context.Context, query application.SessionQuery) ([]scheduler.Session, error) {
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		TutorIDs: query.TutorIDs,
		From:     query.From,
		To:       query.To,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]scheduler.Session, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toSchedulerSession(model))
	}
	return sessions, nil
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, id string) (scheduler.Session, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return scheduler.Session{}, err
	}
	return toSchedulerSession(stored), nil
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, request scheduler.CreationRequest) (scheduler.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(request.Session()))
	if err != nil {
		return scheduler.Session{}, err
	}
	return toSchedulerSession(stored), nil
}

func (a *sessionStoreAdapter) UpdateSessionStatus(ctx context.Context, id string, status scheduler.SessionStatus) (scheduler.Session, error) {
	stored, err := a.repo.UpdateSessionStatus(ctx, id, string(status))
	if err != nil {
		return scheduler.Session{}, err
	}
	return toSchedulerSession(stored), nil
}

func toSchedulerWindow(model persistence.AvailabilityWindow) (scheduler.AvailabilityWindow, error) {
	date, err := scheduler.ParseDate(model.Date)
	if err != nil {
		return scheduler.AvailabilityWindow{}, fmt.Errorf("window %s/%s: %w", model.TutorID, model.SlotID, err)
	}
	return scheduler.AvailabilityWindow{
		TutorID:   model.TutorID,
		Date:      date,
		SlotID:    model.SlotID,
		StartTime: scheduler.ClockTime(model.StartMinute),
		EndTime:   scheduler.ClockTime(model.EndMinute),
		Timezone:  model.Timezone,
	}, nil
}

func toPersistenceWindow(w scheduler.AvailabilityWindow) persistence.AvailabilityWindow {
	return persistence.AvailabilityWindow{
		TutorID:     w.TutorID,
		Date:        w.Date.String(),
		SlotID:      w.SlotID,
		StartMinute: int(w.StartTime),
		EndMinute:   int(w.EndTime),
		Timezone:    w.Timezone,
	}
}

func toSchedulerSession(model persistence.Session) scheduler.Session {
	return scheduler.Session{
		ID:                       model.ID,
		TutorID:                  model.TutorID,
		Title:                    model.Title,
		ScheduledStart:           model.ScheduledStart,
		DurationMinutes:          model.DurationMinutes,
		MaxParticipants:          model.MaxParticipants,
		EnrolledStudentIDs:       append([]string(nil), model.EnrolledStudentIDs...),
		Status:                   scheduler.SessionStatus(model.Status),
		LinkedAvailabilitySlotID: model.LinkedSlotID,
	}
}

func toPersistenceSession(s scheduler.Session) persistence.Session {
	return persistence.Session{
		ID:                 s.ID,
		TutorID:            s.TutorID,
		Title:              s.Title,
		ScheduledStart:     s.ScheduledStart,
		DurationMinutes:    s.DurationMinutes,
		MaxParticipants:    s.MaxParticipants,
		Status:             string(s.Status),
		LinkedSlotID:       s.LinkedAvailabilitySlotID,
		EnrolledStudentIDs: append([]string(nil), s.EnrolledStudentIDs...),
	}
}
