// Package audit periodically re-runs the conflict report over a rolling
// horizon and logs what it finds.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/tutor-scheduler/internal/application"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

// Reporter produces conflict reports.
type Reporter interface {
	ConflictReport(ctx context.Context, params application.ReportParams) (application.Report, error)
}

// Options configures a Worker. Zero values fall back to defaults.
type Options struct {
	Schedule    string
	HorizonDays int
	TutorIDs    []string
	Location    *time.Location
	Now         func() time.Time
	Logger      *slog.Logger
}

const (
	defaultSchedule    = "@every 5m"
	defaultHorizonDays = 14
)

// Result summarises one audit run.
type Result struct {
	RanAt     time.Time
	From      scheduler.Date
	To        scheduler.Date
	Conflicts int
	ByType    map[scheduler.ConflictType]int
}

// Worker runs the audit on a cron schedule.
type Worker struct {
	reporter Reporter
	schedule string
	horizon  int
	tutorIDs []string
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu   sync.Mutex
	last *Result
}

// NewWorker validates the schedule and prepares a stopped worker.
func NewWorker(reporter Reporter, opts Options) (*Worker, error) {
	if opts.Schedule == "" {
		opts.Schedule = defaultSchedule
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, fmt.Errorf("audit: invalid schedule %q: %w", opts.Schedule, err)
	}

	return &Worker{
		reporter: reporter,
		schedule: opts.Schedule,
		horizon:  opts.HorizonDays,
		tutorIDs: append([]string(nil), opts.TutorIDs...),
		loc:      opts.Location,
		now:      opts.Now,
		logger:   opts.Logger.With("component", "audit"),
		cron:     cron.New(cron.WithLocation(opts.Location)),
	}, nil
}

// Start schedules the audit and starts the cron runner. Runs use ctx, so
// cancelling it aborts an audit in flight.
func (w *Worker) Start(ctx context.Context) error {
	id, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("audit run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("audit: schedule %q: %w", w.schedule, err)
	}
	w.entryID = id
	w.cron.Start()
	w.logger.Info("audit worker started", "schedule", w.schedule, "horizon_days", w.horizon)
	return nil
}

// Stop halts the cron runner and waits for a running audit to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("audit worker stopped")
}

// NextRun returns the next scheduled run, or the zero time when not started.
func (w *Worker) NextRun() time.Time {
	if w.entryID == 0 {
		return time.Time{}
	}
	return w.cron.Entry(w.entryID).Next
}

// RunOnce audits today and the following horizon days with a fresh report.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	ranAt := w.now()
	from := scheduler.DateOf(ranAt.In(w.loc))
	to := from.AddDays(w.horizon - 1)

	report, err := w.reporter.ConflictReport(ctx, application.ReportParams{
		TutorIDs: w.tutorIDs,
		From:     from,
		To:       to,
		Fresh:    true,
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RanAt:     ranAt,
		From:      from,
		To:        to,
		Conflicts: len(report.Conflicts),
		ByType:    make(map[scheduler.ConflictType]int),
	}
	for _, c := range report.Conflicts {
		result.ByType[c.Type]++
		w.logger.Warn("conflict detected",
			"conflict_id", c.ID,
			"type", string(c.Type),
			"severity", string(c.Severity),
			"sessions", c.AffectedSessionIDs,
		)
	}
	w.logger.Info("audit completed", "from", from.String(), "to", to.String(), "conflicts", result.Conflicts)

	w.mu.Lock()
	w.last = &result
	w.mu.Unlock()
	return result, nil
}

// LastResult returns the most recent successful run.
func (w *Worker) LastResult() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return Result{}, false
	}
	return *w.last, true
}
