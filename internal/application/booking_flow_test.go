package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/tutor-scheduler/internal/application"
	"github.com/example/tutor-scheduler/internal/scheduler"
	"github.com/example/tutor-scheduler/internal/testfixtures"
)

func TestBookingFlow(t *testing.T) {
	ctx := context.Background()
	factory := testfixtures.NewServiceFactory()
	store := factory.Store
	service := factory.NewBookingService(application.BookingOptions{})

	wed := testfixtures.ReferenceDate(2)
	thu := testfixtures.ReferenceDate(3)

	morning := testfixtures.NewWindowFixture(testfixtures.WithWindowSlot(wed, "morning"), testfixtures.WithWindowTimes(9, 10)).Domain()
	late := testfixtures.NewWindowFixture(testfixtures.WithWindowSlot(wed, "late"), testfixtures.WithWindowTimes(10, 11)).Domain()
	afternoon := testfixtures.NewWindowFixture(testfixtures.WithWindowSlot(wed, "afternoon"), testfixtures.WithWindowTimes(14, 15)).Domain()
	thursday := testfixtures.NewWindowFixture(testfixtures.WithWindowSlot(thu, "morning"), testfixtures.WithWindowTimes(9, 10)).Domain()
	store.AddWindows(morning, late, afternoon, thursday)

	store.AddSessions(testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("existing"),
		testfixtures.WithSessionStart(wed.At(scheduler.Clock(10, 0), time.UTC)),
		testfixtures.WithSessionLinkedSlot(late.Key()),
	).Domain())

	slots, err := service.AvailableSlots(ctx, application.AvailableSlotsParams{From: wed, To: thu})
	if err != nil {
		t.Fatalf("AvailableSlots returned error: %v", err)
	}
	if len(slots) != 3 || slots[0].SlotID != "morning" || slots[1].SlotID != "afternoon" || slots[2].Date != thu {
		t.Fatalf("unexpected available slots: %#v", slots)
	}

	// The Thursday window disappears between selection and submission.
	store.RemoveWindow(thursday.Key())

	batch, err := service.CreateSessions(ctx, application.CreateSessionsParams{
		Keys:  []scheduler.SlotKey{morning.Key(), thursday.Key()},
		Title: "Algebra",
	})
	if err != nil {
		t.Fatalf("CreateSessions returned error: %v", err)
	}
	if len(batch.Created) != 1 || len(batch.Skipped) != 1 || len(batch.Conflicts) != 0 {
		t.Fatalf("unexpected batch result: %#v", batch)
	}
	if batch.Summary() != "1 of 2 selected slots are no longer available and were skipped" {
		t.Fatalf("unexpected summary: %q", batch.Summary())
	}
	createdID := batch.Created[0].ID

	store.AddSessions(testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("overlap"),
		testfixtures.WithSessionStart(wed.At(scheduler.Clock(9, 30), time.UTC)),
	).Domain())

	params := application.ReportParams{From: wed, To: wed, Fresh: true}
	report, err := service.ConflictReport(ctx, params)
	if err != nil {
		t.Fatalf("ConflictReport returned error: %v", err)
	}
	if len(report.Conflicts) != 3 {
		t.Fatalf("expected 3 conflicts, got %#v", report.Conflicts)
	}
	first := report.Conflicts[0]
	if first.Type != scheduler.ConflictTutorDoubleBooking || first.AffectedSessionIDs[0] != createdID || first.AffectedSessionIDs[1] != "overlap" {
		t.Fatalf("unexpected first conflict: %#v", first)
	}
	if report.Conflicts[2].Type != scheduler.ConflictAvailabilityMismatch {
		t.Fatalf("expected mismatch last, got %#v", report.Conflicts[2])
	}

	resolution := report.Resolutions[0]
	if resolution.TargetSessionID != "overlap" || len(resolution.CandidateSlots) != 1 || resolution.CandidateSlots[0].Key != afternoon.Key() {
		t.Fatalf("unexpected resolution: %#v", resolution)
	}

	params.Fresh = false
	request, err := service.ApplyResolution(ctx, application.ApplyResolutionParams{
		Report:     params,
		ConflictID: first.ID,
		Slot:       resolution.CandidateSlots[0],
	})
	if err != nil {
		t.Fatalf("ApplyResolution returned error: %v", err)
	}
	if request.SessionID != "overlap" || !request.NewStart.Equal(wed.At(scheduler.Clock(14, 0), time.UTC)) || request.DurationMinutes != 60 {
		t.Fatalf("unexpected reschedule request: %#v", request)
	}

	cached, err := service.ConflictReport(ctx, params)
	if err != nil {
		t.Fatalf("ConflictReport returned error: %v", err)
	}
	if len(cached.Conflicts) != 2 {
		t.Fatalf("expected applied conflict to be cleared, got %d conflicts", len(cached.Conflicts))
	}

	if _, err := service.CancelSession(ctx, createdID); err != nil {
		t.Fatalf("CancelSession returned error: %v", err)
	}

	factory.Clock.Set(wed.At(scheduler.Clock(8, 30), time.UTC))
	if _, err := service.CancelSession(ctx, "existing"); !errors.Is(err, application.ErrCancellationWindowClosed) {
		t.Fatalf("expected ErrCancellationWindowClosed, got %v", err)
	}
}
