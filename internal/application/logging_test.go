package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/tutor-scheduler/internal/logging"
	"github.com/example/tutor-scheduler/internal/scheduler"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                    nil,
		"not_found":           fmt.Errorf("lookup: %w", ErrNotFound),
		"cancellation_window": ErrCancellationWindowClosed,
		"invalid_transition":  ErrInvalidTransition,
		"invalid_range":       fmt.Errorf("%w: reversed", scheduler.ErrInvalidRange),
		"slot_unavailable":    scheduler.ErrSlotUnavailable,
		"validation":          &ValidationError{FieldErrors: map[string]string{"keys": "required"}},
		"unexpected":          errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "BookingService", "CreateSessions").Info("done")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay unused, got %q", base.String())
	}
	if !strings.Contains(scoped.String(), "service=BookingService") || !strings.Contains(scoped.String(), "operation=CreateSessions") {
		t.Fatalf("expected service attributes on context logger, got %q", scoped.String())
	}
}
