package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger to round trip through the context")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger for bare context")
	}
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected nil logger to leave the context unchanged")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "slot", "t|2025-01-15|a")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info record to be filtered, got %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected JSON warn record, got %q", out)
	}
	if ParseLevel("nonsense") != slog.LevelInfo || ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatalf("unexpected level parsing")
	}
}
