package recurrence

import (
	"testing"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

func BenchmarkEngineExpand(b *testing.B) {
	engine := NewEngine(0)
	template := weekdayTemplate()
	from := scheduler.MustParseDate("2025-01-01")
	to := from.AddDays(90)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		windows, err := engine.Expand(template, from, to)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(windows) == 0 {
			b.Fatal("expected windows to be generated")
		}
	}
}
