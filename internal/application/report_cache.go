package application

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/tutor-scheduler/internal/scheduler"
)

// reportCache stores recently computed conflict reports so repeated queries
// over an unchanged session set skip detection. Any write through the service
// purges it.
type reportCache struct {
	now func() time.Time
	ttl time.Duration
	lru *expirable.LRU[string, reportCacheEntry]
}

type reportCacheEntry struct {
	report    Report
	expiresAt time.Time
}

func newReportCache(ttl time.Duration, maxEntries int, now func() time.Time) *reportCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &reportCache{
		now: now,
		ttl: ttl,
		lru: expirable.NewLRU[string, reportCacheEntry](maxEntries, nil, ttl),
	}
}

func (c *reportCache) Get(key string) (Report, bool) {
	if c == nil {
		return Report{}, false
	}
	entry, ok := c.lru.Get(key)
	if !ok {
		return Report{}, false
	}
	// The LRU expires on wall time; the service clock decides as well.
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return Report{}, false
	}
	return cloneReport(entry.report), true
}

func (c *reportCache) Store(key string, report Report) {
	if c == nil {
		return
	}
	c.lru.Add(key, reportCacheEntry{report: cloneReport(report), expiresAt: c.now().Add(c.ttl)})
}

// Replace overwrites an entry without extending its lifetime.
func (c *reportCache) Replace(key string, report Report) {
	if c == nil {
		return
	}
	entry, ok := c.lru.Get(key)
	if !ok {
		return
	}
	entry.report = cloneReport(report)
	c.lru.Add(key, entry)
}

func (c *reportCache) Invalidate() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *reportCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func cloneReport(report Report) Report {
	out := report
	out.Conflicts = make([]scheduler.Conflict, len(report.Conflicts))
	for i, conflict := range report.Conflicts {
		ids := make([]string, len(conflict.AffectedSessionIDs))
		copy(ids, conflict.AffectedSessionIDs)
		conflict.AffectedSessionIDs = ids
		conflict.Details = cloneDetails(conflict.Details)
		out.Conflicts[i] = conflict
	}
	out.Resolutions = make([]scheduler.Resolution, len(report.Resolutions))
	for i, res := range report.Resolutions {
		res.CandidateSlots = cloneSlots(res.CandidateSlots)
		if res.Actions != nil {
			actions := make([]scheduler.Action, len(res.Actions))
			for j, action := range res.Actions {
				action.Slots = cloneSlots(action.Slots)
				actions[j] = action
			}
			res.Actions = actions
		}
		out.Resolutions[i] = res
	}
	return out
}

func cloneSlots(slots []scheduler.CandidateSlot) []scheduler.CandidateSlot {
	out := make([]scheduler.CandidateSlot, len(slots))
	copy(out, slots)
	return out
}

func cloneDetails(details scheduler.ConflictDetails) scheduler.ConflictDetails {
	out := details
	if details.DoubleBooking != nil {
		db := *details.DoubleBooking
		out.DoubleBooking = &db
	}
	if details.Mismatch != nil {
		mm := *details.Mismatch
		mm.AvailableWindows = append([]scheduler.AvailabilityWindow(nil), details.Mismatch.AvailableWindows...)
		out.Mismatch = &mm
	}
	return out
}

func buildReportCacheKey(params ReportParams) string {
	tutors := make([]string, len(params.TutorIDs))
	copy(tutors, params.TutorIDs)
	sort.Strings(tutors)

	builder := strings.Builder{}
	builder.WriteString(strings.Join(tutors, ","))
	builder.WriteString("|")
	builder.WriteString(params.From.String())
	builder.WriteString("|")
	builder.WriteString(params.To.String())
	return builder.String()
}
