package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Config captures environment driven configuration values for the scheduler.
type Config struct {
	SQLiteDSN          string
	CourseTimezone     string
	Location           *time.Location
	SessionDuration    int
	MaxSelections      int
	ReportCacheTTL     time.Duration
	ReportCacheSize    int
	CancellationWindow time.Duration
	AuditSchedule      string
	AuditHorizonDays   int
	LogLevel           string
}

// Load parses configuration values from the current process environment.
//
// Every variable is optional. Values that fail to parse are collected and
// reported together.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:          "file:scheduler.db?_pragma=foreign_keys(1)",
		CourseTimezone:     "UTC",
		Location:           time.UTC,
		SessionDuration:    60,
		MaxSelections:      0,
		ReportCacheTTL:     30 * time.Second,
		ReportCacheSize:    128,
		CancellationWindow: 24 * time.Hour,
		AuditSchedule:      "@every 5m",
		AuditHorizonDays:   14,
		LogLevel:           "info",
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_COURSE_TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_COURSE_TIMEZONE")
		} else {
			cfg.CourseTimezone = tz
			cfg.Location = loc
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_DURATION")); value != "" {
		minutes, err := strconv.Atoi(value)
		if err != nil || minutes <= 0 || minutes > 24*60 {
			invalid = append(invalid, "SCHEDULER_SESSION_DURATION")
		} else {
			cfg.SessionDuration = minutes
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_MAX_SELECTIONS")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			invalid = append(invalid, "SCHEDULER_MAX_SELECTIONS")
		} else {
			cfg.MaxSelections = limit
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_REPORT_CACHE_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_REPORT_CACHE_TTL")
		} else {
			cfg.ReportCacheTTL = ttl
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_REPORT_CACHE_SIZE")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || size <= 0 {
			invalid = append(invalid, "SCHEDULER_REPORT_CACHE_SIZE")
		} else {
			cfg.ReportCacheSize = size
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_CANCELLATION_WINDOW")); value != "" {
		window, err := time.ParseDuration(value)
		if err != nil || window < 0 {
			invalid = append(invalid, "SCHEDULER_CANCELLATION_WINDOW")
		} else {
			cfg.CancellationWindow = window
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_AUDIT_SCHEDULE")); value != "" {
		if _, err := cron.ParseStandard(value); err != nil {
			invalid = append(invalid, "SCHEDULER_AUDIT_SCHEDULE")
		} else {
			cfg.AuditSchedule = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_AUDIT_HORIZON_DAYS")); value != "" {
		days, err := strconv.Atoi(value)
		if err != nil || days <= 0 {
			invalid = append(invalid, "SCHEDULER_AUDIT_HORIZON_DAYS")
		} else {
			cfg.AuditHorizonDays = days
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); value != "" {
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(value)
		default:
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
