/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsToSQLite(t *testing.T) {
	t.Setenv("INKINTIME_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite || cfg.DBDSN != "inkintime.db" {
		t.Fatalf("backend = %s dsn = %q", cfg.DBBackend, cfg.DBDSN)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("INKINTIME_ENV_FILE", "")
	t.Setenv("INKINTIME_DB_BACKEND", "postgres")
	t.Setenv("INKINTIME_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("IIT_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("INKINTIME_CACHE_TTL_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("cache ttl = %v", cfg.CacheTTL)
	}
}

func TestLoadRequiresDSNForServerBackends(t *testing.T) {
	t.Setenv("INKINTIME_ENV_FILE", "")
	t.Setenv("INKINTIME_DB_BACKEND", "mysql")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DSN")
	}
	t.Setenv("INKINTIME_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestLoadProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("INKINTIME_ENV_FILE", "")
	t.Setenv("INKINTIME_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without a signing key")
	}
	t.Setenv("INKINTIME_JWT_SIGNING_KEY", "prod-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with key: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production")
	}
}

func TestLoadMergesDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "INKINTIME_HTTP_PORT=9191\nINKINTIME_LOG_FORMAT=json\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("INKINTIME_ENV_FILE", path)
	t.Setenv("INKINTIME_LOG_FORMAT", "console")
	// Registered so the value godotenv sets is undone after the test.
	t.Setenv("INKINTIME_HTTP_PORT", "")
	os.Unsetenv("INKINTIME_HTTP_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 9191 {
		t.Fatalf("port = %d, want value from .env", cfg.HTTPPort)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("log format = %q, want environment to win", cfg.LogFormat)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("INKINTIME_ENV_FILE", "")
	t.Setenv("GRACE_PERIOD", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

const sampleSchedule = `
timezone: America/New_York
work_week:
  - days: "mon-f"
    times: "8AM-11a, 1PM-7:00PM"
  - days: "sat"
    times: "10AM-4PM"
appointments:
  - label: Full Consultation
    minutes: 60
  - label: Quick Call
    minutes: 15
calendars:
  blocked:
    - https://example.com/busy.ics
    - kind: file
      path: ./busy.ics
`

func TestParseScheduleAppliesDefaults(t *testing.T) {
	s, err := ParseSchedule([]byte(sampleSchedule))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.GracePeriod() != 6*time.Hour || s.ViewWindow() != 180*24*time.Hour {
		t.Fatalf("grace = %v view = %v", s.GracePeriod(), s.ViewWindow())
	}
	if s.CompileSchedule != DefaultCompileSchedule {
		t.Fatalf("compile schedule = %q", s.CompileSchedule)
	}
	if s.Location().String() != "America/New_York" {
		t.Fatalf("location = %v", s.Location())
	}
	if s.Week() == nil || s.Week().Len() != 11 {
		t.Fatalf("week not built: %+v", s.Week())
	}
	if a, ok := s.Appointment("Quick Call"); !ok || a.Duration() != 15*time.Minute {
		t.Fatalf("appointment = %+v, %v", a, ok)
	}
	if len(s.Calendars.Blocked) != 2 {
		t.Fatalf("calendars = %+v", s.Calendars.Blocked)
	}
}

func TestParseScheduleZeroGraceIsKept(t *testing.T) {
	s, err := ParseSchedule([]byte(sampleSchedule + "grace_period_hours: 0\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.GracePeriod() != 0 {
		t.Fatalf("grace = %v, want 0", s.GracePeriod())
	}
}

func TestScheduleWindow(t *testing.T) {
	s, err := ParseSchedule([]byte(sampleSchedule + "grace_period_hours: 2\nview_window_days: 30\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := time.Date(2026, 3, 2, 14, 42, 10, 0, time.UTC)
	start, end := s.Window(now)
	want := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if end.Sub(start) != 30*24*time.Hour {
		t.Fatalf("window length = %v", end.Sub(start))
	}

	explicit, err := ParseSchedule([]byte(sampleSchedule + "window_start: 2026-01-01T00:00:00Z\nwindow_end: 2026-02-01T00:00:00Z\n"))
	if err != nil {
		t.Fatalf("parse explicit: %v", err)
	}
	start, end = explicit.Window(now)
	if start.Month() != time.January || end.Month() != time.February {
		t.Fatalf("explicit window = %v - %v", start, end)
	}
}

func TestParseScheduleRejectsInvalidFiles(t *testing.T) {
	tests := map[string]string{
		"bad days":       strings.Replace(sampleSchedule, `"mon-f"`, `"f-mon"`, 1),
		"bad times":      strings.Replace(sampleSchedule, `"10AM-4PM"`, `"10 - 4"`, 1),
		"bad timezone":   strings.Replace(sampleSchedule, "America/New_York", "Mars/Olympus", 1),
		"zero minutes":   strings.Replace(sampleSchedule, "minutes: 15", "minutes: 0", 1),
		"duplicate label":strings.Replace(sampleSchedule, "Quick Call", "Full Consultation", 1),
		"unknown key":    sampleSchedule + "workday: 9-5\n",
		"bad cron":       sampleSchedule + "compile_schedule: every now and then\n",
		"half window":    sampleSchedule + "window_start: 2026-01-01T00:00:00Z\n",
		"bad calendar":   strings.Replace(sampleSchedule, "https://example.com/busy.ics", "ftp://example.com/busy.ics", 1),
		"negative grace": sampleSchedule + "grace_period_hours: -1\n",
		"empty":          "",
	}
	for name, doc := range tests {
		if _, err := ParseSchedule([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yml")
	if err := os.WriteFile(path, []byte(sampleSchedule), 0o600); err != nil {
		t.Fatalf("write schedule: %v", err)
	}
	if _, err := LoadSchedule(path); err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if _, err := LoadSchedule(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
