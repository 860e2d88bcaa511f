/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/friendsincode/inkintime/internal/calsource"
	"github.com/friendsincode/inkintime/internal/workweek"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGracePeriodHours = 6
	DefaultViewWindowDays   = 180
	DefaultCompileSchedule  = "@every 15m"
)

// Appointment is a bookable appointment type.
type Appointment struct {
	Label       string `yaml:"label" json:"label"`
	Minutes     int    `yaml:"minutes" json:"minutes"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Duration is the slot length of the appointment.
func (a Appointment) Duration() time.Duration {
	return time.Duration(a.Minutes) * time.Minute
}

// Calendars groups the busy-time sources.
type Calendars struct {
	Blocked []calsource.Spec `yaml:"blocked"`
}

// Schedule is the YAML schedule file.
type Schedule struct {
	Timezone         string         `yaml:"timezone"`
	WorkWeek         []workweek.Row `yaml:"work_week"`
	Appointments     []Appointment  `yaml:"appointments"`
	GracePeriodHours *int           `yaml:"grace_period_hours"`
	ViewWindowDays   int            `yaml:"view_window_days"`
	WindowStart      *time.Time     `yaml:"window_start"`
	WindowEnd        *time.Time     `yaml:"window_end"`
	CompileSchedule  string         `yaml:"compile_schedule"`
	Calendars        Calendars      `yaml:"calendars"`

	location *time.Location
	week     *workweek.WeeklySchedule
}

// LoadSchedule reads and validates a schedule file.
func LoadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	s, err := ParseSchedule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseSchedule decodes and validates schedule YAML. Unknown keys are
// rejected.
func ParseSchedule(data []byte) (*Schedule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Schedule
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schedule file is empty")
		}
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schedule) applyDefaults() {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.GracePeriodHours == nil {
		grace := DefaultGracePeriodHours
		s.GracePeriodHours = &grace
	}
	if s.ViewWindowDays == 0 {
		s.ViewWindowDays = DefaultViewWindowDays
	}
	if s.CompileSchedule == "" {
		s.CompileSchedule = DefaultCompileSchedule
	}
}

// Validate checks every field and parses the weekly pattern. On success the
// parsed location and weekly schedule are cached on s.
func (s *Schedule) Validate() error {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}

	if len(s.WorkWeek) == 0 {
		return errors.New("work_week must have at least one row")
	}
	week, err := workweek.Build(s.WorkWeek)
	if err != nil {
		return fmt.Errorf("work_week: %w", err)
	}

	if len(s.Appointments) == 0 {
		return errors.New("appointments must list at least one appointment")
	}
	seen := make(map[string]bool, len(s.Appointments))
	for i, a := range s.Appointments {
		label := strings.TrimSpace(a.Label)
		if label == "" {
			return fmt.Errorf("appointments[%d]: label is required", i)
		}
		if seen[label] {
			return fmt.Errorf("appointments[%d]: duplicate label %q", i, label)
		}
		seen[label] = true
		if a.Minutes <= 0 {
			return fmt.Errorf("appointments[%d] (%s): minutes must be positive, got %d", i, label, a.Minutes)
		}
	}

	if s.GracePeriodHours != nil && *s.GracePeriodHours < 0 {
		return fmt.Errorf("grace_period_hours must not be negative")
	}
	if s.ViewWindowDays < 0 {
		return fmt.Errorf("view_window_days must not be negative")
	}
	if (s.WindowStart == nil) != (s.WindowEnd == nil) {
		return errors.New("window_start and window_end must be set together")
	}
	if s.WindowStart != nil && !s.WindowStart.Before(*s.WindowEnd) {
		return errors.New("window_start must be before window_end")
	}

	if _, err := cron.ParseStandard(s.CompileSchedule); err != nil {
		return fmt.Errorf("compile_schedule %q: %w", s.CompileSchedule, err)
	}

	for i, spec := range s.Calendars.Blocked {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("calendars.blocked[%d]: %w", i, err)
		}
	}

	s.location = loc
	s.week = week
	return nil
}

// Location returns the schedule's time zone.
func (s *Schedule) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Week returns the parsed weekly pattern.
func (s *Schedule) Week() *workweek.WeeklySchedule {
	return s.week
}

// GracePeriod is the lead time before the first bookable slot.
func (s *Schedule) GracePeriod() time.Duration {
	if s.GracePeriodHours == nil {
		return DefaultGracePeriodHours * time.Hour
	}
	return time.Duration(*s.GracePeriodHours) * time.Hour
}

// ViewWindow is how far past the window start slots are compiled.
func (s *Schedule) ViewWindow() time.Duration {
	return time.Duration(s.ViewWindowDays) * 24 * time.Hour
}

// Window returns the compile window for a pass starting at now. Explicit
// bounds win; otherwise the window opens at the top of the current hour plus
// the grace period and runs for the view window.
func (s *Schedule) Window(now time.Time) (time.Time, time.Time) {
	if s.WindowStart != nil && s.WindowEnd != nil {
		return *s.WindowStart, *s.WindowEnd
	}
	local := now.In(s.Location())
	top := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, local.Location())
	start := top.Add(s.GracePeriod())
	return start, start.Add(s.ViewWindow())
}

// Appointment looks up an appointment by label.
func (s *Schedule) Appointment(label string) (Appointment, bool) {
	for _, a := range s.Appointments {
		if a.Label == label {
			return a, true
		}
	}
	return Appointment{}, false
}
