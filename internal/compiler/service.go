/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package compiler runs full compile passes: it regenerates the primary slot
// table from the weekly pattern, applies busy calendars, and publishes the
// result to the secondary table.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/inkintime/internal/block"
	"github.com/friendsincode/inkintime/internal/calsource"
	"github.com/friendsincode/inkintime/internal/config"
	"github.com/friendsincode/inkintime/internal/events"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/friendsincode/inkintime/internal/store"
	"github.com/friendsincode/inkintime/internal/telemetry"
	"github.com/rs/zerolog"
)

// Skip reasons reported in Result.SkipReason.
const (
	SkipInProcess = "compile already running in this process"
	SkipLocked    = "primary buffer is locked"
)

// Result describes one compile pass.
type Result struct {
	Skipped    bool                 `json:"skipped"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Window     block.Window         `json:"window"`
	Labels     []block.CompileStats `json:"labels,omitempty"`
	BusyEvents int                  `json:"busy_events"`
	Marked     int64                `json:"marked_unavailable"`
	Cleaned    int64                `json:"cleaned"`
	Published  int64                `json:"published"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Error      string               `json:"error,omitempty"`
}

// Service orchestrates compile passes.
type Service struct {
	store    *store.Store
	schedule *config.Schedule
	sources  []calsource.Source
	compiler *block.Compiler
	marker   *block.Marker
	bus      events.Publisher
	logger   zerolog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last *Result
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sends compile events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.bus = p }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the compile service. The schedule must already be validated.
func New(st *store.Store, schedule *config.Schedule, sources []calsource.Source, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if schedule == nil || schedule.Week() == nil {
		return nil, errors.New("compiler: schedule has not been validated")
	}
	logger = logger.With().Str("component", "compiler").Logger()
	s := &Service{
		store:    st,
		schedule: schedule,
		sources:  sources,
		compiler: block.NewCompiler(schedule.Week(), schedule.Location(), logger),
		marker:   block.NewMarker(logger),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Schedule returns the schedule the service compiles.
func (s *Service) Schedule() *config.Schedule { return s.schedule }

// LastResult returns the most recent pass that took the lock.
func (s *Service) LastResult() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

// Compile runs one pass. When another writer holds the primary buffer the
// pass is skipped with no side effects and a nil error. When a step fails
// after the lock was taken, primary is restored from the published snapshot
// and unlocked before the error is returned.
func (s *Service) Compile(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "compiler", "compile")
	defer span.End()

	now := s.now()
	res := Result{StartedAt: now.UTC()}

	release, ok := s.store.BeginWrite()
	if !ok {
		return s.skip(res, SkipInProcess), nil
	}
	defer release()

	acquired, err := s.store.TryLock(ctx, models.RolePrimary)
	if err != nil {
		telemetry.RecordError(span, err)
		return s.fail(res, fmt.Errorf("lock primary: %w", err)), err
	}
	if !acquired {
		return s.skip(res, SkipLocked), nil
	}
	telemetry.SetBufferLocked(string(models.RolePrimary), true)
	s.publish(events.EventCompileStarted, events.Payload{"started_at": res.StartedAt})

	if err := s.build(ctx, now, &res); err != nil {
		telemetry.RecordError(span, err)
		s.rollback(ctx)
		return s.fail(res, err), err
	}

	if err := s.store.DuplicatePrimaryToSecondary(ctx); err != nil {
		// Primary is complete and readable; only the snapshot is stale.
		err = fmt.Errorf("publish snapshot: %w", err)
		telemetry.RecordError(span, err)
		return s.fail(res, err), err
	}

	published, err := s.store.Count(ctx, models.RoleSecondary)
	if err != nil {
		s.logger.Warn().Err(err).Msg("count published slots")
	}
	res.Published = published
	res.FinishedAt = s.now().UTC()

	took := res.FinishedAt.Sub(res.StartedAt)
	telemetry.CompileRunsTotal.WithLabelValues("success").Inc()
	telemetry.CompileDuration.Observe(took.Seconds())
	telemetry.CompileLastSuccess.Set(float64(res.FinishedAt.Unix()))
	telemetry.SlotsPublished.Set(float64(published))
	telemetry.AddSpanAttributes(span, map[string]any{
		"compile.published": published,
		"compile.window":    res.Window.Start.Format(time.RFC3339) + "/" + res.Window.End.Format(time.RFC3339),
	})

	s.remember(res)
	s.publish(events.EventSlotsPublished, events.Payload{
		"rows":         published,
		"window_start": res.Window.Start,
		"window_end":   res.Window.End,
		"finished_at":  res.FinishedAt,
	})

	s.logger.Info().
		Int64("published", published).
		Int64("marked", res.Marked).
		Int64("cleaned", res.Cleaned).
		Dur("took", took).
		Msg("compile pass finished")
	return res, nil
}

// build regenerates primary. The caller holds the primary lock.
func (s *Service) build(ctx context.Context, now time.Time, res *Result) error {
	start, end := s.schedule.Window(now)
	res.Window = block.Window{Start: start, End: end}

	if err := s.store.Clear(ctx, models.RolePrimary); err != nil {
		return err
	}
	sess := s.store.Session(models.RolePrimary)

	for _, appt := range s.schedule.Appointments {
		stats, err := s.compiler.Compile(ctx, sess, res.Window, appt.Label, appt.Duration())
		if err != nil {
			return fmt.Errorf("compile %q: %w", appt.Label, err)
		}
		telemetry.SlotsGeneratedTotal.WithLabelValues(appt.Label).Add(float64(stats.Inserted))
		res.Labels = append(res.Labels, stats)
	}

	busy, err := s.busyEvents(ctx, res.Window)
	if err != nil {
		return err
	}
	res.BusyEvents = len(busy)

	res.Marked, err = s.marker.Mark(ctx, sess, busy)
	if err != nil {
		return err
	}
	telemetry.SlotsMarkedUnavailableTotal.Add(float64(res.Marked))

	res.Cleaned, err = block.Cleanup(ctx, sess, now.UTC())
	if err != nil {
		return err
	}
	telemetry.SlotsCleanedTotal.Add(float64(res.Cleaned))

	if err := s.store.RecordLastRun(ctx, now); err != nil {
		return err
	}
	if err := s.store.Unlock(ctx, models.RolePrimary); err != nil {
		return err
	}
	telemetry.SetBufferLocked(string(models.RolePrimary), false)
	return nil
}

// busyEvents reads every source. Any failing source fails the pass so a
// snapshot is never published without its blocked times.
func (s *Service) busyEvents(ctx context.Context, window block.Window) ([]calsource.BusyEvent, error) {
	var all []calsource.BusyEvent
	for _, src := range s.sources {
		evs, err := src.Events(ctx)
		if err != nil {
			telemetry.CalendarFetchErrorsTotal.WithLabelValues(src.Name()).Inc()
			return nil, fmt.Errorf("busy calendar %s: %w", src.Name(), err)
		}
		evs = calsource.Window(evs, window.Start, window.End)
		telemetry.CalendarEvents.WithLabelValues(src.Name()).Set(float64(len(evs)))
		all = append(all, evs...)
	}
	return all, nil
}

// rollback puts the last snapshot back into primary and frees it. It runs
// even when ctx is already canceled.
func (s *Service) rollback(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.store.RestorePrimaryFromSecondary(ctx); err != nil {
		s.logger.Error().Err(err).Msg("restore primary from snapshot failed")
	}
	if err := s.store.Unlock(ctx, models.RolePrimary); err != nil {
		s.logger.Error().Err(err).Msg("unlock primary after failure failed")
		return
	}
	telemetry.SetBufferLocked(string(models.RolePrimary), false)
}

func (s *Service) skip(res Result, reason string) Result {
	res.Skipped = true
	res.SkipReason = reason
	res.FinishedAt = res.StartedAt
	telemetry.CompileRunsTotal.WithLabelValues("skipped").Inc()
	s.logger.Warn().Str("reason", reason).Msg("compile pass skipped")
	s.publish(events.EventCompileSkipped, events.Payload{"reason": reason})
	return res
}

func (s *Service) fail(res Result, err error) Result {
	res.Error = err.Error()
	res.FinishedAt = s.now().UTC()
	telemetry.CompileRunsTotal.WithLabelValues("failed").Inc()
	s.logger.Error().Err(err).Msg("compile pass failed")
	s.remember(res)
	s.publish(events.EventCompileFailed, events.Payload{"error": res.Error})
	return res
}

func (s *Service) remember(res Result) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
}

func (s *Service) publish(et events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(et, payload)
	}
}

// Unlock clears a stuck lock on role and announces it.
func (s *Service) Unlock(ctx context.Context, role models.BufferRole) error {
	if err := s.store.Unlock(ctx, role); err != nil {
		return err
	}
	telemetry.SetBufferLocked(string(role), false)
	s.logger.Warn().Str("role", string(role)).Msg("buffer unlocked by operator")
	s.publish(events.EventBufferUnlocked, events.Payload{"role": string(role)})
	return nil
}
