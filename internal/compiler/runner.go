/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Compiler is the part of Service the runner drives.
type Compiler interface {
	Compile(ctx context.Context) (Result, error)
}

// Runner fires compile passes on a cron schedule.
type Runner struct {
	compiler   Compiler
	spec       string
	loc        *time.Location
	runOnStart bool
	logger     zerolog.Logger
}

// NewRunner validates spec and constructs a runner. Specs are read in loc.
func NewRunner(c Compiler, spec string, loc *time.Location, runOnStart bool, logger zerolog.Logger) (*Runner, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("compile schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		compiler:   c,
		spec:       spec,
		loc:        loc,
		runOnStart: runOnStart,
		logger:     logger.With().Str("component", "compile_runner").Logger(),
	}, nil
}

// Run blocks until ctx is canceled, then waits for an in-flight pass.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{r.logger}
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(r.spec, func() { r.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("schedule compile: %w", err)
	}

	if r.runOnStart {
		r.runOnce(ctx)
	}

	c.Start()
	r.logger.Info().Str("schedule", r.spec).Time("next", c.Entry(id).Next).Msg("compile runner started")

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info().Msg("compile runner stopped")
	return ctx.Err()
}

func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := r.compiler.Compile(ctx)
	if err != nil {
		// Already logged by the service.
		return
	}
	if res.Skipped {
		r.logger.Debug().Str("reason", res.SkipReason).Msg("scheduled pass skipped")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
