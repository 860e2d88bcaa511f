/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package block

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/inkintime/internal/workweek"
	"github.com/rs/zerolog"
)

// insertBatch bounds how many slots are buffered before a write.
const insertBatch = 256

// ErrInvalidDuration is returned for a non-positive slot length.
var ErrInvalidDuration = errors.New("slot duration must be positive")

// CompileStats summarizes one label's pass.
type CompileStats struct {
	Label      string `json:"label"`
	Considered int    `json:"considered"`
	Admitted   int    `json:"admitted"`
	Inserted   int64  `json:"inserted"`
	Duplicates int64  `json:"duplicates"`
}

// Compiler walks a window in fixed steps and keeps the steps the weekly
// schedule admits.
type Compiler struct {
	schedule *workweek.WeeklySchedule
	loc      *time.Location
	logger   zerolog.Logger
}

// NewCompiler constructs a slot compiler. Admission is judged in loc.
func NewCompiler(schedule *workweek.WeeklySchedule, loc *time.Location, logger zerolog.Logger) *Compiler {
	if loc == nil {
		loc = time.UTC
	}
	return &Compiler{
		schedule: schedule,
		loc:      loc,
		logger:   logger.With().Str("component", "slot_compiler").Logger(),
	}
}

// Location returns the zone slots are admitted in.
func (c *Compiler) Location() *time.Location { return c.loc }

// Compile emits every admitted slot of the given length for label. The loop
// only continues while cursor+duration is strictly before window.End, so
// every emitted slot ends before the window does.
func (c *Compiler) Compile(ctx context.Context, sess Session, window Window, label string, duration time.Duration) (CompileStats, error) {
	stats := CompileStats{Label: label}
	if duration <= 0 {
		return stats, ErrInvalidDuration
	}
	if !window.Valid() {
		return stats, fmt.Errorf("compile window %s - %s is empty", window.Start, window.End)
	}

	batch := make([]Slot, 0, insertBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := sess.InsertSlots(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert slots for %q: %w", label, err)
		}
		stats.Inserted += n
		stats.Duplicates += int64(len(batch)) - n
		batch = batch[:0]
		return nil
	}

	for cursor := window.Start; cursor.Add(duration).Before(window.End); cursor = cursor.Add(duration) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Considered++

		end := cursor.Add(duration)
		if !c.schedule.Admits(cursor, end, c.loc) {
			continue
		}
		stats.Admitted++
		batch = append(batch, Slot{Label: label, Start: cursor.UTC(), End: end.UTC()})
		if len(batch) == insertBatch {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	c.logger.Debug().
		Str("label", label).
		Dur("duration", duration).
		Int("considered", stats.Considered).
		Int("admitted", stats.Admitted).
		Int64("inserted", stats.Inserted).
		Msg("compiled slots")
	return stats, nil
}
