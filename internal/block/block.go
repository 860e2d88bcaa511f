/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package block

import (
	"context"
	"time"
)

// Slot is a generated appointment block.
type Slot struct {
	Label       string
	Start       time.Time
	End         time.Time
	Unavailable bool
}

// Window is the half-open [Start, End) span a compile pass walks.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool { return w.Start.Before(w.End) }

// Session is the write handle the store hands to the slot components. Every
// method operates on one slot table.
type Session interface {
	// InsertSlots writes slots, skipping any whose (label, start, end)
	// already exists, and returns how many rows were written.
	InsertSlots(ctx context.Context, slots []Slot) (int64, error)
	// MarkUnavailable flags every slot overlapping [start, end).
	MarkUnavailable(ctx context.Context, start, end time.Time) (int64, error)
	// DeleteEndingBefore removes slots whose end precedes threshold.
	DeleteEndingBefore(ctx context.Context, threshold time.Time) (int64, error)
}

// Cleanup evicts stale slots. Run it once after every label has been
// compiled, never between labels.
func Cleanup(ctx context.Context, sess Session, threshold time.Time) (int64, error) {
	return sess.DeleteEndingBefore(ctx, threshold)
}
