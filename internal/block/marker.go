/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package block

import (
	"context"
	"fmt"

	"github.com/friendsincode/inkintime/internal/calsource"
	"github.com/rs/zerolog"
)

// Marker flags slots that overlap busy events.
type Marker struct {
	logger zerolog.Logger
}

// NewMarker constructs an availability marker.
func NewMarker(logger zerolog.Logger) *Marker {
	return &Marker{logger: logger.With().Str("component", "availability_marker").Logger()}
}

// Mark sets Unavailable on every slot whose interval intersects an event.
// Flags are only ever set, so repeated runs over the same events change
// nothing.
func (m *Marker) Mark(ctx context.Context, sess Session, events []calsource.BusyEvent) (int64, error) {
	var matched int64
	for _, ev := range events {
		if !ev.Start.Before(ev.End) {
			m.logger.Debug().
				Time("start", ev.Start).
				Time("end", ev.End).
				Str("source", ev.Source).
				Msg("skipping busy event with empty interval")
			continue
		}
		n, err := sess.MarkUnavailable(ctx, ev.Start.UTC(), ev.End.UTC())
		if err != nil {
			return matched, fmt.Errorf("mark busy event %s - %s: %w", ev.Start, ev.End, err)
		}
		matched += n
	}
	return matched, nil
}
