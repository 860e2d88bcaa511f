/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calsource

import (
	"context"
	"time"
)

// BusyEvent is an externally sourced interval during which slots are not
// bookable.
type BusyEvent struct {
	Start  time.Time `yaml:"start" json:"start"`
	End    time.Time `yaml:"end" json:"end"`
	Source string    `yaml:"-" json:"source,omitempty"`
}

// Source supplies busy events.
type Source interface {
	Name() string
	Events(ctx context.Context) ([]BusyEvent, error)
}

// Static serves a fixed list of events.
type Static struct {
	name   string
	events []BusyEvent
}

// NewStatic constructs a source from inline events.
func NewStatic(name string, events []BusyEvent) *Static {
	out := make([]BusyEvent, len(events))
	for i, ev := range events {
		ev.Source = name
		out[i] = ev
	}
	return &Static{name: name, events: out}
}

// Name returns the source name.
func (s *Static) Name() string { return s.name }

// Events returns a copy of the configured events.
func (s *Static) Events(ctx context.Context) ([]BusyEvent, error) {
	out := make([]BusyEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}
