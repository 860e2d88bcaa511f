/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calsource

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
)

// ParseICS extracts DTSTART/DTEND pairs from an ICS payload. Recurrence rules
// are not expanded; each VEVENT yields at most one event. VEVENTs without
// usable times are skipped.
func ParseICS(name string, body []byte, logger zerolog.Logger) ([]BusyEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics %s: %w", name, err)
	}

	vevents := cal.Events()
	events := make([]BusyEvent, 0, len(vevents))
	for _, ve := range vevents {
		ev, err := busyFromVEvent(ve)
		if err != nil {
			logger.Debug().Err(err).Str("source", name).Msg("skipping vevent")
			continue
		}
		ev.Source = name
		events = append(events, ev)
	}
	return events, nil
}

func busyFromVEvent(ve *ical.VEvent) (BusyEvent, error) {
	if status := ve.GetProperty(ical.ComponentPropertyStatus); status != nil && strings.EqualFold(status.Value, "CANCELLED") {
		return BusyEvent{}, errors.New("event cancelled")
	}
	if transp := ve.GetProperty(ical.ComponentPropertyTransp); transp != nil && strings.EqualFold(transp.Value, "TRANSPARENT") {
		return BusyEvent{}, errors.New("event transparent")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return BusyEvent{}, fmt.Errorf("dtstart: %w", err)
	}

	end, err := ve.GetEndAt()
	if err != nil {
		// A date-only DTSTART with no end covers the whole day.
		if isAllDay(ve) {
			return BusyEvent{Start: start, End: start.AddDate(0, 0, 1)}, nil
		}
		return BusyEvent{}, fmt.Errorf("dtend: %w", err)
	}
	if !start.Before(end) {
		return BusyEvent{}, fmt.Errorf("dtend %s not after dtstart %s", end, start)
	}
	return BusyEvent{Start: start, End: end}, nil
}

func isAllDay(ve *ical.VEvent) bool {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// Window keeps events that overlap [from, to).
func Window(events []BusyEvent, from, to time.Time) []BusyEvent {
	out := events[:0:0]
	for _, ev := range events {
		if ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, ev)
		}
	}
	return out
}
