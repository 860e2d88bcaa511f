/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package workweek

import (
	"fmt"
	"time"

	"github.com/friendsincode/inkintime/internal/callang"
)

// TimeSpan is an open window within a single day.
type TimeSpan struct {
	Start callang.TimeOfDay
	End   callang.TimeOfDay
}

// NewTimeSpan requires start to come strictly before end.
func NewTimeSpan(start, end callang.TimeOfDay) (TimeSpan, error) {
	if !start.Before(end) {
		return TimeSpan{}, fmt.Errorf("time span %s-%s: start must be before end", start, end)
	}
	return TimeSpan{Start: start, End: end}, nil
}

// Contains reports whether [from, to] sits inside the span.
func (s TimeSpan) Contains(from, to callang.TimeOfDay) bool {
	return from.Compare(s.Start) >= 0 && to.Compare(s.End) <= 0
}

func (s TimeSpan) String() string { return s.Start.String() + "-" + s.End.String() }

// WeeklySchedule maps each weekday to its open spans. An empty list means the
// day has no availability.
type WeeklySchedule struct {
	days [7][]TimeSpan
}

// Spans returns the spans for day in the order they were configured.
func (w *WeeklySchedule) Spans(day callang.Weekday) []TimeSpan {
	if w == nil || !day.Valid() {
		return nil
	}
	out := make([]TimeSpan, len(w.days[day]))
	copy(out, w.days[day])
	return out
}

// Admits reports whether a slot from start to end fits inside one span of
// start's weekday. Both instants are read as wall clock times in loc, and a
// slot that runs into another calendar day never fits.
func (w *WeeklySchedule) Admits(start, end time.Time, loc *time.Location) bool {
	if w == nil {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	ls, le := start.In(loc), end.In(loc)
	if ly, lm, ld := ls.Date(); !sameDate(ly, lm, ld, le) {
		return false
	}

	from, to := callang.ClockOf(ls), callang.ClockOf(le)
	for _, span := range w.days[callang.WeekdayOf(ls.Weekday())] {
		if span.Contains(from, to) {
			return true
		}
	}
	return false
}

// Empty reports whether no day has any span.
func (w *WeeklySchedule) Empty() bool {
	if w == nil {
		return true
	}
	for _, spans := range w.days {
		if len(spans) > 0 {
			return false
		}
	}
	return true
}

// Len counts spans across the week.
func (w *WeeklySchedule) Len() int {
	if w == nil {
		return 0
	}
	n := 0
	for _, spans := range w.days {
		n += len(spans)
	}
	return n
}

func sameDate(y int, m time.Month, d int, t time.Time) bool {
	ty, tm, td := t.Date()
	return y == ty && m == tm && d == td
}
