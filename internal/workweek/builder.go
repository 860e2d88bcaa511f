/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package workweek

import (
	"fmt"

	"github.com/friendsincode/inkintime/internal/callang"
)

// Row is one line of the weekly pattern, e.g. days "mon-f" with times
// "8AM-11a, 1PM-7:00PM".
type Row struct {
	Days  string `yaml:"days" json:"days"`
	Times string `yaml:"times" json:"times"`
}

// Build parses every row and appends each (day, span) pair of its cross
// product to the schedule. Spans keep input order; overlapping spans are
// kept as they are.
func Build(rows []Row) (*WeeklySchedule, error) {
	ws := &WeeklySchedule{}
	for i, row := range rows {
		days, err := callang.ParseDayList(row.Days)
		if err != nil {
			return nil, fmt.Errorf("row %d: days %q: %w", i, row.Days, err)
		}
		times, err := callang.ParseTimeList(row.Times)
		if err != nil {
			return nil, fmt.Errorf("row %d: times %q: %w", i, row.Times, err)
		}

		spans := make([]TimeSpan, 0, len(times.Entries))
		for _, r := range times.Normalized() {
			span, err := NewTimeSpan(r.Start, r.End)
			if err != nil {
				return nil, fmt.Errorf("row %d: times %q: %w", i, row.Times, err)
			}
			spans = append(spans, span)
		}

		for day := range days.All() {
			ws.days[day] = append(ws.days[day], spans...)
		}
	}
	return ws, nil
}
