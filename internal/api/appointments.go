/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/inkintime/internal/callang"
)

type appointmentView struct {
	Label       string `json:"label"`
	Minutes     int    `json:"minutes"`
	Description string `json:"description,omitempty"`
}

// handleAppointments lists bookable appointment types and the weekly hours
// they can be booked in.
func (a *API) handleAppointments(w http.ResponseWriter, r *http.Request) {
	schedule := a.compiler.Schedule()

	appointments := make([]appointmentView, 0, len(schedule.Appointments))
	for _, appt := range schedule.Appointments {
		appointments = append(appointments, appointmentView{
			Label:       appt.Label,
			Minutes:     appt.Minutes,
			Description: appt.Description,
		})
	}

	hours := make(map[string][]string)
	week := schedule.Week()
	for _, day := range callang.Weekdays {
		spans := week.Spans(day)
		if len(spans) == 0 {
			continue
		}
		out := make([]string, 0, len(spans))
		for _, span := range spans {
			out = append(out, span.String())
		}
		hours[day.String()] = out
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timezone":     schedule.Location().String(),
		"appointments": appointments,
		"work_week":    hours,
	})
}
