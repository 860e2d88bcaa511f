/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/inkintime/internal/cache"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/friendsincode/inkintime/internal/store"
)

const (
	defaultSlotLimit = 500
	maxSlotLimit     = 5000
	defaultSlotRange = 7 * 24 * time.Hour
)

var errInvalidRange = errors.New("invalid_range")

type slotView struct {
	Label       string    `json:"label"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Unavailable bool      `json:"unavailable,omitempty"`
}

type slotsResponse struct {
	Label    string     `json:"label,omitempty"`
	Timezone string     `json:"timezone"`
	From     time.Time  `json:"from"`
	To       time.Time  `json:"to"`
	Role     string     `json:"role"`
	Count    int        `json:"count"`
	Slots    []slotView `json:"slots"`
}

// handleSlots returns compiled slots from whichever buffer is readable.
//
// The range is picked from, in order: date=YYYY-MM-DD (one day),
// year[&month[&day]] (a whole year, month or day), or from/to as RFC3339
// timestamps or dates. Without any of them the next seven days are returned.
// Dates are read in tz, which defaults to the schedule's time zone.
func (a *API) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schedule := a.compiler.Schedule()

	loc := schedule.Location()
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_tz")
			return
		}
		loc = l
	}

	label := strings.TrimSpace(q.Get("label"))
	if label != "" {
		if _, ok := schedule.Appointment(label); !ok {
			writeError(w, http.StatusNotFound, "unknown_appointment")
			return
		}
	}

	from, to, err := slotRange(q, loc, a.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultSlotLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, maxSlotLimit)
	}

	includeUnavailable, _ := strconv.ParseBool(q.Get("include_unavailable"))

	sq := store.SlotQuery{
		Label:              label,
		From:               from,
		To:                 to,
		IncludeUnavailable: includeUnavailable,
		Limit:              limit,
	}

	result, hit := a.cache.GetSlots(r.Context(), sq)
	if !hit {
		rows, role, err := a.store.Slots(r.Context(), sq)
		if err != nil {
			a.logger.Error().Err(err).Msg("slot query failed")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		result = &cache.CachedSlots{Role: role, Slots: rows}
		if err := a.cache.SetSlots(r.Context(), sq, *result); err != nil {
			a.logger.Debug().Err(err).Msg("slot query not cached")
		}
	}

	resp := slotsResponse{
		Label:    label,
		Timezone: loc.String(),
		From:     from.In(loc),
		To:       to.In(loc),
		Role:     string(result.Role),
		Count:    len(result.Slots),
		Slots:    make([]slotView, 0, len(result.Slots)),
	}
	for _, s := range result.Slots {
		resp.Slots = append(resp.Slots, slotView{
			Label:       s.Label,
			StartsAt:    s.StartsAt.In(loc),
			EndsAt:      s.EndsAt.In(loc),
			Unavailable: s.Unavailable,
		})
	}

	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("X-Slot-Buffer", string(result.Role))
	if result.Role == models.RolePrimary && a.cache.IsAvailable() {
		w.Header().Set("Cache-Control", "public, max-age="+a.cache.TTLSeconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func slotRange(q url.Values, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	if v := q.Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid_date")
		}
		from, to := store.DateWindow(d.Year(), int(d.Month()), d.Day(), loc)
		return from, to, nil
	}

	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 1 {
			return time.Time{}, time.Time{}, errors.New("invalid_year")
		}
		month, err := optionalInt(q.Get("month"), 1, 12)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid_month")
		}
		day, err := optionalInt(q.Get("day"), 1, 31)
		if err != nil || (day > 0 && month == 0) {
			return time.Time{}, time.Time{}, errors.New("invalid_day")
		}
		if day > 0 && time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc).Day() != day {
			return time.Time{}, time.Time{}, errors.New("invalid_day")
		}
		from, to := store.DateWindow(year, month, day, loc)
		return from, to, nil
	}

	// Open-ended queries start at the top of the hour so repeated requests
	// share a cache key.
	from := now.Truncate(time.Hour)
	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid_from")
		}
		from = t
	}
	to := from.Add(defaultSlotRange)
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid_to")
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	return from, to, nil
}

// optionalInt parses v when present and checks it lies in [lo, hi]. An empty
// value is zero.
func optionalInt(v string, lo, hi int) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func parseTimeParam(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", v, loc)
}
