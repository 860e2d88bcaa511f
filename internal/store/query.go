/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/inkintime/internal/models"
)

// SlotQuery filters a slot read. Zero From or To leaves that side open.
type SlotQuery struct {
	Label              string
	From               time.Time
	To                 time.Time
	IncludeUnavailable bool
	Limit              int
}

// DateWindow returns the whole day, month or year starting at the given
// date in loc. A zero day widens the window to the month and a zero month
// widens it to the year.
func DateWindow(year, month, day int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	m, d := month, day
	if m == 0 {
		m = 1
	}
	if d == 0 {
		d = 1
	}
	from := time.Date(year, time.Month(m), d, 0, 0, 0, 0, loc)
	switch {
	case day > 0:
		return from, from.AddDate(0, 0, 1)
	case month > 0:
		return from, from.AddDate(0, 1, 0)
	default:
		return from, from.AddDate(1, 0, 0)
	}
}

// ReadableRole returns the buffer readers should use: secondary while
// primary is locked, otherwise primary.
func (s *Store) ReadableRole(ctx context.Context) (models.BufferRole, error) {
	locked, err := s.IsLocked(ctx, models.RolePrimary)
	if err != nil {
		return "", err
	}
	if locked {
		return models.RoleSecondary, nil
	}
	return models.RolePrimary, nil
}

// Slots reads from the readable buffer. Only slots that lie entirely inside
// [From, To] are returned, ordered by start then label.
func (s *Store) Slots(ctx context.Context, q SlotQuery) ([]models.Slot, models.BufferRole, error) {
	role, err := s.ReadableRole(ctx)
	if err != nil {
		return nil, "", err
	}

	tx := s.db.WithContext(ctx).Table(role.Table())
	if q.Label != "" {
		tx = tx.Where("label = ?", q.Label)
	}
	if !q.From.IsZero() {
		tx = tx.Where("starts_at >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		tx = tx.Where("ends_at <= ?", q.To.UTC())
	}
	if !q.IncludeUnavailable {
		tx = tx.Where("unavailable = ?", false)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []models.Slot
	if err := tx.Order("starts_at ASC, label ASC").Find(&rows).Error; err != nil {
		return nil, role, fmt.Errorf("query %s slots: %w", role, err)
	}
	for i := range rows {
		rows[i].StartsAt = rows[i].StartsAt.UTC()
		rows[i].EndsAt = rows[i].EndsAt.UTC()
	}
	return rows, role, nil
}
