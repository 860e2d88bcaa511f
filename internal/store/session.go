/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"time"

	"github.com/friendsincode/inkintime/internal/block"
	"github.com/friendsincode/inkintime/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

// Session returns the write handle for the slot table of role.
func (s *Store) Session(role models.BufferRole) block.Session {
	return &session{db: s.db, table: role.Table()}
}

type session struct {
	db    *gorm.DB
	table string
}

func (s *session) InsertSlots(ctx context.Context, slots []block.Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	rows := make([]models.Slot, len(slots))
	for i, sl := range slots {
		rows[i] = models.Slot{
			Label:       sl.Label,
			StartsAt:    sl.Start.UTC(),
			EndsAt:      sl.End.UTC(),
			Unavailable: sl.Unavailable,
		}
	}
	res := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, insertBatchSize)
	return res.RowsAffected, res.Error
}

func (s *session) MarkUnavailable(ctx context.Context, start, end time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Table(s.table).
		Where("starts_at < ? AND ends_at > ?", end.UTC(), start.UTC()).
		Update("unavailable", true)
	return res.RowsAffected, res.Error
}

func (s *session) DeleteEndingBefore(ctx context.Context, threshold time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Table(s.table).
		Where("ends_at < ?", threshold.UTC()).
		Delete(&models.Slot{})
	return res.RowsAffected, res.Error
}
