/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/inkintime/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownRole is returned for a role other than primary or secondary.
var ErrUnknownRole = errors.New("unknown buffer role")

// Store owns both slot tables and their compilation state rows. Writers go
// through the lock state machine; readers pick whichever table is readable
// and never wait.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger

	// writeMu serializes compile passes inside one process. The state row
	// CAS guards against other processes.
	writeMu sync.Mutex
}

// New constructs a store.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "slot_store").Logger(),
	}
}

// EnsureStates creates a free state row for each role that has none.
func (s *Store) EnsureStates(ctx context.Context) error {
	for _, role := range models.Roles {
		row := models.CompilationState{Role: role, State: models.StateFree}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("ensure %s state: %w", role, err)
		}
	}
	return nil
}

// BeginWrite claims the in-process writer slot. ok is false when another
// goroutine already holds it.
func (s *Store) BeginWrite() (release func(), ok bool) {
	if !s.writeMu.TryLock() {
		return nil, false
	}
	return s.writeMu.Unlock, true
}

// TryLock atomically moves role from free to locked. It reports whether
// this call performed the transition.
func (s *Store) TryLock(ctx context.Context, role models.BufferRole) (bool, error) {
	if !role.Valid() {
		return false, ErrUnknownRole
	}
	res := s.db.WithContext(ctx).
		Model(&models.CompilationState{}).
		Where("role = ? AND state = ?", role, models.StateFree).
		Updates(map[string]any{"state": models.StateLocked, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("try lock %s: %w", role, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Lock marks role locked. Locking a locked role is a no-op.
func (s *Store) Lock(ctx context.Context, role models.BufferRole) error {
	return s.setState(ctx, s.db, role, models.StateLocked)
}

// Unlock marks role free. Unlocking a free role is a no-op.
func (s *Store) Unlock(ctx context.Context, role models.BufferRole) error {
	return s.setState(ctx, s.db, role, models.StateFree)
}

func (s *Store) setState(ctx context.Context, db *gorm.DB, role models.BufferRole, state models.LockState) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	err := db.WithContext(ctx).
		Model(&models.CompilationState{}).
		Where("role = ?", role).
		Updates(map[string]any{"state": state, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("set %s %s: %w", role, state, err)
	}
	return nil
}

// State returns the state row of role.
func (s *Store) State(ctx context.Context, role models.BufferRole) (models.CompilationState, error) {
	if !role.Valid() {
		return models.CompilationState{}, ErrUnknownRole
	}
	var st models.CompilationState
	if err := s.db.WithContext(ctx).Where("role = ?", role).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Never-run buffers read as free.
			return models.CompilationState{Role: role, State: models.StateFree}, nil
		}
		return models.CompilationState{}, fmt.Errorf("load %s state: %w", role, err)
	}
	return st, nil
}

// States returns both state rows, primary first.
func (s *Store) States(ctx context.Context) ([]models.CompilationState, error) {
	out := make([]models.CompilationState, 0, len(models.Roles))
	for _, role := range models.Roles {
		st, err := s.State(ctx, role)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// IsLocked reports whether role is locked.
func (s *Store) IsLocked(ctx context.Context, role models.BufferRole) (bool, error) {
	st, err := s.State(ctx, role)
	if err != nil {
		return false, err
	}
	return st.Locked(), nil
}

// IsFree reports whether role is free.
func (s *Store) IsFree(ctx context.Context, role models.BufferRole) (bool, error) {
	locked, err := s.IsLocked(ctx, role)
	return !locked, err
}

// RecordLastRun stamps the primary state row.
func (s *Store) RecordLastRun(ctx context.Context, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.CompilationState{}).
		Where("role = ?", models.RolePrimary).
		Updates(map[string]any{"last_run": at.UTC(), "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("record last run: %w", err)
	}
	return nil
}

// LastRun returns when primary last finished compiling, or nil.
func (s *Store) LastRun(ctx context.Context) (*time.Time, error) {
	st, err := s.State(ctx, models.RolePrimary)
	if err != nil {
		return nil, err
	}
	return st.LastRun, nil
}

// Clear empties the slot table of role.
func (s *Store) Clear(ctx context.Context, role models.BufferRole) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	if err := clearTable(s.db.WithContext(ctx), role.Table()); err != nil {
		return fmt.Errorf("clear %s: %w", role, err)
	}
	return nil
}

// Count returns the number of rows in the slot table of role.
func (s *Store) Count(ctx context.Context, role models.BufferRole) (int64, error) {
	if !role.Valid() {
		return 0, ErrUnknownRole
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(role.Table()).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", role, err)
	}
	return n, nil
}

// DuplicatePrimaryToSecondary publishes the primary table. Inside one
// transaction it locks secondary, replaces its rows with primary's, and
// frees it again, so readers never see a half-copied table.
func (s *Store) DuplicatePrimaryToSecondary(ctx context.Context) error {
	return s.copyTable(ctx, models.RolePrimary, models.RoleSecondary)
}

// RestorePrimaryFromSecondary puts the last published snapshot back into
// primary after a failed compile.
func (s *Store) RestorePrimaryFromSecondary(ctx context.Context) error {
	return s.copyTable(ctx, models.RoleSecondary, models.RolePrimary)
}

func (s *Store) copyTable(ctx context.Context, from, to models.BufferRole) error {
	start := time.Now()
	var copied int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setState(ctx, tx, to, models.StateLocked); err != nil {
			return err
		}
		if err := clearTable(tx, to.Table()); err != nil {
			return fmt.Errorf("clear %s: %w", to, err)
		}
		res := tx.Exec(fmt.Sprintf(
			"INSERT INTO %s (label, starts_at, ends_at, unavailable) SELECT label, starts_at, ends_at, unavailable FROM %s",
			to.Table(), from.Table(),
		))
		if res.Error != nil {
			return fmt.Errorf("copy %s to %s: %w", from, to, res.Error)
		}
		copied = res.RowsAffected
		if to == models.RolePrimary {
			// Primary stays locked until the compile pass releases it.
			return nil
		}
		return s.setState(ctx, tx, to, models.StateFree)
	})
	if err != nil {
		return err
	}
	s.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("rows", copied).
		Dur("took", time.Since(start)).
		Msg("slot table copied")
	return nil
}

func clearTable(db *gorm.DB, table string) error {
	return db.Exec("DELETE FROM " + table).Error
}
