/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/inkintime/internal/block"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	s := New(db, zerolog.Nop())
	if err := s.EnsureStates(context.Background()); err != nil {
		t.Fatalf("ensure states: %v", err)
	}
	return s, db
}

func hourSlots(label string, start time.Time, n int) []block.Slot {
	out := make([]block.Slot, n)
	for i := range out {
		s := start.Add(time.Duration(i) * time.Hour)
		out[i] = block.Slot{Label: label, Start: s, End: s.Add(time.Hour)}
	}
	return out
}

func TestEnsureStatesIsIdempotent(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	if err := s.Lock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.EnsureStates(ctx); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	var n int64
	db.Model(&models.CompilationState{}).Count(&n)
	if n != 2 {
		t.Fatalf("state rows = %d, want 2", n)
	}
	if locked, _ := s.IsLocked(ctx, models.RolePrimary); !locked {
		t.Fatal("EnsureStates reset an existing lock")
	}
}

func TestTryLockIsCompareAndSwap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, models.RolePrimary)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	ok, err = s.TryLock(ctx, models.RolePrimary)
	if err != nil || ok {
		t.Fatalf("second TryLock = %v, %v, want refused", ok, err)
	}
	if free, _ := s.IsFree(ctx, models.RoleSecondary); !free {
		t.Fatal("secondary should stay free")
	}

	if err := s.Unlock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := s.Unlock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("unlock twice: %v", err)
	}
	ok, err = s.TryLock(ctx, models.RolePrimary)
	if err != nil || !ok {
		t.Fatalf("TryLock after unlock = %v, %v", ok, err)
	}

	if _, err := s.TryLock(ctx, models.BufferRole("tertiary")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("unknown role error = %v", err)
	}
}

func TestBeginWriteIsExclusive(t *testing.T) {
	s, _ := newTestStore(t)
	release, ok := s.BeginWrite()
	if !ok {
		t.Fatal("first BeginWrite refused")
	}
	if _, ok := s.BeginWrite(); ok {
		t.Fatal("second BeginWrite granted while held")
	}
	release()
	release2, ok := s.BeginWrite()
	if !ok {
		t.Fatal("BeginWrite refused after release")
	}
	release2()
}

func TestLastRun(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	last, err := s.LastRun(ctx)
	if err != nil || last != nil {
		t.Fatalf("LastRun before any run = %v, %v", last, err)
	}
	at := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	if err := s.RecordLastRun(ctx, at); err != nil {
		t.Fatalf("record: %v", err)
	}
	last, err = s.LastRun(ctx)
	if err != nil || last == nil || !last.Equal(at) {
		t.Fatalf("LastRun = %v, %v, want %v", last, err, at)
	}
}

func TestSessionInsertSkipsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Session(models.RolePrimary)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	n, err := sess.InsertSlots(ctx, hourSlots("Intro", start, 3))
	if err != nil || n != 3 {
		t.Fatalf("insert = %d, %v", n, err)
	}
	n, err = sess.InsertSlots(ctx, hourSlots("Intro", start, 4))
	if err != nil || n != 1 {
		t.Fatalf("reinsert = %d, %v, want 1 new row", n, err)
	}
	n, err = sess.InsertSlots(ctx, hourSlots("Follow-up", start, 2))
	if err != nil || n != 2 {
		t.Fatalf("other label = %d, %v", n, err)
	}
	if c, _ := s.Count(ctx, models.RolePrimary); c != 6 {
		t.Fatalf("count = %d, want 6", c)
	}
}

func TestSessionCleanupAroundThreshold(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Session(models.RolePrimary)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// One slot every six hours over two days.
	var slots []block.Slot
	for i := 0; i < 8; i++ {
		st := day.Add(time.Duration(i*6) * time.Hour)
		slots = append(slots, block.Slot{Label: "Block", Start: st, End: st.Add(time.Hour)})
	}
	if _, err := sess.InsertSlots(ctx, slots); err != nil {
		t.Fatalf("insert: %v", err)
	}

	threshold := day.Add(25 * time.Hour)
	removed, err := block.Cleanup(ctx, sess, threshold)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	// Slots ending at 01,07,13,19 on day one end before 01:00 on day two;
	// the slot ending exactly at the threshold stays.
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}
	rows, _, err := s.Slots(ctx, SlotQuery{})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("remaining = %d, want 4", len(rows))
	}
	for _, r := range rows {
		if r.EndsAt.Before(threshold) {
			t.Fatalf("stale slot kept: %v", r.EndsAt)
		}
	}
}

func TestMarkUnavailableOverlap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := s.Session(models.RolePrimary)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if _, err := sess.InsertSlots(ctx, hourSlots("Intro", start, 4)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := sess.MarkUnavailable(ctx, start.Add(90*time.Minute), start.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("mark = %d, %v", n, err)
	}
	available, _, _ := s.Slots(ctx, SlotQuery{Label: "Intro"})
	all, _, _ := s.Slots(ctx, SlotQuery{Label: "Intro", IncludeUnavailable: true})
	if len(available) != 3 || len(all) != 4 {
		t.Fatalf("available = %d, all = %d", len(available), len(all))
	}
	for _, r := range all {
		if r.Unavailable != r.StartsAt.Equal(start.Add(time.Hour)) {
			t.Fatalf("slot %v unavailable = %v", r.StartsAt, r.Unavailable)
		}
	}
}

func TestDuplicateAndReaderContract(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := s.Session(models.RolePrimary).InsertSlots(ctx, hourSlots("Intro", start, 3)); err != nil {
		t.Fatalf("insert primary: %v", err)
	}
	if _, err := s.Session(models.RoleSecondary).InsertSlots(ctx, hourSlots("Stale", start, 5)); err != nil {
		t.Fatalf("insert secondary: %v", err)
	}

	if err := s.DuplicatePrimaryToSecondary(ctx); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if c, _ := s.Count(ctx, models.RoleSecondary); c != 3 {
		t.Fatalf("secondary count = %d, want 3", c)
	}
	if free, _ := s.IsFree(ctx, models.RoleSecondary); !free {
		t.Fatal("secondary left locked after duplicate")
	}

	role, err := s.ReadableRole(ctx)
	if err != nil || role != models.RolePrimary {
		t.Fatalf("ReadableRole = %v, %v, want primary", role, err)
	}

	// Primary locked and emptied mid compile: readers move to secondary.
	if err := s.Lock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.Clear(ctx, models.RolePrimary); err != nil {
		t.Fatalf("clear: %v", err)
	}
	rows, role, err := s.Slots(ctx, SlotQuery{Label: "Intro"})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if role != models.RoleSecondary || len(rows) != 3 {
		t.Fatalf("read %d rows from %s, want 3 from secondary", len(rows), role)
	}
	if !rows[0].StartsAt.Equal(start) {
		t.Fatalf("first slot = %v", rows[0].StartsAt)
	}
}

func TestRestorePrimaryFromSecondary(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := s.Session(models.RoleSecondary).InsertSlots(ctx, hourSlots("Intro", start, 2)); err != nil {
		t.Fatalf("insert secondary: %v", err)
	}
	if ok, err := s.TryLock(ctx, models.RolePrimary); !ok || err != nil {
		t.Fatalf("lock primary: %v %v", ok, err)
	}
	if _, err := s.Session(models.RolePrimary).InsertSlots(ctx, hourSlots("Half", start, 1)); err != nil {
		t.Fatalf("insert primary: %v", err)
	}

	if err := s.RestorePrimaryFromSecondary(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if locked, _ := s.IsLocked(ctx, models.RolePrimary); !locked {
		t.Fatal("restore released the primary lock")
	}
	if err := s.Unlock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	rows, role, err := s.Slots(ctx, SlotQuery{})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if role != models.RolePrimary || len(rows) != 2 || rows[0].Label != "Intro" {
		t.Fatalf("rows = %+v from %s", rows, role)
	}
}

func TestSlotsDateWindow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 22:00-04:00 local on Mar 2-3 in hourly slots.
	start := time.Date(2026, 3, 2, 22, 0, 0, 0, loc)
	if _, err := s.Session(models.RolePrimary).InsertSlots(ctx, hourSlots("Night", start, 6)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	from, to := DateWindow(2026, 3, 2, loc)
	rows, _, err := s.Slots(ctx, SlotQuery{Label: "Night", From: from, To: to})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("day query returned %d rows, want 2", len(rows))
	}

	from, to = DateWindow(2026, 3, 0, loc)
	rows, _, _ = s.Slots(ctx, SlotQuery{From: from, To: to})
	if len(rows) != 6 {
		t.Fatalf("month query returned %d rows, want 6", len(rows))
	}
}

func TestDateWindow(t *testing.T) {
	tests := []struct {
		y, m, d  int
		from, to time.Time
	}{
		{2026, 3, 2, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{2026, 12, 0, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{2026, 0, 0, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		from, to := DateWindow(tt.y, tt.m, tt.d, nil)
		if !from.Equal(tt.from) || !to.Equal(tt.to) {
			t.Fatalf("DateWindow(%d,%d,%d) = %v - %v", tt.y, tt.m, tt.d, from, to)
		}
	}
}
