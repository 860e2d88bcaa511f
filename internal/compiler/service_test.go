/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/inkintime/internal/calsource"
	"github.com/friendsincode/inkintime/internal/config"
	"github.com/friendsincode/inkintime/internal/events"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/friendsincode/inkintime/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// One week, Monday 2 March to Saturday 7 March 2026, 9-5 on weekdays:
// eight hour-long slots a day, forty in total.
const weekSchedule = `
timezone: UTC
work_week:
  - days: "mon-f"
    times: "9AM-5PM"
appointments:
  - label: consult
    minutes: 60
window_start: 2026-03-02T00:00:00Z
window_end: 2026-03-07T00:00:00Z
`

const weekSlots = 40

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Overlaps the 10:00 and 11:00 slots on Monday.
	mondayMeeting = calsource.BusyEvent{
		Start: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC),
	}
)

func newTestStore(t *testing.T) *store.Store {
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
	st := store.New(db, zerolog.Nop())
	if err := st.EnsureStates(context.Background()); err != nil {
		t.Fatalf("ensure states: %v", err)
	}
	return st
}

func mustSchedule(t *testing.T, text string) *config.Schedule {
	t.Helper()
	s, err := config.ParseSchedule([]byte(text))
	if err != nil {
		t.Fatalf("parse schedule: %v", err)
	}
	return s
}

func newService(t *testing.T, st *store.Store, bus *events.Bus, sources ...calsource.Source) *Service {
	t.Helper()
	svc, err := New(st, mustSchedule(t, weekSchedule), sources, zerolog.Nop(),
		WithPublisher(bus),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func expectEvent(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(time.Second):
		t.Fatal("expected event")
		return nil
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Events(context.Context) ([]calsource.BusyEvent, error) {
	return nil, errors.New("calendar host unreachable")
}

// blockingSource parks inside Events until released.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Name() string { return "slow" }
func (b *blockingSource) Events(ctx context.Context) ([]calsource.BusyEvent, error) {
	close(b.entered)
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCompilePublishesSnapshot(t *testing.T) {
	st := newTestStore(t)
	bus := events.NewBus()
	published := bus.Subscribe(events.EventSlotsPublished)
	svc := newService(t, st, bus, calsource.NewStatic("inline", []calsource.BusyEvent{mondayMeeting}))
	ctx := context.Background()

	res, err := svc.Compile(ctx)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Skipped {
		t.Fatalf("pass skipped: %s", res.SkipReason)
	}
	if len(res.Labels) != 1 || res.Labels[0].Inserted != weekSlots {
		t.Fatalf("label stats = %+v", res.Labels)
	}
	if res.Marked != 2 || res.BusyEvents != 1 {
		t.Fatalf("marked = %d from %d events, want 2 from 1", res.Marked, res.BusyEvents)
	}
	if res.Published != weekSlots {
		t.Fatalf("published = %d", res.Published)
	}

	if locked, _ := st.IsLocked(ctx, models.RolePrimary); locked {
		t.Fatal("primary still locked")
	}
	if locked, _ := st.IsLocked(ctx, models.RoleSecondary); locked {
		t.Fatal("secondary still locked")
	}
	last, err := st.LastRun(ctx)
	if err != nil || last == nil || !last.Equal(testNow) {
		t.Fatalf("last run = %v, %v", last, err)
	}

	p := expectEvent(t, published)
	if p["rows"] != int64(weekSlots) {
		t.Fatalf("published payload = %v", p)
	}

	open, role, err := st.Slots(ctx, store.SlotQuery{
		Label: "consult",
		From:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if role != models.RolePrimary || len(open) != 6 {
		t.Fatalf("monday open slots = %d from %s, want 6 from primary", len(open), role)
	}

	if got, ok := svc.LastResult(); !ok || got.Published != weekSlots {
		t.Fatalf("last result = %+v, %v", got, ok)
	}
}

func TestCompileIsRepeatable(t *testing.T) {
	st := newTestStore(t)
	svc := newService(t, st, events.NewBus())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := svc.Compile(ctx)
		if err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
		if res.Published != weekSlots || res.Labels[0].Duplicates != 0 {
			t.Fatalf("pass %d = %+v", i, res)
		}
	}
}

func TestCompileSkipsWhenPrimaryLocked(t *testing.T) {
	st := newTestStore(t)
	bus := events.NewBus()
	skipped := bus.Subscribe(events.EventCompileSkipped)
	svc := newService(t, st, bus)
	ctx := context.Background()

	if err := st.Lock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("lock: %v", err)
	}

	res, err := svc.Compile(ctx)
	if err != nil {
		t.Fatalf("skipped pass returned error: %v", err)
	}
	if !res.Skipped || res.SkipReason != SkipLocked {
		t.Fatalf("result = %+v", res)
	}
	if n, _ := st.Count(ctx, models.RolePrimary); n != 0 {
		t.Fatalf("skipped pass wrote %d rows", n)
	}
	if locked, _ := st.IsLocked(ctx, models.RolePrimary); !locked {
		t.Fatal("skipped pass released someone else's lock")
	}
	if p := expectEvent(t, skipped); p["reason"] != SkipLocked {
		t.Fatalf("skip payload = %v", p)
	}
	if _, ok := svc.LastResult(); ok {
		t.Fatal("skipped pass recorded as last result")
	}
}

func TestFailedCompileRestoresSnapshot(t *testing.T) {
	st := newTestStore(t)
	bus := events.NewBus()
	failed := bus.Subscribe(events.EventCompileFailed)
	ctx := context.Background()

	good := newService(t, st, bus, calsource.NewStatic("inline", []calsource.BusyEvent{mondayMeeting}))
	if _, err := good.Compile(ctx); err != nil {
		t.Fatalf("first compile: %v", err)
	}

	bad := newService(t, st, bus, failingSource{})
	res, err := bad.Compile(ctx)
	if err == nil {
		t.Fatal("compile with broken calendar succeeded")
	}
	if res.Error == "" {
		t.Fatal("result carries no error")
	}

	if locked, _ := st.IsLocked(ctx, models.RolePrimary); locked {
		t.Fatal("primary left locked after failure")
	}
	n, _ := st.Count(ctx, models.RolePrimary)
	if n != weekSlots {
		t.Fatalf("primary has %d rows after restore, want %d", n, weekSlots)
	}
	rows, _, err := st.Slots(ctx, store.SlotQuery{Label: "consult", IncludeUnavailable: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	unavailable := 0
	for _, r := range rows {
		if r.Unavailable {
			unavailable++
		}
	}
	if unavailable != 2 {
		t.Fatalf("restored snapshot has %d unavailable slots, want 2", unavailable)
	}
	expectEvent(t, failed)
}

func TestReadersSeeSnapshotDuringCompile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := newService(t, st, events.NewBus()).Compile(ctx); err != nil {
		t.Fatalf("first compile: %v", err)
	}

	slow := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	svc := newService(t, st, events.NewBus(), slow)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Compile(ctx)
		done <- outcome{res, err}
	}()

	select {
	case <-slow.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("compile never reached the calendar source")
	}

	role, err := st.ReadableRole(ctx)
	if err != nil || role != models.RoleSecondary {
		t.Fatalf("readable role mid-compile = %s, %v", role, err)
	}
	rows, role, err := st.Slots(ctx, store.SlotQuery{Label: "consult"})
	if err != nil {
		t.Fatalf("query mid-compile: %v", err)
	}
	if role != models.RoleSecondary || len(rows) != weekSlots {
		t.Fatalf("mid-compile read %d rows from %s", len(rows), role)
	}

	again, err := svc.Compile(ctx)
	if err != nil || !again.Skipped || again.SkipReason != SkipInProcess {
		t.Fatalf("overlapping compile = %+v, %v", again, err)
	}

	close(slow.release)
	out := <-done
	if out.err != nil {
		t.Fatalf("compile: %v", out.err)
	}
	if role, _ := st.ReadableRole(ctx); role != models.RolePrimary {
		t.Fatalf("readable role after compile = %s", role)
	}
}

func TestCompileWindowFollowsGracePeriod(t *testing.T) {
	st := newTestStore(t)
	schedule := mustSchedule(t, `
timezone: UTC
work_week:
  - days: "mon-sun"
    times: "12AM-11PM"
appointments:
  - label: consult
    minutes: 60
grace_period_hours: 2
view_window_days: 1
`)
	now := time.Date(2026, 3, 2, 9, 41, 0, 0, time.UTC)
	svc, err := New(st, schedule, nil, zerolog.Nop(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := svc.Compile(context.Background())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	wantStart := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	if !res.Window.Start.Equal(wantStart) || !res.Window.End.Equal(wantStart.Add(24*time.Hour)) {
		t.Fatalf("window = %+v", res.Window)
	}
	if res.Cleaned != 0 {
		t.Fatalf("cleaned %d fresh slots", res.Cleaned)
	}
}

func TestNewRequiresValidatedSchedule(t *testing.T) {
	if _, err := New(newTestStore(t), &config.Schedule{}, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unvalidated schedule")
	}
}

func TestUnlockAnnounces(t *testing.T) {
	st := newTestStore(t)
	bus := events.NewBus()
	unlocked := bus.Subscribe(events.EventBufferUnlocked)
	svc := newService(t, st, bus)
	ctx := context.Background()

	if err := st.Lock(ctx, models.RolePrimary); err != nil {
		t.Fatal(err)
	}
	if err := svc.Unlock(ctx, models.RolePrimary); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if locked, _ := st.IsLocked(ctx, models.RolePrimary); locked {
		t.Fatal("still locked")
	}
	if p := expectEvent(t, unlocked); p["role"] != "primary" {
		t.Fatalf("payload = %v", p)
	}
}
