/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compiler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Compile(context.Context) (Result, error) {
	c.calls.Add(1)
	return Result{}, nil
}

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	if _, err := NewRunner(&countingCompiler{}, "every now and then", nil, false, zerolog.Nop()); err == nil {
		t.Fatal("expected error for malformed schedule")
	}
	if _, err := NewRunner(&countingCompiler{}, "*/15 * * * *", time.UTC, false, zerolog.Nop()); err != nil {
		t.Fatalf("standard spec rejected: %v", err)
	}
}

func TestRunnerCompilesOnStartAndStops(t *testing.T) {
	c := &countingCompiler{}
	r, err := NewRunner(c, "@every 1h", time.UTC, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for c.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("run-on-start pass never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	if n := c.calls.Load(); n != 1 {
		t.Fatalf("compile ran %d times, want 1", n)
	}
}

// fakeElector lets a test flip leadership by hand.
type fakeElector struct {
	leader  atomic.Bool
	ch      chan bool
	stopped atomic.Bool
}

func newFakeElector() *fakeElector { return &fakeElector{ch: make(chan bool, 1)} }

func (f *fakeElector) Start(context.Context) error { return nil }
func (f *fakeElector) Stop() error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeElector) IsLeader() bool { return f.leader.Load() }
func (f *fakeElector) LeaderCh() <-chan bool { return f.ch }

func (f *fakeElector) set(v bool) {
	f.leader.Store(v)
	f.ch <- v
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLeaderAwareRunnerFollowsLeadership(t *testing.T) {
	c := &countingCompiler{}
	r, err := NewRunner(c, "@every 1h", time.UTC, true, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	el := newFakeElector()
	la := NewLeaderAware(r, el, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := la.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if la.Running() {
		t.Fatal("follower is running compiles")
	}

	el.set(true)
	waitUntil(t, "runner start", la.Running)
	waitUntil(t, "first compile", func() bool { return c.calls.Load() == 1 })

	el.set(false)
	waitUntil(t, "runner stop", func() bool { return !la.Running() })

	if err := la.Stop(); err != nil {
		t.Fatal(err)
	}
	if !el.stopped.Load() {
		t.Fatal("election not stopped")
	}
}
