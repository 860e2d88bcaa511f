/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compiler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Elector is the leader election the wrapper follows.
type Elector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// LeaderAwareRunner runs the compile runner only while this instance is the leader.
type LeaderAwareRunner struct {
	runner   *Runner
	election Elector
	logger   zerolog.Logger

	ctx     context.Context
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewLeaderAware wraps runner with leadership.
func NewLeaderAware(runner *Runner, election Elector, logger zerolog.Logger) *LeaderAwareRunner {
	return &LeaderAwareRunner{
		runner:   runner,
		election: election,
		logger:   logger.With().Str("component", "leader_aware_runner").Logger(),
	}
}

// Start begins the election and follows leadership changes until ctx ends.
func (l *LeaderAwareRunner) Start(ctx context.Context) error {
	l.ctx = ctx
	l.logger.Info().Msg("starting leader-aware compile runner")

	if err := l.election.Start(ctx); err != nil {
		return err
	}
	go l.monitorLeadership()
	return nil
}

// Stop halts the runner and steps down.
func (l *LeaderAwareRunner) Stop() error {
	l.logger.Info().Msg("stopping leader-aware compile runner")
	l.stopRunner()
	return l.election.Stop()
}

// IsLeader returns whether this instance is the leader.
func (l *LeaderAwareRunner) IsLeader() bool {
	return l.election.IsLeader()
}

// Running reports whether the cron runner is active here.
func (l *LeaderAwareRunner) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *LeaderAwareRunner) monitorLeadership() {
	leaderCh := l.election.LeaderCh()

	if l.election.IsLeader() {
		l.startRunner()
	}

	for {
		select {
		case <-l.ctx.Done():
			l.stopRunner()
			return
		case isLeader := <-leaderCh:
			if isLeader {
				l.logger.Info().Msg("became leader, starting compile runner")
				l.startRunner()
			} else {
				l.logger.Warn().Msg("lost leadership, stopping compile runner")
				l.stopRunner()
			}
		}
	}
}

func (l *LeaderAwareRunner) startRunner() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(l.ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.stopped = done

	go func() {
		defer close(done)
		if err := l.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error().Err(err).Msg("compile runner error")
		}
	}()
}

// stopRunner cancels the runner and waits for any in-flight pass.
func (l *LeaderAwareRunner) stopRunner() {
	l.mu.Lock()
	cancel, done := l.cancel, l.stopped
	l.cancel, l.stopped = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
