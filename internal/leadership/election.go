/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects the single instance allowed to run scheduled
// compile passes.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/inkintime/internal/telemetry"
)

const (
	defaultElectionKey     = "inkintime:leader:compiler"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
	defaultRetryInterval   = 2 * time.Second
)

// releaseScript deletes the key only while id still owns it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lease is the storage primitive behind an election.
type Lease interface {
	// Acquire takes or renews key for id. It reports whether id holds it.
	Acquire(ctx context.Context, key, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, id string) error
	Holder(ctx context.Context, key string) (string, error)
	Close() error
}

// ElectionConfig configures leader election behavior.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key used for leader election.
	ElectionKey string

	LeaseDuration   time.Duration
	RenewalInterval time.Duration
	RetryInterval   time.Duration

	// InstanceID uniquely identifies this instance.
	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		RetryInterval:   defaultRetryInterval,
		InstanceID:      uuid.New().String(),
	}
}

func (c *ElectionConfig) applyDefaults() {
	if c.ElectionKey == "" {
		c.ElectionKey = defaultElectionKey
	}
	if c.LeaseDuration == 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.RenewalInterval == 0 {
		c.RenewalInterval = defaultRenewalInterval
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.New().String()
	}
}

// Election manages distributed leader election.
type Election struct {
	lease  Lease
	logger zerolog.Logger
	config ElectionConfig

	isLeader   atomic.Bool
	cancelFunc context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
	leaderCh   chan bool
}

// NewElection connects to Redis and creates an election.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	config.applyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Msg("connected to Redis for leader election")

	return NewElectionWithLease(config, &redisLease{client: client}, logger), nil
}

// NewElectionWithLease creates an election over an arbitrary lease store.
func NewElectionWithLease(config ElectionConfig, lease Lease, logger zerolog.Logger) *Election {
	config.applyDefaults()
	return &Election{
		lease:    lease,
		logger:   logger.With().Str("component", "leader_election").Logger(),
		config:   config,
		done:     make(chan struct{}),
		leaderCh: make(chan bool, 1),
	}
}

// InstanceID identifies this participant.
func (e *Election) InstanceID() string { return e.config.InstanceID }

// Start begins the campaign loop.
func (e *Election) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info().
		Str("instance_id", e.config.InstanceID).
		Dur("lease_duration", e.config.LeaseDuration).
		Msg("starting leader election")

	go e.campaignLoop(ctx)
	return nil
}

// Stop ends the campaign, releases leadership if held and closes the lease store.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		e.logger.Info().Msg("stopping leader election")
		if e.cancelFunc != nil {
			e.cancelFunc()
			<-e.done
		}

		if e.isLeader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := e.lease.Release(ctx, e.config.ElectionKey, e.config.InstanceID); rerr != nil {
				e.logger.Error().Err(rerr).Msg("failed to release leadership lock")
			} else {
				e.logger.Info().Msg("released leadership lock")
			}
			e.updateLeadershipStatus(false)
		}
		err = e.lease.Close()
	})
	return err
}

// IsLeader returns whether this instance is currently the leader.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh returns a channel that receives leadership status changes.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the current leader instance ID, or "" when there is none.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	return e.lease.Holder(ctx, e.config.ElectionKey)
}

func (e *Election) campaignLoop(ctx context.Context) {
	defer close(e.done)

	e.attemptLeadership(ctx)
	for {
		interval := e.config.RetryInterval
		if e.isLeader.Load() {
			interval = e.config.RenewalInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			e.attemptLeadership(ctx)
		}
	}
}

func (e *Election) attemptLeadership(ctx context.Context) {
	acquired, err := e.lease.Acquire(ctx, e.config.ElectionKey, e.config.InstanceID, e.config.LeaseDuration)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Error().Err(err).Msg("failed to acquire leadership lock")
		e.updateLeadershipStatus(false)
		return
	}

	switch {
	case acquired && !e.isLeader.Load():
		e.logger.Info().Str("instance_id", e.config.InstanceID).Msg("acquired leadership")
	case !acquired && e.isLeader.Load():
		e.logger.Warn().Str("instance_id", e.config.InstanceID).Msg("lost leadership")
	}
	e.updateLeadershipStatus(acquired)
}

// updateLeadershipStatus records a transition and notifies listeners.
func (e *Election) updateLeadershipStatus(isLeader bool) {
	if e.isLeader.Swap(isLeader) == isLeader {
		return
	}

	if isLeader {
		telemetry.LeaderElectionStatus.WithLabelValues(e.config.InstanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues("acquired").Inc()
	} else {
		telemetry.LeaderElectionStatus.WithLabelValues(e.config.InstanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues("lost").Inc()
	}

	// Keep only the newest status in the channel.
	select {
	case <-e.leaderCh:
	default:
	}
	select {
	case e.leaderCh <- isLeader:
	default:
	}
}

// redisLease implements Lease with SET NX PX plus an ownership-checked renew.
type redisLease struct {
	client *redis.Client
}

func (l *redisLease) Acquire(ctx context.Context, key, id string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, id, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get current leader: %w", err)
	}
	if holder != id {
		return false, nil
	}
	if err := l.client.PExpire(ctx, key, ttl).Err(); err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return true, nil
}

func (l *redisLease) Release(ctx context.Context, key, id string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{key}, id).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (l *redisLease) Holder(ctx context.Context, key string) (string, error) {
	id, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return id, nil
}

func (l *redisLease) Close() error {
	return l.client.Close()
}
