/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/friendsincode/inkintime/internal/events"
	"github.com/friendsincode/inkintime/internal/models"
	"github.com/friendsincode/inkintime/internal/store"
	"github.com/friendsincode/inkintime/internal/telemetry"
)

const slotsCacheType = "slots"

// CachedSlots is a stored slot query result.
type CachedSlots struct {
	Role  models.BufferRole `json:"role"`
	Slots []models.Slot     `json:"slots"`
}

// SlotsKey fingerprints a slot query.
func SlotsKey(q store.SlotQuery) string {
	raw := fmt.Sprintf("%s|%s|%s|%t|%d",
		q.Label,
		q.From.UTC().Format(time.RFC3339),
		q.To.UTC().Format(time.RFC3339),
		q.IncludeUnavailable,
		q.Limit,
	)
	sum := sha1.Sum([]byte(raw))
	return KeySlots + hex.EncodeToString(sum[:])
}

// GetSlots looks up a slot query result.
func (c *Cache) GetSlots(ctx context.Context, q store.SlotQuery) (*CachedSlots, bool) {
	var cached CachedSlots
	found, err := c.get(ctx, SlotsKey(q), &cached)
	if err != nil || !found {
		if c.IsAvailable() {
			telemetry.CacheMissesTotal.WithLabelValues(slotsCacheType).Inc()
		}
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues(slotsCacheType).Inc()
	c.logger.Debug().Str("label", q.Label).Int("count", len(cached.Slots)).Msg("slot query cache hit")
	return &cached, true
}

// SetSlots stores a slot query result.
func (c *Cache) SetSlots(ctx context.Context, q store.SlotQuery, result CachedSlots) error {
	return c.set(ctx, SlotsKey(q), result, c.config.SlotsTTL)
}

// InvalidateSlots drops every cached slot query.
func (c *Cache) InvalidateSlots(ctx context.Context) error {
	n, err := c.deletePattern(ctx, KeySlots+"*")
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.Debug().Int("keys", n).Msg("invalidated slot query cache")
	}
	return nil
}

// Subscriber is the part of the event bus the invalidator listens on.
type Subscriber interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
}

// RunInvalidator drops cached slot queries whenever a new snapshot is
// published or a buffer is unlocked by hand. It returns when ctx ends.
func (c *Cache) RunInvalidator(ctx context.Context, bus Subscriber) {
	published := bus.Subscribe(events.EventSlotsPublished)
	unlocked := bus.Subscribe(events.EventBufferUnlocked)
	defer bus.Unsubscribe(events.EventSlotsPublished, published)
	defer bus.Unsubscribe(events.EventBufferUnlocked, unlocked)

	for {
		select {
		case <-ctx.Done():
			return
		case <-published:
		case <-unlocked:
		}
		if err := c.InvalidateSlots(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("slot cache invalidation failed")
		}
	}
}

// TTLSeconds renders the configured TTL for Cache-Control headers.
func (c *Cache) TTLSeconds() string {
	return strconv.Itoa(int(c.config.SlotsTTL / time.Second))
}
