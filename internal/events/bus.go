/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventCompileStarted EventType = "compile.started"
	EventCompileSkipped EventType = "compile.skipped"
	EventCompileFailed  EventType = "compile.failed"
	EventSlotsPublished EventType = "slots.published"
	EventBufferUnlocked EventType = "buffer.unlocked"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Hook observes every published event after local delivery.
type Hook func(EventType, Payload)

// Publisher is the publishing half of a bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub. Slow subscribers drop events
// rather than stall the publisher.
type Bus struct {
	mu    sync.RWMutex
	subs  map[EventType][]Subscriber
	hooks []Hook
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// AddHook registers fn to run for every event.
func (b *Bus) AddHook(fn Hook) {
	b.mu.Lock()
	b.hooks = append(b.hooks, fn)
	b.mu.Unlock()
}

// Publish sends payload to subscribers, then runs hooks.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.Deliver(eventType, payload)

	b.mu.RLock()
	hooks := append([]Hook(nil), b.hooks...)
	b.mu.RUnlock()
	for _, hook := range hooks {
		hook(eventType, payload)
	}
}

// Deliver sends payload to local subscribers only. Events that arrived from
// another node come in through here so they are not forwarded again.
func (b *Bus) Deliver(eventType EventType, payload Payload) int {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		select {
		case sub <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
