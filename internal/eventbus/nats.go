/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans local compile events out over NATS so other
// instances can drop cached slot queries.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/friendsincode/inkintime/internal/events"
	"github.com/friendsincode/inkintime/internal/telemetry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix prefixes every event subject.
const SubjectPrefix = "inkintime.events."

// NATSBus forwards events published on a local bus to NATS and delivers
// events from other nodes back into it.
type NATSBus struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	local  *events.Bus
	logger zerolog.Logger
	nodeID string
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL    string
	Token  string
	NodeID string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus connects to NATS and attaches to local. When the server cannot
// be reached the local bus keeps working and the error is returned so the
// caller can decide whether that is fatal.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) (*NATSBus, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = generateNodeID()
	}
	nb := &NATSBus{
		local:  local,
		logger: logger.With().Str("component", "nats_bus").Logger(),
		nodeID: cfg.NodeID,
	}

	opts := []nats.Option{
		nats.Name("inkintime-" + cfg.NodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			nb.logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nb, fmt.Errorf("connect nats: %w", err)
	}
	nb.conn = conn

	nb.sub, err = conn.Subscribe(SubjectPrefix+">", nb.receive)
	if err != nil {
		conn.Close()
		nb.conn = nil
		return nb, fmt.Errorf("subscribe %s>: %w", SubjectPrefix, err)
	}

	local.AddHook(nb.forward)
	nb.logger.Info().Str("url", conn.ConnectedUrl()).Str("node_id", nb.nodeID).Msg("nats event bus connected")
	return nb, nil
}

// Connected reports whether events are leaving this process.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	return nb.conn.Drain()
}

func (nb *NATSBus) forward(eventType events.EventType, payload events.Payload) {
	if nb.conn == nil {
		return
	}
	data, err := marshalNATSMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("encode event")
		telemetry.EventPublishErrorsTotal.WithLabelValues(string(eventType)).Inc()
		return
	}
	if err := nb.conn.Publish(Subject(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("publish event to nats")
		telemetry.EventPublishErrorsTotal.WithLabelValues(string(eventType)).Inc()
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()
}

func (nb *NATSBus) receive(m *nats.Msg) {
	msg, err := unmarshalNATSMessage(m.Data)
	if err != nil {
		nb.logger.Debug().Err(err).Str("subject", m.Subject).Msg("dropping malformed event")
		return
	}
	if msg.NodeID == nb.nodeID {
		return
	}
	nb.local.Deliver(msg.EventType, msg.Payload)
}

// Subject returns the NATS subject for an event type.
func Subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// EventTypeOf reverses Subject.
func EventTypeOf(subject string) (events.EventType, bool) {
	rest, ok := strings.CutPrefix(subject, SubjectPrefix)
	if !ok || rest == "" {
		return "", false
	}
	return events.EventType(rest), true
}

// natsMessage is the JSON envelope published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("nats message has no event type")
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}
