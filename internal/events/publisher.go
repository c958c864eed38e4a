// Package events publishes accepted inbound events to JetStream so
// downstream processors consume them off the webhook hot path. The stream
// guarantees at-least-once delivery; consumers dedupe on event_id or
// dedupe_key if they need exactly-once effects.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/natsclient"
)

// Envelope is the published record. Field names follow the messaging
// conventions of the rest of the platform (snake_case), not the HTTP wire.
type Envelope struct {
	EventID       string    `json:"event_id"`
	Connector     string    `json:"connector"`
	Capability    string    `json:"capability"`
	TenantID      string    `json:"tenant_id,omitempty"`
	DedupeKey     string    `json:"dedupe_key"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// JetStream is the slice of nats.JetStreamContext the publisher needs.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher forwards capability events onto the CONNECTOR_EVENTS stream.
type Publisher struct {
	js     JetStream
	logger *zap.Logger
}

// NewPublisher builds a publisher over an established JetStream context.
func NewPublisher(js JetStream, logger *zap.Logger) *Publisher {
	return &Publisher{js: js, logger: logger}
}

// PublishInbound wraps one event in an envelope and publishes it. An error
// here marks the event failed upstream, which Meta will not retry; the
// dedupe mark already taken makes that loss final and visible in the batch
// results.
func (p *Publisher) PublishInbound(ctx context.Context, payload any, ec connector.EventContext) error {
	env := Envelope{
		EventID:       uuid.NewString(),
		Connector:     ec.Connector,
		Capability:    ec.Capability,
		TenantID:      ec.TenantID,
		DedupeKey:     ec.DedupeKey,
		CorrelationID: ec.CorrelationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	subject := natsclient.EventSubject(ec.Connector, ec.Capability)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	ec.Logger.Info("Event published",
		zap.String("subject", subject),
		zap.String("eventId", env.EventID),
	)
	return nil
}

// Handler adapts the publisher into a capability handler.
func (p *Publisher) Handler() connector.Handler {
	return func(ctx context.Context, payload any, ec connector.EventContext) error {
		return p.PublishInbound(ctx, payload, ec)
	}
}

// LogOnlyHandler is the development fallback when NATS is not configured:
// accepted events are logged and dropped.
func LogOnlyHandler() connector.Handler {
	return func(_ context.Context, _ any, ec connector.EventContext) error {
		ec.Logger.Info("Event accepted, no downstream configured")
		return nil
	}
}
