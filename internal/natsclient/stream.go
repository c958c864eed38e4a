package natsclient

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamOutboundIntents queues send intents for the connectors.
	StreamOutboundIntents = "OUTBOUND_INTENTS"
	// SubjectOutboundIntents is its subject hierarchy; the leaf is the
	// provider (outbound.intents.whatsapp, outbound.intents.instagram).
	SubjectOutboundIntents = "outbound.intents.>"

	// StreamConnectorEvents carries accepted inbound events to downstream
	// services.
	StreamConnectorEvents = "CONNECTOR_EVENTS"
	// SubjectConnectorEvents is its subject hierarchy:
	// connectors.<connector>.<capability>.
	SubjectConnectorEvents = "connectors.>"
)

// ProvisionStreams idempotently creates the streams both connectors rely
// on. Safe to call from every replica at boot.
func (c *Client) ProvisionStreams() error {
	streams := []*nats.StreamConfig{
		{
			Name:      StreamOutboundIntents,
			Subjects:  []string{SubjectOutboundIntents},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		},
		{
			Name:      StreamConnectorEvents,
			Subjects:  []string{SubjectConnectorEvents},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		},
	}

	for _, cfg := range streams {
		if _, err := c.JS.StreamInfo(cfg.Name); err == nil {
			c.Log.Info("NATS stream exists", zap.String("stream", cfg.Name))
			continue
		} else if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to check stream info for %s: %w", cfg.Name, err)
		}

		if _, err := c.JS.AddStream(cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
		}
		c.Log.Info("NATS stream provisioned", zap.String("stream", cfg.Name))
	}
	return nil
}

// IntentSubject returns the work-queue subject for a provider.
func IntentSubject(provider string) string {
	return "outbound.intents." + provider
}

// EventSubject returns the fan-out subject for a connector capability.
func EventSubject(connector, capability string) string {
	return fmt.Sprintf("connectors.%s.%s", connector, capability)
}
