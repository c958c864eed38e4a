package whatsapp

import "github.com/chatmesh/connectors/internal/connector"

// Version of the WhatsApp connector, reported on /health.
const Version = "1.2.0"

// Manifest describes the WhatsApp connector.
func Manifest() connector.Manifest {
	return connector.Manifest{
		ID:          "whatsapp",
		Name:        "WhatsApp Cloud Connector",
		Version:     Version,
		Platform:    connector.PlatformWhatsApp,
		WebhookPath: "/webhook",
		HealthPath:  "/health",
		Capabilities: []connector.Capability{
			{ID: connector.CapabilityInboundMessages, Status: connector.CapabilityActive},
			{ID: connector.CapabilityMessageStatusUpdates, Status: connector.CapabilityActive},
		},
		RequiredEnv: []string{
			"WHATSAPP_VERIFY_TOKEN",
			"WHATSAPP_WEBHOOK_SECRET",
		},
		OptionalEnv: []string{
			"WHATSAPP_ACCESS_TOKEN",
			"WHATSAPP_PHONE_NUMBER_ID",
			"REDIS_URL",
			"NATS_URL",
			"STAGING_OUTBOUND_TOKEN",
		},
	}
}
