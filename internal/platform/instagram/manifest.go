package instagram

import "github.com/chatmesh/connectors/internal/connector"

// Version is the connector release reported by /health.
const Version = "0.9.0"

// Manifest describes the Instagram connector. story_mentions is listed
// so the capability id is reserved, but stays planned until the story
// attachment parser lands.
func Manifest() connector.Manifest {
	return connector.Manifest{
		ID:          "instagram",
		Name:        "Instagram Connector",
		Version:     Version,
		Platform:    connector.PlatformInstagram,
		WebhookPath: "/webhook",
		HealthPath:  "/health",
		Capabilities: []connector.Capability{
			{ID: connector.CapabilityInboundMessages, Status: connector.CapabilityActive},
			{ID: connector.CapabilityCommentEvents, Status: connector.CapabilityActive},
			{ID: "story_mentions", Status: connector.CapabilityPlanned},
		},
		RequiredEnv: []string{
			"INSTAGRAM_VERIFY_TOKEN",
			"INSTAGRAM_WEBHOOK_SECRET",
		},
		OptionalEnv: []string{
			"INSTAGRAM_ACCESS_TOKEN",
			"INSTAGRAM_PAGE_ID",
			"REDIS_URL",
			"NATS_URL",
			"STAGING_OUTBOUND_TOKEN",
		},
	}
}
