// Package connector defines the contracts shared by every platform
// connector: parsed inbound events, capability handlers, outbound send
// intents, manifests, and the dedupe key grammar.
package connector

import (
	"context"

	"go.uber.org/zap"
)

// Platform identifiers. Each connector binary serves exactly one platform.
const (
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
)

// Capability identifiers. Parsers tag every event with one of these and the
// runtime dispatches on them.
const (
	CapabilityInboundMessages      = "inbound_messages"
	CapabilityMessageStatusUpdates = "message_status_updates"
	CapabilityCommentEvents        = "comment_events"
)

// ParsedEvent is one platform event extracted from a webhook delivery.
//
// Payload is kept opaque here: the platform parser decodes it and the
// registered handler for Capability is the only consumer that knows its
// concrete shape. CorrelationID may be set when the payload itself carries
// one; Meta webhooks do not, so the Meta parsers leave it empty and the
// pipeline falls back to the request header.
type ParsedEvent struct {
	Capability    string `json:"capability"`
	DedupeKey     string `json:"dedupeKey"`
	CorrelationID string `json:"correlationId,omitempty"`
	ScopeID       string `json:"scopeId,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
	Kind          string `json:"kind"`
	Payload       any    `json:"payload"`
}

// EventContext carries request-scoped metadata into a capability handler.
type EventContext struct {
	Connector     string
	Capability    string
	CorrelationID string
	TenantID      string
	DedupeKey     string
	Logger        *zap.Logger
}

// Handler processes one parsed event. A non-nil error marks the event as
// failed in the batch summary; it never changes the HTTP status of the
// webhook response.
type Handler func(ctx context.Context, payload any, ec EventContext) error

// Registry maps capability ids to handlers. Registration happens during
// boot, before the runtime serves traffic; the registry is read-only
// afterwards and therefore needs no locking.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a capability id, replacing any previous
// binding for the same id.
func (r *Registry) Register(capability string, h Handler) {
	r.handlers[capability] = h
}

// Lookup returns the handler for a capability id, or false when none is
// registered.
func (r *Registry) Lookup(capability string) (Handler, bool) {
	h, ok := r.handlers[capability]
	return h, ok
}

// Capabilities lists the registered capability ids. Order is unspecified.
func (r *Registry) Capabilities() []string {
	out := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		out = append(out, id)
	}
	return out
}
