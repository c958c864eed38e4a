package instagram

import (
	"encoding/json"
	"fmt"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/runtime"
)

const (
	notificationObject = "instagram"
	commentsField      = "comments"
)

// Parser flattens Instagram webhook notifications into parsed events.
type Parser struct {
	tenants map[string]string
}

// NewParser builds a parser. tenants maps page ids to tenant ids and
// may be nil.
func NewParser(tenants map[string]string) *Parser {
	return &Parser{tenants: tenants}
}

// Parse validates the notification envelope and emits one event per
// direct message and one per comment, preserving delivery order.
// Echo messages and read receipts are dropped without error.
func (p *Parser) Parse(req runtime.Request) ([]connector.ParsedEvent, error) {
	var n Notification
	if err := json.Unmarshal(req.RawBody, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if n.Object != notificationObject {
		return nil, fmt.Errorf("unexpected object %q", n.Object)
	}
	if len(n.Entry) == 0 {
		return nil, fmt.Errorf("notification has no entries")
	}

	var events []connector.ParsedEvent
	for _, e := range n.Entry {
		if e.ID == "" {
			return nil, fmt.Errorf("entry missing page id")
		}
		tenantID := p.tenants[e.ID]

		for _, ms := range e.Messaging {
			if ms.Message == nil || ms.Message.IsEcho {
				continue
			}
			if ms.Message.MID == "" {
				return nil, fmt.Errorf("message missing mid")
			}
			events = append(events, connector.ParsedEvent{
				Capability: connector.CapabilityInboundMessages,
				DedupeKey:  connector.MessageKey(connector.PlatformInstagram, e.ID, ms.Message.MID),
				ScopeID:    e.ID,
				TenantID:   tenantID,
				Kind:       "message",
				Payload: InboundMessage{
					PageID:    e.ID,
					SenderID:  ms.Sender.ID,
					Timestamp: ms.Timestamp,
					Message:   *ms.Message,
				},
			})
		}

		for _, ch := range e.Changes {
			if ch.Field != commentsField {
				continue
			}
			if ch.Value.ID == "" {
				return nil, fmt.Errorf("comment missing id")
			}
			events = append(events, connector.ParsedEvent{
				Capability: connector.CapabilityCommentEvents,
				DedupeKey:  connector.CommentKey(connector.PlatformInstagram, e.ID, ch.Value.ID),
				ScopeID:    e.ID,
				TenantID:   tenantID,
				Kind:       "comment",
				Payload: CommentEvent{
					PageID:  e.ID,
					Comment: ch.Value,
				},
			})
		}
	}
	return events, nil
}
