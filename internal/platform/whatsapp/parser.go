package whatsapp

import (
	"encoding/json"
	"fmt"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/runtime"
)

// notificationObject is the only object value the Cloud API sends to
// business account webhooks.
const notificationObject = "whatsapp_business_account"

// messagesField is the change field carrying messages and statuses; other
// fields (account_update, phone_number_quality_update, ...) are ignored.
const messagesField = "messages"

// Parser extracts connector events from Cloud API notifications.
type Parser struct {
	tenants map[string]string
}

// NewParser builds a parser. tenants maps phone number ids to tenant ids
// and may be nil when the deployment is single-tenant.
func NewParser(tenants map[string]string) *Parser {
	return &Parser{tenants: tenants}
}

// Parse decodes the raw body and flattens entries and changes into ordered
// events. Messages become inbound_messages events keyed on the provider
// message id; statuses become message_status_updates events keyed on
// message id plus status value. Changes for fields other than "messages"
// are skipped, which can legitimately produce an empty batch.
func (p *Parser) Parse(req runtime.Request) ([]connector.ParsedEvent, error) {
	var n Notification
	if err := json.Unmarshal(req.RawBody, &n); err != nil {
		return nil, fmt.Errorf("whatsapp: decode notification: %w", err)
	}
	if n.Object != notificationObject {
		return nil, fmt.Errorf("whatsapp: unexpected object %q", n.Object)
	}
	if len(n.Entry) == 0 {
		return nil, fmt.Errorf("whatsapp: notification has no entries")
	}

	var events []connector.ParsedEvent
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			if change.Field != messagesField {
				continue
			}
			v := change.Value
			phoneNumberID := v.Metadata.PhoneNumberID
			if phoneNumberID == "" {
				return nil, fmt.Errorf("whatsapp: change missing metadata.phone_number_id")
			}
			tenant := p.tenants[phoneNumberID]

			for _, m := range v.Messages {
				if m.ID == "" {
					return nil, fmt.Errorf("whatsapp: message missing id")
				}
				events = append(events, connector.ParsedEvent{
					Capability: connector.CapabilityInboundMessages,
					DedupeKey:  connector.MessageKey(connector.PlatformWhatsApp, phoneNumberID, m.ID),
					ScopeID:    phoneNumberID,
					TenantID:   tenant,
					Kind:       "message",
					Payload: InboundMessage{
						PhoneNumberID:      phoneNumberID,
						DisplayPhoneNumber: v.Metadata.DisplayPhoneNumber,
						Message:            m,
						Contact:            contactFor(m.From, v.Contacts),
					},
				})
			}

			for _, s := range v.Statuses {
				if s.ID == "" || s.Status == "" {
					return nil, fmt.Errorf("whatsapp: status missing id or status value")
				}
				events = append(events, connector.ParsedEvent{
					Capability: connector.CapabilityMessageStatusUpdates,
					DedupeKey:  connector.StatusKey(connector.PlatformWhatsApp, phoneNumberID, s.ID, s.Status),
					ScopeID:    phoneNumberID,
					TenantID:   tenant,
					Kind:       "status",
					Payload: StatusUpdate{
						PhoneNumberID: phoneNumberID,
						Status:        s,
					},
				})
			}
		}
	}
	return events, nil
}

// contactFor matches the contact record to a message sender.
func contactFor(from string, contacts []Contact) *Contact {
	for i := range contacts {
		if contacts[i].WaID == from {
			return &contacts[i]
		}
	}
	return nil
}
