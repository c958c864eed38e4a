package client

import (
	"fmt"

	"github.com/chatmesh/connectors/internal/connector"
)

// WhatsApp Cloud API send payloads. biz_opaque_callback_data carries the
// intent id so delivery status webhooks can be correlated back, and so the
// provider can collapse duplicates if the dedupe store ever fails open.

type waRequest struct {
	MessagingProduct      string      `json:"messaging_product"`
	RecipientType         string      `json:"recipient_type,omitempty"`
	To                    string      `json:"to,omitempty"`
	Type                  string      `json:"type,omitempty"`
	Text                  *waText     `json:"text,omitempty"`
	Image                 *waMedia    `json:"image,omitempty"`
	Video                 *waMedia    `json:"video,omitempty"`
	Audio                 *waMedia    `json:"audio,omitempty"`
	Document              *waMedia    `json:"document,omitempty"`
	Template              *waTemplate `json:"template,omitempty"`
	Reaction              *waReaction `json:"reaction,omitempty"`
	Status                string      `json:"status,omitempty"`
	MessageID             string      `json:"message_id,omitempty"`
	BizOpaqueCallbackData string      `json:"biz_opaque_callback_data,omitempty"`
}

type waText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type waMedia struct {
	Link    string `json:"link,omitempty"`
	ID      string `json:"id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type waTemplate struct {
	Name       string     `json:"name"`
	Language   waLanguage `json:"language"`
	Components []any      `json:"components,omitempty"`
}

type waLanguage struct {
	Code string `json:"code"`
}

type waReaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Success bool `json:"success,omitempty"`
}

// buildWhatsAppRequest maps a validated intent onto the wire payload.
func buildWhatsAppRequest(in connector.OutboundIntent) (waRequest, error) {
	req := waRequest{
		MessagingProduct:      "whatsapp",
		RecipientType:         "individual",
		To:                    in.Recipient,
		BizOpaqueCallbackData: in.ID,
	}
	switch in.Payload.Type {
	case connector.IntentText:
		req.Type = "text"
		req.Text = &waText{Body: in.Payload.Text.Body, PreviewURL: in.Payload.Text.PreviewURL}
	case connector.IntentMedia:
		m := in.Payload.Media
		media := &waMedia{Link: m.Link, ID: m.MediaID, Caption: m.Caption}
		req.Type = m.Kind
		switch m.Kind {
		case "image":
			req.Image = media
		case "video":
			req.Video = media
		case "audio":
			media.Caption = ""
			req.Audio = media
		case "document":
			req.Document = media
		default:
			return waRequest{}, fmt.Errorf("client: unsupported media kind %q", m.Kind)
		}
	case connector.IntentTemplate:
		t := in.Payload.Template
		req.Type = "template"
		req.Template = &waTemplate{
			Name:       t.Name,
			Language:   waLanguage{Code: t.Language},
			Components: t.Components,
		}
	case connector.IntentReaction:
		r := in.Payload.Reaction
		req.Type = "reaction"
		req.Reaction = &waReaction{MessageID: r.MessageID, Emoji: r.Emoji}
	case connector.IntentMarkRead:
		// Read receipts post to the same endpoint with a different shape:
		// no recipient, no callback data, just the target message.
		return waRequest{
			MessagingProduct: "whatsapp",
			Status:           "read",
			MessageID:        in.Payload.MarkRead.MessageID,
		}, nil
	default:
		return waRequest{}, fmt.Errorf("client: whatsapp cannot carry payload type %q", in.Payload.Type)
	}
	return req, nil
}

// Instagram messaging payloads.

type igDMRequest struct {
	Recipient igParty   `json:"recipient"`
	Message   igMessage `json:"message"`
}

type igParty struct {
	ID string `json:"id"`
}

type igMessage struct {
	Text       string        `json:"text,omitempty"`
	Attachment *igAttachment `json:"attachment,omitempty"`
}

type igAttachment struct {
	Type    string              `json:"type"`
	Payload igAttachmentPayload `json:"payload"`
}

type igAttachmentPayload struct {
	URL string `json:"url,omitempty"`
}

type igDMResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type igReplyRequest struct {
	Message string `json:"message"`
}

type igReplyResponse struct {
	ID string `json:"id"`
}
