package connector

import (
	"fmt"
	"time"
)

// Outbound intent payload types.
const (
	IntentText         = "text"
	IntentMedia        = "media"
	IntentTemplate     = "template"
	IntentReaction     = "reaction"
	IntentMarkRead     = "mark_read"
	IntentCommentReply = "comment_reply"
)

// payloadSupport lists which payload types each platform can send.
var payloadSupport = map[string]map[string]bool{
	PlatformWhatsApp: {
		IntentText:     true,
		IntentMedia:    true,
		IntentTemplate: true,
		IntentReaction: true,
		IntentMarkRead: true,
	},
	PlatformInstagram: {
		IntentText:         true,
		IntentMedia:        true,
		IntentCommentReply: true,
	},
}

// TextPayload is a plain text message.
type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"previewUrl,omitempty"`
}

// MediaPayload references media by hosted link or provider media id.
type MediaPayload struct {
	Kind    string `json:"kind"` // image, video, audio, document
	Link    string `json:"link,omitempty"`
	MediaID string `json:"mediaId,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// TemplatePayload is a pre-approved WhatsApp template send.
type TemplatePayload struct {
	Name       string `json:"name"`
	Language   string `json:"language"`
	Components []any  `json:"components,omitempty"`
}

// ReactionPayload attaches an emoji reaction to a prior message.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MarkReadPayload marks a received message as read.
type MarkReadPayload struct {
	MessageID string `json:"messageId"`
}

// CommentReplyPayload replies to an Instagram comment.
type CommentReplyPayload struct {
	CommentID string `json:"commentId"`
	Text      string `json:"text"`
}

// IntentPayload is a tagged union; Type selects which member is set.
type IntentPayload struct {
	Type         string               `json:"type"`
	Text         *TextPayload         `json:"text,omitempty"`
	Media        *MediaPayload        `json:"media,omitempty"`
	Template     *TemplatePayload     `json:"template,omitempty"`
	Reaction     *ReactionPayload     `json:"reaction,omitempty"`
	MarkRead     *MarkReadPayload     `json:"markRead,omitempty"`
	CommentReply *CommentReplyPayload `json:"commentReply,omitempty"`
}

// OutboundIntent is one requested provider send. Intents arrive either on
// the outbound JetStream work queue or through the staging endpoint.
type OutboundIntent struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenantId"`
	Provider      string        `json:"provider"`
	Recipient     string        `json:"recipient"`
	Payload       IntentPayload `json:"payload"`
	DedupeKey     string        `json:"dedupeKey,omitempty"`
	CorrelationID string        `json:"correlationId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt,omitempty"`
}

// Validate checks structural completeness and provider support. It does not
// touch the network or the dedupe store.
func (in OutboundIntent) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("intent missing id")
	}
	if in.TenantID == "" {
		return fmt.Errorf("intent %s missing tenantId", in.ID)
	}
	supported, ok := payloadSupport[in.Provider]
	if !ok {
		return fmt.Errorf("intent %s has unknown provider %q", in.ID, in.Provider)
	}
	if in.Recipient == "" && in.Payload.Type != IntentCommentReply && in.Payload.Type != IntentMarkRead {
		return fmt.Errorf("intent %s missing recipient", in.ID)
	}
	if !supported[in.Payload.Type] {
		return fmt.Errorf("intent %s: provider %s does not support payload type %q", in.ID, in.Provider, in.Payload.Type)
	}
	switch in.Payload.Type {
	case IntentText:
		if in.Payload.Text == nil || in.Payload.Text.Body == "" {
			return fmt.Errorf("intent %s: empty text payload", in.ID)
		}
	case IntentMedia:
		m := in.Payload.Media
		if m == nil || m.Kind == "" || (m.Link == "" && m.MediaID == "") {
			return fmt.Errorf("intent %s: media payload needs kind and link or mediaId", in.ID)
		}
	case IntentTemplate:
		t := in.Payload.Template
		if t == nil || t.Name == "" || t.Language == "" {
			return fmt.Errorf("intent %s: template payload needs name and language", in.ID)
		}
	case IntentReaction:
		r := in.Payload.Reaction
		if r == nil || r.MessageID == "" || r.Emoji == "" {
			return fmt.Errorf("intent %s: reaction payload needs messageId and emoji", in.ID)
		}
	case IntentMarkRead:
		if in.Payload.MarkRead == nil || in.Payload.MarkRead.MessageID == "" {
			return fmt.Errorf("intent %s: mark_read payload needs messageId", in.ID)
		}
	case IntentCommentReply:
		c := in.Payload.CommentReply
		if c == nil || c.CommentID == "" || c.Text == "" {
			return fmt.Errorf("intent %s: comment_reply payload needs commentId and text", in.ID)
		}
	}
	return nil
}

// DeriveDedupeKey returns the explicit DedupeKey when set, otherwise builds
// one from the key grammar. Comment replies key on the target comment so
// two distinct intents replying to the same comment collapse.
func (in OutboundIntent) DeriveDedupeKey(pageID string) string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	if in.Payload.Type == IntentCommentReply && in.Payload.CommentReply != nil {
		return CommentReplyKey(in.Provider, in.TenantID, pageID, in.Payload.CommentReply.CommentID)
	}
	return IntentKey(in.Provider, in.TenantID, in.ID)
}
