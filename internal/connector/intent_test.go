package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textIntent(provider string) OutboundIntent {
	return OutboundIntent{
		ID:        "550e8400-e29b-41d4-a716-446655440000",
		TenantID:  "tenant-stg-ig",
		Provider:  provider,
		Recipient: "+15551234567",
		Payload:   IntentPayload{Type: IntentText, Text: &TextPayload{Body: "hello"}},
	}
}

func TestOutboundIntent_Validate_TextOK(t *testing.T) {
	assert.NoError(t, textIntent(PlatformWhatsApp).Validate())
	assert.NoError(t, textIntent(PlatformInstagram).Validate())
}

func TestOutboundIntent_Validate_MissingFields(t *testing.T) {
	in := textIntent(PlatformWhatsApp)
	in.ID = ""
	assert.Error(t, in.Validate())

	in = textIntent(PlatformWhatsApp)
	in.TenantID = ""
	assert.Error(t, in.Validate())

	in = textIntent(PlatformWhatsApp)
	in.Recipient = ""
	assert.Error(t, in.Validate())

	in = textIntent(PlatformWhatsApp)
	in.Payload.Text = nil
	assert.Error(t, in.Validate())
}

func TestOutboundIntent_Validate_UnknownProvider(t *testing.T) {
	in := textIntent("telegram")
	assert.Error(t, in.Validate())
}

func TestOutboundIntent_Validate_ProviderSupport(t *testing.T) {
	// Templates are WhatsApp only.
	in := textIntent(PlatformInstagram)
	in.Payload = IntentPayload{Type: IntentTemplate, Template: &TemplatePayload{Name: "welcome", Language: "en"}}
	assert.Error(t, in.Validate())

	in.Provider = PlatformWhatsApp
	assert.NoError(t, in.Validate())

	// Comment replies are Instagram only and need no recipient.
	reply := OutboundIntent{
		ID:       "i-1",
		TenantID: "t-1",
		Provider: PlatformInstagram,
		Payload: IntentPayload{
			Type:         IntentCommentReply,
			CommentReply: &CommentReplyPayload{CommentID: "cmt_777", Text: "thanks"},
		},
	}
	assert.NoError(t, reply.Validate())

	reply.Provider = PlatformWhatsApp
	assert.Error(t, reply.Validate())
}

func TestOutboundIntent_Validate_PayloadShapes(t *testing.T) {
	in := textIntent(PlatformWhatsApp)

	in.Payload = IntentPayload{Type: IntentMedia, Media: &MediaPayload{Kind: "image"}}
	assert.Error(t, in.Validate(), "media needs a link or media id")

	in.Payload.Media.Link = "https://example.test/cat.png"
	assert.NoError(t, in.Validate())

	in.Payload = IntentPayload{Type: IntentReaction, Reaction: &ReactionPayload{MessageID: "wamid.1"}}
	assert.Error(t, in.Validate(), "reaction needs an emoji")

	in.Payload = IntentPayload{Type: IntentMarkRead, MarkRead: &MarkReadPayload{MessageID: "wamid.1"}}
	in.Recipient = ""
	assert.NoError(t, in.Validate(), "mark_read addresses a message, not a recipient")
}

func TestOutboundIntent_DeriveDedupeKey(t *testing.T) {
	in := textIntent(PlatformInstagram)
	key := in.DeriveDedupeKey("PAGE_42")
	require.Equal(t, "instagram:tenant:tenant-stg-ig:intent:550e8400-e29b-41d4-a716-446655440000", key)

	in.DedupeKey = "custom:key"
	assert.Equal(t, "custom:key", in.DeriveDedupeKey("PAGE_42"))

	reply := OutboundIntent{
		ID:       "i-2",
		TenantID: "tenant-stg-ig",
		Provider: PlatformInstagram,
		Payload: IntentPayload{
			Type:         IntentCommentReply,
			CommentReply: &CommentReplyPayload{CommentID: "cmt_777", Text: "thanks"},
		},
	}
	assert.Equal(t,
		"instagram:tenant:tenant-stg-ig:page:PAGE_42:comment:cmt_777:reply",
		reply.DeriveDedupeKey("PAGE_42"))
}
