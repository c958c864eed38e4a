package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/runtime"
)

const dmNotification = `{
  "object": "instagram",
  "entry": [{
    "id": "IG_PAGE_001",
    "time": 1724580000000,
    "messaging": [{
      "sender": {"id": "IGSID_USER_1"},
      "recipient": {"id": "IG_PAGE_001"},
      "timestamp": 1724580000100,
      "message": {"mid": "ig.mid.dm.001", "text": "hi from a DM"}
    }]
  }]
}`

const commentNotification = `{
  "object": "instagram",
  "entry": [{
    "id": "IG_PAGE_001",
    "time": 1724580000000,
    "changes": [{
      "field": "comments",
      "value": {
        "id": "COMMENT_17890",
        "text": "love this",
        "from": {"id": "IGSID_USER_2", "username": "ada.codes"},
        "media": {"id": "MEDIA_555", "media_product_type": "FEED"}
      }
    }]
  }]
}`

func rawRequest(body string) runtime.Request {
	return runtime.Request{RawBody: []byte(body)}
}

func TestParser_DirectMessage(t *testing.T) {
	p := NewParser(nil)

	events, err := p.Parse(rawRequest(dmNotification))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, connector.CapabilityInboundMessages, ev.Capability)
	assert.Equal(t, "instagram:IG_PAGE_001:msg:ig.mid.dm.001", ev.DedupeKey)
	assert.Equal(t, "IG_PAGE_001", ev.ScopeID)
	assert.Equal(t, "message", ev.Kind)

	payload := ev.Payload.(InboundMessage)
	assert.Equal(t, "IGSID_USER_1", payload.SenderID)
	assert.Equal(t, "hi from a DM", payload.Message.Text)
}

func TestParser_CommentEvent(t *testing.T) {
	p := NewParser(map[string]string{"IG_PAGE_001": "tenant-stg-ig"})

	events, err := p.Parse(rawRequest(commentNotification))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, connector.CapabilityCommentEvents, ev.Capability)
	assert.Equal(t, "instagram:IG_PAGE_001:comment:COMMENT_17890", ev.DedupeKey)
	assert.Equal(t, "tenant-stg-ig", ev.TenantID)
	assert.Equal(t, "comment", ev.Kind)

	payload := ev.Payload.(CommentEvent)
	assert.Equal(t, "COMMENT_17890", payload.Comment.ID)
	require.NotNil(t, payload.Comment.From)
	assert.Equal(t, "ada.codes", payload.Comment.From.Username)
}

func TestParser_EchoMessageDropped(t *testing.T) {
	body := `{
	  "object": "instagram",
	  "entry": [{
	    "id": "IG_PAGE_001",
	    "messaging": [{
	      "sender": {"id": "IG_PAGE_001"},
	      "recipient": {"id": "IGSID_USER_1"},
	      "timestamp": 1724580000100,
	      "message": {"mid": "ig.mid.echo.001", "text": "our own send", "is_echo": true}
	    }]
	  }]
	}`
	p := NewParser(nil)

	events, err := p.Parse(rawRequest(body))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParser_ReadReceiptDropped(t *testing.T) {
	body := `{
	  "object": "instagram",
	  "entry": [{
	    "id": "IG_PAGE_001",
	    "messaging": [{
	      "sender": {"id": "IGSID_USER_1"},
	      "recipient": {"id": "IG_PAGE_001"},
	      "timestamp": 1724580000100,
	      "read": {"mid": "ig.mid.dm.001"}
	    }]
	  }]
	}`
	p := NewParser(nil)

	events, err := p.Parse(rawRequest(body))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParser_UnhandledChangeFieldSkipped(t *testing.T) {
	body := `{
	  "object": "instagram",
	  "entry": [{
	    "id": "IG_PAGE_001",
	    "changes": [{"field": "story_insights", "value": {"id": "X"}}]
	  }]
	}`
	p := NewParser(nil)

	events, err := p.Parse(rawRequest(body))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParser_WrongObject(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(rawRequest(`{"object": "whatsapp_business_account", "entry": [{"id": "x"}]}`))
	assert.Error(t, err)
}

func TestParser_MalformedJSON(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(rawRequest(`{"object"`))
	assert.Error(t, err)
}

func TestParser_NoEntries(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(rawRequest(`{"object": "instagram", "entry": []}`))
	assert.Error(t, err)
}

func TestParser_MessageMissingMID(t *testing.T) {
	body := `{
	  "object": "instagram",
	  "entry": [{
	    "id": "IG_PAGE_001",
	    "messaging": [{
	      "sender": {"id": "IGSID_USER_1"},
	      "recipient": {"id": "IG_PAGE_001"},
	      "message": {"text": "no mid"}
	    }]
	  }]
	}`
	p := NewParser(nil)
	_, err := p.Parse(rawRequest(body))
	assert.Error(t, err)
}

func TestParser_EntryMissingPageID(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(rawRequest(`{"object": "instagram", "entry": [{"time": 1}]}`))
	assert.Error(t, err)
}

func TestParser_MixedEntryPreservesOrder(t *testing.T) {
	body := `{
	  "object": "instagram",
	  "entry": [{
	    "id": "IG_PAGE_001",
	    "messaging": [
	      {"sender": {"id": "A"}, "recipient": {"id": "IG_PAGE_001"}, "message": {"mid": "ig.mid.a"}},
	      {"sender": {"id": "B"}, "recipient": {"id": "IG_PAGE_001"}, "message": {"mid": "ig.mid.b"}}
	    ],
	    "changes": [{"field": "comments", "value": {"id": "C_1"}}]
	  }]
	}`
	p := NewParser(nil)

	events, err := p.Parse(rawRequest(body))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "instagram:IG_PAGE_001:msg:ig.mid.a", events[0].DedupeKey)
	assert.Equal(t, "instagram:IG_PAGE_001:msg:ig.mid.b", events[1].DedupeKey)
	assert.Equal(t, "instagram:IG_PAGE_001:comment:C_1", events[2].DedupeKey)
}

func TestManifest_Shape(t *testing.T) {
	m := Manifest()
	assert.Equal(t, "instagram", m.ID)
	assert.ElementsMatch(t,
		[]string{connector.CapabilityInboundMessages, connector.CapabilityCommentEvents},
		m.ActiveCapabilities(), "planned capabilities stay out of the active set")
}
