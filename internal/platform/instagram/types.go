// Package instagram parses Meta's Instagram webhook payloads. Direct
// messages arrive on entry[].messaging and comment events on
// entry[].changes with field "comments".
package instagram

// Notification is the top-level webhook body.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups deliveries for one Instagram professional account. The
// entry id is the page-scoped account id.
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging,omitempty"`
	Changes   []Change    `json:"changes,omitempty"`
}

// Messaging is one direct-message delivery. Items without a message
// body (read receipts, reactions we do not handle yet) carry nil
// Message.
type Messaging struct {
	Sender    Party    `json:"sender"`
	Recipient Party    `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
	Read      *Read    `json:"read,omitempty"`
}

// Party identifies a messaging participant by Instagram-scoped id.
type Party struct {
	ID string `json:"id"`
}

// Message is the DM content. IsEcho marks copies of our own outbound
// sends that Meta mirrors back; processing them would loop.
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyTo     *ReplyTo     `json:"reply_to,omitempty"`
}

type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

type AttachmentPayload struct {
	URL string `json:"url,omitempty"`
}

type ReplyTo struct {
	MID string `json:"mid,omitempty"`
}

type Read struct {
	MID string `json:"mid"`
}

// Change carries non-messaging account events. Only field "comments"
// is handled.
type Change struct {
	Field string       `json:"field"`
	Value CommentValue `json:"value"`
}

// CommentValue is the payload of a comments change.
type CommentValue struct {
	ID    string  `json:"id"`
	Text  string  `json:"text,omitempty"`
	From  *Author `json:"from,omitempty"`
	Media *Media  `json:"media,omitempty"`
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

type Media struct {
	ID               string `json:"id"`
	MediaProductType string `json:"media_product_type,omitempty"`
}

// InboundMessage is the payload handed to inbound_messages handlers.
type InboundMessage struct {
	PageID    string  `json:"pageId"`
	SenderID  string  `json:"senderId"`
	Timestamp int64   `json:"timestamp"`
	Message   Message `json:"message"`
}

// CommentEvent is the payload handed to comment_events handlers.
type CommentEvent struct {
	PageID  string       `json:"pageId"`
	Comment CommentValue `json:"comment"`
}
