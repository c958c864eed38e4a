// Package whatsapp parses WhatsApp Cloud API webhook notifications into
// connector events and describes the connector's manifest.
package whatsapp

// Notification is the top-level webhook body. Object is always
// "whatsapp_business_account" for Cloud API deliveries.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one WhatsApp Business Account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field update; messages and statuses arrive under the
// "messages" field.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value is the change payload: metadata about the receiving number plus
// inbound messages and/or outbound status updates.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata identifies the business phone number the delivery belongs to.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile carries the sender display name.
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound customer message. Exactly one of the typed
// members matches Type.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Image     *Media    `json:"image,omitempty"`
	Video     *Media    `json:"video,omitempty"`
	Audio     *Media    `json:"audio,omitempty"`
	Document  *Media    `json:"document,omitempty"`
	Sticker   *Media    `json:"sticker,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	Context   *Context  `json:"context,omitempty"`
}

// Text is the body of a text message.
type Text struct {
	Body string `json:"body"`
}

// Media references provider-hosted media by id.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Reaction is an emoji reaction to a prior message.
type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Context links a reply to the message it replies to.
type Context struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Status reports a delivery state transition (sent, delivered, read,
// failed) for a message the business sent.
type Status struct {
	ID                    string        `json:"id"`
	RecipientID           string        `json:"recipient_id"`
	Status                string        `json:"status"`
	Timestamp             string        `json:"timestamp"`
	BizOpaqueCallbackData string        `json:"biz_opaque_callback_data,omitempty"`
	Errors                []StatusError `json:"errors,omitempty"`
}

// StatusError explains a failed status.
type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// InboundMessage is the handler payload for one inbound message event.
type InboundMessage struct {
	PhoneNumberID      string   `json:"phoneNumberId"`
	DisplayPhoneNumber string   `json:"displayPhoneNumber,omitempty"`
	Message            Message  `json:"message"`
	Contact            *Contact `json:"contact,omitempty"`
}

// StatusUpdate is the handler payload for one status event.
type StatusUpdate struct {
	PhoneNumberID string `json:"phoneNumberId"`
	Status        Status `json:"status"`
}
