package connector

import "fmt"

// Dedupe key grammar. Every key that reaches the dedupe store is built by
// one of these helpers so parsers, the outbound dispatcher, and tests agree
// on the exact shape.
//
//	inbound message:  <platform>:<scopeId>:msg:<externalMessageId>
//	status update:    <platform>:<scopeId>:status:<messageId>:<status>
//	inbound comment:  <platform>:<pageId>:comment:<commentId>
//	outbound intent:  <platform>:tenant:<tenantId>:intent:<intentId>
//	comment reply:    <platform>:tenant:<tenantId>:page:<pageId>:comment:<commentId>:reply

// MessageKey builds the dedupe key for an inbound message.
func MessageKey(platform, scopeID, messageID string) string {
	return fmt.Sprintf("%s:%s:msg:%s", platform, scopeID, messageID)
}

// StatusKey builds the dedupe key for a message status transition. The
// status value is part of the key so each transition (sent, delivered,
// read) dedupes independently.
func StatusKey(platform, scopeID, messageID, status string) string {
	return fmt.Sprintf("%s:%s:status:%s:%s", platform, scopeID, messageID, status)
}

// CommentKey builds the dedupe key for an inbound comment event.
func CommentKey(platform, pageID, commentID string) string {
	return fmt.Sprintf("%s:%s:comment:%s", platform, pageID, commentID)
}

// IntentKey builds the dedupe key for an outbound send intent.
func IntentKey(platform, tenantID, intentID string) string {
	return fmt.Sprintf("%s:tenant:%s:intent:%s", platform, tenantID, intentID)
}

// CommentReplyKey builds the dedupe key for an outbound comment reply.
func CommentReplyKey(platform, tenantID, pageID, commentID string) string {
	return fmt.Sprintf("%s:tenant:%s:page:%s:comment:%s:reply", platform, tenantID, pageID, commentID)
}
