package hub

import (
	"encoding/json"
	"time"
)

// Broadcast event names. These are the asynchronous events fanned out to
// group members; clients never send them.
const (
	EventMessageReceived         = "message_received"
	EventMessageUpdated          = "message_updated"
	EventMessageDeleted          = "message_deleted"
	EventUserJoinedChat          = "user_joined_chat"
	EventUserLeftChat            = "user_left_chat"
	EventUserTyping              = "user_typing"
	EventUserOnlineStatusChanged = "user_online_status_changed"
	EventError                   = "error"
)

// Envelope is the wire frame for every server-to-client event.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// newEnvelope builds an event frame with the current UTC timestamp.
func newEnvelope(event string, data any) Envelope {
	return Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// marshalEnvelope serializes an event frame for transport.
func marshalEnvelope(event string, data any) ([]byte, error) {
	return json.Marshal(newEnvelope(event, data))
}

// MessageDeletedPayload carries the id of a deleted message.
type MessageDeletedPayload struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

// ChatMembershipPayload is the payload for user_joined_chat and
// user_left_chat events.
type ChatMembershipPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// TypingPayload is the payload for user_typing events.
type TypingPayload struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// OnlineStatusPayload is the payload for user_online_status_changed events.
type OnlineStatusPayload struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// ErrorPayload is sent to the calling connection when an RPC fails. It is
// never broadcast.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
