package hub

import (
	"context"
	"net/http"
	"time"
)

// Message is a chat message as returned by the message store.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
}

// NewMessage is the payload for creating a message.
type NewMessage struct {
	ChatID   string `json:"chat_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// AuthResolver extracts a validated user identity from an incoming
// connection's credentials. Returns ErrUnauthenticated when no valid identity
// is present.
type AuthResolver interface {
	IdentityOf(r *http.Request) (string, error)
}

// ChatDirectory answers chat membership questions. It is the authority on
// which users belong to which chats; the hub never caches its answers beyond
// the lifetime of a single connection.
type ChatDirectory interface {
	ChatsOf(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
}

// MessageStore persists messages. It enforces chat-membership authorization
// and sender-identity checks itself; the hub only relays its verdicts.
type MessageStore interface {
	Create(ctx context.Context, msg NewMessage) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	Update(ctx context.Context, id, content, userID string) (Message, error)
	SoftDelete(ctx context.Context, id, userID string) error
}

// UserStore persists user state the hub derives, currently only the
// online/offline status written on presence transitions.
type UserStore interface {
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
}
