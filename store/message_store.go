package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courier-chat/courier/hub"
	"github.com/google/uuid"
)

// editWindow is how long after creation a message may still be edited by its
// sender.
const editWindow = 5 * time.Minute

// MessageStore is an in-memory implementation of hub.MessageStore. It
// enforces chat-membership authorization on create and sender-identity checks
// on update and delete; the hub relays its verdicts without second-guessing
// them.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]hub.Message

	directory *ChatDirectory
	now       func() time.Time
}

// NewMessageStore creates an empty store that authorizes against the given
// chat directory.
func NewMessageStore(directory *ChatDirectory) *MessageStore {
	return &MessageStore{
		messages:  make(map[string]hub.Message),
		directory: directory,
		now:       time.Now,
	}
}

// Create persists a new message after verifying the sender belongs to the
// target chat.
func (s *MessageStore) Create(ctx context.Context, msg hub.NewMessage) (hub.Message, error) {
	member, err := s.directory.IsMember(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		return hub.Message{}, fmt.Errorf("%w: membership check: %v", hub.ErrUpstream, err)
	}
	if !member {
		return hub.Message{}, fmt.Errorf("%w: user %s is not a member of chat %s", hub.ErrForbidden, msg.SenderID, msg.ChatID)
	}

	stored := hub.Message{
		ID:        uuid.New().String(),
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.messages[stored.ID] = stored
	s.mu.Unlock()

	return stored, nil
}

// Get returns a message by id. Soft-deleted messages read as not found.
func (s *MessageStore) Get(ctx context.Context, id string) (hub.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok || msg.IsDeleted {
		return hub.Message{}, fmt.Errorf("%w: message %s", hub.ErrNotFound, id)
	}
	return msg, nil
}

// Update edits a message's content. Only the sender may edit, and only within
// the edit window.
func (s *MessageStore) Update(ctx context.Context, id, content, userID string) (hub.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.IsDeleted {
		return hub.Message{}, fmt.Errorf("%w: message %s", hub.ErrNotFound, id)
	}
	if msg.SenderID != userID {
		return hub.Message{}, fmt.Errorf("%w: user %s is not the sender of message %s", hub.ErrForbidden, userID, id)
	}
	if s.now().UTC().Sub(msg.CreatedAt) > editWindow {
		return hub.Message{}, fmt.Errorf("%w: edit window for message %s has passed", hub.ErrForbidden, id)
	}

	updatedAt := s.now().UTC()
	msg.Content = content
	msg.UpdatedAt = &updatedAt
	s.messages[id] = msg

	return msg, nil
}

// SoftDelete marks a message deleted without removing the record. Only the
// sender may delete.
func (s *MessageStore) SoftDelete(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.IsDeleted {
		return fmt.Errorf("%w: message %s", hub.ErrNotFound, id)
	}
	if msg.SenderID != userID {
		return fmt.Errorf("%w: user %s is not the sender of message %s", hub.ErrForbidden, userID, id)
	}

	msg.IsDeleted = true
	s.messages[id] = msg
	return nil
}
