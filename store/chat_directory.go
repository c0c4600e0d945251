package store

import (
	"context"
	"sync"
)

// ChatDirectory is an in-memory implementation of hub.ChatDirectory. It is
// the authority on chat membership for a single process; a deployment backed
// by the real chat service swaps it out behind the same interface.
type ChatDirectory struct {
	mu sync.RWMutex

	// chat id -> set of member user ids
	members map[string]map[string]struct{}

	// user id -> set of chat ids
	chats map[string]map[string]struct{}
}

// NewChatDirectory creates an empty directory.
func NewChatDirectory() *ChatDirectory {
	return &ChatDirectory{
		members: make(map[string]map[string]struct{}),
		chats:   make(map[string]map[string]struct{}),
	}
}

// AddChat creates a chat with the given members. Adding an existing chat
// merges the member sets.
func (d *ChatDirectory) AddChat(chatID string, memberIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.members[chatID] == nil {
		d.members[chatID] = make(map[string]struct{})
	}
	for _, userID := range memberIDs {
		d.members[chatID][userID] = struct{}{}
		if d.chats[userID] == nil {
			d.chats[userID] = make(map[string]struct{})
		}
		d.chats[userID][chatID] = struct{}{}
	}
}

// AddMember adds one user to a chat, creating the chat if needed.
func (d *ChatDirectory) AddMember(chatID, userID string) {
	d.AddChat(chatID, userID)
}

// RemoveMember removes a user from a chat.
func (d *ChatDirectory) RemoveMember(chatID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set, ok := d.members[chatID]; ok {
		delete(set, userID)
	}
	if set, ok := d.chats[userID]; ok {
		delete(set, chatID)
	}
}

// ChatsOf returns the ids of every chat the user is a member of.
func (d *ChatDirectory) ChatsOf(ctx context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.chats[userID]
	out := make([]string, 0, len(set))
	for chatID := range set {
		out = append(out, chatID)
	}
	return out, nil
}

// IsMember reports whether a user belongs to a chat.
func (d *ChatDirectory) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.members[chatID][userID]
	return ok, nil
}
