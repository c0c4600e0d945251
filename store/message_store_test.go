package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-chat/courier/hub"
)

// newTestMessageStore returns a store with a controllable clock.
func newTestMessageStore(members ...string) (*MessageStore, *ChatDirectory, *time.Time) {
	dir := NewChatDirectory()
	dir.AddChat("g1", members...)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMessageStore(dir)
	s.now = func() time.Time { return now }
	return s, dir, &now
}

func TestMessageStore_CreateRequiresChatMembership(t *testing.T) {
	s, _, _ := newTestMessageStore("alice")
	ctx := context.Background()

	msg, err := s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "g1", msg.ChatID)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), msg.CreatedAt)

	_, err = s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "mallory", Content: "hi"})
	assert.ErrorIs(t, err, hub.ErrForbidden)

	_, err = s.Create(ctx, hub.NewMessage{ChatID: "no-such-chat", SenderID: "alice", Content: "hi"})
	assert.ErrorIs(t, err, hub.ErrForbidden)
}

func TestMessageStore_UpdateOnlyBySenderWithinWindow(t *testing.T) {
	s, _, now := newTestMessageStore("alice", "bob")
	ctx := context.Background()

	msg, err := s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	_, err = s.Update(ctx, msg.ID, "edited", "bob")
	assert.ErrorIs(t, err, hub.ErrForbidden, "only the sender may edit")

	*now = now.Add(editWindow - time.Second)
	updated, err := s.Update(ctx, msg.ID, "edited", "alice")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, *now, *updated.UpdatedAt)

	*now = now.Add(2 * time.Second)
	_, err = s.Update(ctx, msg.ID, "too late", "alice")
	assert.ErrorIs(t, err, hub.ErrForbidden, "edit window has passed")

	_, err = s.Update(ctx, "no-such-id", "x", "alice")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

func TestMessageStore_SoftDelete(t *testing.T) {
	s, _, _ := newTestMessageStore("alice", "bob")
	ctx := context.Background()

	msg, err := s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.SoftDelete(ctx, msg.ID, "bob"), hub.ErrForbidden, "only the sender may delete")

	require.NoError(t, s.SoftDelete(ctx, msg.ID, "alice"))

	// The record is hidden from reads and edits but not erased.
	_, err = s.Get(ctx, msg.ID)
	assert.ErrorIs(t, err, hub.ErrNotFound)
	_, err = s.Update(ctx, msg.ID, "x", "alice")
	assert.ErrorIs(t, err, hub.ErrNotFound)
	assert.ErrorIs(t, s.SoftDelete(ctx, msg.ID, "alice"), hub.ErrNotFound)

	s.mu.RLock()
	stored, ok := s.messages[msg.ID]
	s.mu.RUnlock()
	require.True(t, ok)
	assert.True(t, stored.IsDeleted)
}

func TestMessageStore_GetReturnsLiveMessage(t *testing.T) {
	s, _, _ := newTestMessageStore("alice")
	ctx := context.Background()

	msg, err := s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	got, err := s.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

func TestMessageStore_MembershipRevocationBlocksNewMessages(t *testing.T) {
	s, dir, _ := newTestMessageStore("alice")
	ctx := context.Background()

	_, err := s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	dir.RemoveMember("g1", "alice")
	_, err = s.Create(ctx, hub.NewMessage{ChatID: "g1", SenderID: "alice", Content: "hi again"})
	assert.ErrorIs(t, err, hub.ErrForbidden)
}
