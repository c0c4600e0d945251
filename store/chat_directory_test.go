package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatDirectory_MembershipLookup(t *testing.T) {
	d := NewChatDirectory()
	ctx := context.Background()

	d.AddChat("g1", "alice", "bob")
	d.AddChat("g2", "alice")

	chats, err := d.ChatsOf(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, chats)

	chats, err = d.ChatsOf(ctx, "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1"}, chats)

	chats, err = d.ChatsOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, chats)

	member, err := d.IsMember(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = d.IsMember(ctx, "g2", "bob")
	require.NoError(t, err)
	assert.False(t, member)

	member, err = d.IsMember(ctx, "no-such-chat", "alice")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestChatDirectory_AddChatMergesMembers(t *testing.T) {
	d := NewChatDirectory()
	ctx := context.Background()

	d.AddChat("g1", "alice")
	d.AddChat("g1", "bob")
	d.AddMember("g1", "carol")

	for _, userID := range []string{"alice", "bob", "carol"} {
		member, err := d.IsMember(ctx, "g1", userID)
		require.NoError(t, err)
		assert.True(t, member, userID)
	}
}

func TestChatDirectory_RemoveMember(t *testing.T) {
	d := NewChatDirectory()
	ctx := context.Background()

	d.AddChat("g1", "alice", "bob")
	d.RemoveMember("g1", "alice")

	member, err := d.IsMember(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.False(t, member)

	chats, err := d.ChatsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, chats)

	// Removing an absent member or from an absent chat is a no-op.
	d.RemoveMember("g1", "alice")
	d.RemoveMember("no-such-chat", "bob")

	member, err = d.IsMember(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.True(t, member)
}
