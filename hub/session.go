package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int32

const (
	// StateConnecting is the initial state, before identity resolution. A
	// connection whose credentials do not resolve stays here, degraded: it
	// remains open but every RPC fails with ErrUnauthenticated.
	StateConnecting SessionState = iota
	// StateAuthenticated means identity resolved but connect-phase setup is
	// still running.
	StateAuthenticated
	// StateActive means the connection is registered, joined to its groups
	// and serving RPCs.
	StateActive
	// StateDisconnected is terminal.
	StateDisconnected
)

// String returns the string representation of a session state.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session drives one connection's lifecycle: connect, authenticate, join
// groups, serve RPCs, disconnect. RPCs may arrive concurrently for the same
// connection; the session itself holds no mutable state beyond the lifecycle
// flag, so all shared mutation goes through the hub's synchronized
// components.
type Session struct {
	hub   *Hub
	conn  Conn
	state atomic.Int32

	// userID is set once during the connect phase and immutable afterwards.
	// RPCs still re-resolve the caller from the registry rather than trusting
	// this field or anything client-supplied.
	userID string

	// registered and presenceRecorded track how far connect-phase setup got,
	// so Disconnect only undoes what this session actually did. Without the
	// gates an abandoned handshake would consume another session's registry
	// entry or presence count. Both are written before StartSession returns
	// and only read afterwards, so no lock is needed.
	registered       bool
	presenceRecorded bool

	closeOnce sync.Once
}

// StartSession runs the connect phase for a new transport connection and
// returns the session driving it. An unresolved identity yields a degraded
// but open session, never an error: the listener must not crash or reject on
// bad credentials. The returned error is non-nil only when the handshake
// exceeded its timeout, in which case all partial state has been unwound and
// the caller should close the connection.
func (h *Hub) StartSession(ctx context.Context, conn Conn, r *http.Request) (*Session, error) {
	s := &Session{hub: h, conn: conn}

	userID, err := h.auth.IdentityOf(r)
	if err != nil {
		h.logger.Warn("Connection %s without valid identity, continuing unauthenticated: %v", conn.ID(), err)
		return s, nil
	}
	s.userID = userID
	s.state.Store(int32(StateAuthenticated))

	hctx, cancel := context.WithTimeout(ctx, h.opts.HandshakeTimeout)
	defer cancel()

	if err := s.activate(hctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Abandon the connect: unwind whatever was set up so no partial
			// registry state survives.
			s.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("handshake for connection %s timed out: %w", conn.ID(), err)
		}
		// Non-timeout setup failures leave the connection registered with the
		// groups that succeeded; the client can request the rest via
		// join_chat.
		h.logger.Error("Connect-phase setup incomplete for connection %s (user %s): %v", conn.ID(), userID, err)
	}

	s.state.Store(int32(StateActive))
	return s, nil
}

// activate registers the connection, joins the user's chat groups and records
// presence. Runs under the handshake deadline.
func (s *Session) activate(ctx context.Context) error {
	h := s.hub
	connID := s.conn.ID()

	if err := h.registry.Register(connID, s.userID); err != nil {
		return err
	}
	s.registered = true
	h.router.Attach(s.conn)

	var setupErr error
	chatIDs, err := h.chats.ChatsOf(ctx, s.userID)
	if err != nil {
		setupErr = fmt.Errorf("%w: fetching chats for user %s: %v", ErrUpstream, s.userID, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	for _, chatID := range chatIDs {
		h.groups.Join(connID, chatID)
	}

	change := h.presence.OnConnect(s.userID)
	s.presenceRecorded = true
	if change == BecameOnline {
		if err := h.users.SetOnlineStatus(ctx, s.userID, true); err != nil {
			h.logger.Error("Failed to persist online status for user %s: %v", s.userID, err)
		}
		for _, chatID := range chatIDs {
			h.router.Send(chatID, EventUserOnlineStatusChanged, OnlineStatusPayload{UserID: s.userID, IsOnline: true})
		}
	}

	h.logger.Info("Connection %s active for user %s with %d chat groups", connID, s.userID, len(chatIDs))
	return setupErr
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Conn returns the transport handle this session drives.
func (s *Session) Conn() Conn {
	return s.conn
}

// callerID re-resolves the caller's user id from the connection registry.
// Client-supplied ids are never trusted; an unregistered connection gets
// ErrUnauthenticated.
func (s *Session) callerID() (string, error) {
	userID, ok := s.hub.registry.UserOf(s.conn.ID())
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// SendMessage persists a message through the message store and, on success,
// broadcasts message_received to the chat's group. The store enforces
// chat-membership authorization.
func (s *Session) SendMessage(ctx context.Context, chatID, content string) (Message, error) {
	userID, err := s.callerID()
	if err != nil {
		return Message{}, err
	}

	msg, err := s.hub.messages.Create(ctx, NewMessage{ChatID: chatID, SenderID: userID, Content: content})
	if err != nil {
		return Message{}, err
	}

	s.hub.router.Send(msg.ChatID, EventMessageReceived, msg)
	return msg, nil
}

// UpdateMessage edits a message through the message store and broadcasts
// message_updated. The store rejects callers who are not the sender.
func (s *Session) UpdateMessage(ctx context.Context, messageID, content string) (Message, error) {
	userID, err := s.callerID()
	if err != nil {
		return Message{}, err
	}

	msg, err := s.hub.messages.Update(ctx, messageID, content, userID)
	if err != nil {
		return Message{}, err
	}

	s.hub.router.Send(msg.ChatID, EventMessageUpdated, msg)
	return msg, nil
}

// DeleteMessage soft-deletes a message and broadcasts message_deleted to the
// message's chat group.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	userID, err := s.callerID()
	if err != nil {
		return err
	}

	msg, err := s.hub.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.hub.messages.SoftDelete(ctx, messageID, userID); err != nil {
		return err
	}

	s.hub.router.Send(msg.ChatID, EventMessageDeleted, MessageDeletedPayload{MessageID: messageID, ChatID: msg.ChatID})
	return nil
}

// JoinChat validates chat membership against the chat directory, subscribes
// the connection to the chat's group and broadcasts user_joined_chat.
func (s *Session) JoinChat(ctx context.Context, chatID string) error {
	userID, err := s.callerID()
	if err != nil {
		return err
	}

	if err := s.requireMembership(ctx, chatID, userID); err != nil {
		return err
	}

	s.hub.groups.Join(s.conn.ID(), chatID)
	s.hub.router.Send(chatID, EventUserJoinedChat, ChatMembershipPayload{ChatID: chatID, UserID: userID})
	return nil
}

// LeaveChat unsubscribes the connection from the chat's group and notifies
// the remaining members. Leaving a group the connection never joined is a
// no-op apart from the broadcast suppression.
func (s *Session) LeaveChat(ctx context.Context, chatID string) error {
	userID, err := s.callerID()
	if err != nil {
		return err
	}

	s.hub.groups.Leave(s.conn.ID(), chatID)
	s.hub.router.Send(chatID, EventUserLeftChat, ChatMembershipPayload{ChatID: chatID, UserID: userID})
	return nil
}

// Typing broadcasts a typing indicator to the chat's group. Nothing is
// persisted.
func (s *Session) Typing(ctx context.Context, chatID string, isTyping bool) error {
	userID, err := s.callerID()
	if err != nil {
		return err
	}

	if err := s.requireMembership(ctx, chatID, userID); err != nil {
		return err
	}

	s.hub.router.Send(chatID, EventUserTyping, TypingPayload{ChatID: chatID, UserID: userID, IsTyping: isTyping})
	return nil
}

// requireMembership checks the chat directory before a group mutation or
// broadcast on behalf of the caller.
func (s *Session) requireMembership(ctx context.Context, chatID, userID string) error {
	member, err := s.hub.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("%w: membership check for chat %s: %v", ErrUpstream, chatID, err)
	}
	if !member {
		return fmt.Errorf("%w: user %s is not a member of chat %s", ErrForbidden, userID, chatID)
	}
	return nil
}

// Disconnect tears the session down: leave all groups, detach from the
// broadcast router, unregister, and record the presence change. It runs at
// most once, unconditionally covers abnormal closes, and is safe to call even
// if connect-phase setup never completed: each cleanup step runs only if this
// session performed the matching setup step, so an abandoned handshake cannot
// consume another session's registration or presence count. The group
// snapshot for the offline broadcast is captured before cleanup, since
// afterwards the membership is gone.
func (s *Session) Disconnect(ctx context.Context) {
	s.closeOnce.Do(func() {
		h := s.hub
		connID := s.conn.ID()
		s.state.Store(int32(StateDisconnected))

		if !s.registered {
			return
		}

		snapshot := h.groups.GroupsOf(connID)
		h.groups.LeaveAll(connID)
		h.router.Detach(connID)
		h.registry.Unregister(connID)

		if !s.presenceRecorded {
			return
		}

		if h.presence.OnDisconnect(s.userID) == BecameOffline {
			if err := h.users.SetOnlineStatus(ctx, s.userID, false); err != nil {
				h.logger.Error("Failed to persist offline status for user %s: %v", s.userID, err)
			}
			for _, groupID := range snapshot {
				h.router.Send(groupID, EventUserOnlineStatusChanged, OnlineStatusPayload{UserID: s.userID, IsOnline: false})
			}
		}

		h.logger.Info("Connection %s for user %s disconnected", connID, s.userID)
	})
}
