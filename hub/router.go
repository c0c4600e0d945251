package hub

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/courier-chat/courier/internal/slogging"
)

// RPC message types clients may send while a session is active.
const (
	RPCSendMessage   = "send_message"
	RPCUpdateMessage = "update_message"
	RPCDeleteMessage = "delete_message"
	RPCJoinChat      = "join_chat"
	RPCLeaveChat     = "leave_chat"
	RPCTyping        = "typing"
)

// MessageHandler handles one RPC message type.
type MessageHandler interface {
	HandleMessage(ctx context.Context, session *Session, message []byte) error
	MessageType() string
}

// MessageRouter dispatches inbound frames to the handler registered for
// their message type. A handler error is reported to the calling connection
// only; it never tears down the session.
type MessageRouter struct {
	handlers map[string]MessageHandler
}

// NewMessageRouter creates a router with the default RPC handlers registered.
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{
		handlers: make(map[string]MessageHandler),
	}

	router.RegisterHandler(&sendMessageHandler{})
	router.RegisterHandler(&updateMessageHandler{})
	router.RegisterHandler(&deleteMessageHandler{})
	router.RegisterHandler(&joinChatHandler{})
	router.RegisterHandler(&leaveChatHandler{})
	router.RegisterHandler(&typingHandler{})

	return router
}

// RegisterHandler registers a message handler for a specific message type.
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.MessageType()] = handler
}

// RouteMessage routes an inbound frame to the appropriate handler and sends
// any resulting error back to the calling connection.
func (r *MessageRouter) RouteMessage(ctx context.Context, session *Session, message []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("PANIC routing message for connection %s: %v, stack: %s",
				session.conn.ID(), rec, debug.Stack())
		}
	}()

	var base struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		slogging.Get().Warn("Unparseable frame from connection %s: %v", session.conn.ID(), err)
		session.sendError("invalid_message", "message is not valid JSON")
		return
	}

	handler, exists := r.handlers[base.MessageType]
	if !exists {
		slogging.Get().Warn("Unsupported message type %q from connection %s", base.MessageType, session.conn.ID())
		session.sendError("unsupported_message_type", "message type "+base.MessageType+" is not supported")
		return
	}

	if err := handler.HandleMessage(ctx, session, message); err != nil {
		slogging.Get().Debug("RPC %s failed for connection %s: %v", base.MessageType, session.conn.ID(), err)
		session.sendError(errorCode(err), err.Error())
	}
}

// sendError reports an RPC failure to this session's connection only.
func (s *Session) sendError(code, message string) {
	data, err := marshalEnvelope(EventError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := s.conn.Send(data); err != nil {
		s.hub.logger.Debug("Failed to deliver error to connection %s: %v", s.conn.ID(), err)
	}
}

type sendMessageHandler struct{}

func (h *sendMessageHandler) MessageType() string { return RPCSendMessage }

func (h *sendMessageHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	_, err := session.SendMessage(ctx, req.ChatID, req.Content)
	return err
}

type updateMessageHandler struct{}

func (h *updateMessageHandler) MessageType() string { return RPCUpdateMessage }

func (h *updateMessageHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		MessageID string `json:"message_id"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	_, err := session.UpdateMessage(ctx, req.MessageID, req.Content)
	return err
}

type deleteMessageHandler struct{}

func (h *deleteMessageHandler) MessageType() string { return RPCDeleteMessage }

func (h *deleteMessageHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	return session.DeleteMessage(ctx, req.MessageID)
}

type joinChatHandler struct{}

func (h *joinChatHandler) MessageType() string { return RPCJoinChat }

func (h *joinChatHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	return session.JoinChat(ctx, req.ChatID)
}

type leaveChatHandler struct{}

func (h *leaveChatHandler) MessageType() string { return RPCLeaveChat }

func (h *leaveChatHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	return session.LeaveChat(ctx, req.ChatID)
}

type typingHandler struct{}

func (h *typingHandler) MessageType() string { return RPCTyping }

func (h *typingHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	var req struct {
		ChatID   string `json:"chat_id"`
		IsTyping bool   `json:"is_typing"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return err
	}
	return session.Typing(ctx, req.ChatID, req.IsTyping)
}
