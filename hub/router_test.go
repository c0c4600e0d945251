package hub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lastError decodes the most recent error envelope on the connection.
func lastError(t *testing.T, conn *fakeConn) ErrorPayload {
	t.Helper()
	envs := conn.events(t)
	require.NotEmpty(t, envs)
	last := envs[len(envs)-1]
	require.Equal(t, EventError, last.Event)

	raw, err := json.Marshal(last.Data)
	require.NoError(t, err)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestMessageRouter_DispatchesSendMessage(t *testing.T) {
	env := newTestEnv(Options{})
	env.dir.addChat("g1", "alice", "bob")

	bobConn, _ := env.connect(t, "bob-1", "bob")
	aliceConn, aliceSession := env.connect(t, "alice-1", "alice")

	frame := []byte(`{"message_type":"send_message","chat_id":"g1","content":"hello"}`)
	env.hub.rpc.RouteMessage(context.Background(), aliceSession, frame)

	assert.Equal(t, 1, env.msgs.createCalls)
	assert.Equal(t, 1, countEvents(t, bobConn, EventMessageReceived))
	assert.Equal(t, 0, countEvents(t, aliceConn, EventError))
}

func TestMessageRouter_UnsupportedTypeReportsToCallerOnly(t *testing.T) {
	env := newTestEnv(Options{})
	env.dir.addChat("g1", "alice", "bob")

	bobConn, _ := env.connect(t, "bob-1", "bob")
	aliceConn, aliceSession := env.connect(t, "alice-1", "alice")
	bobBefore := len(bobConn.events(t))

	env.hub.rpc.RouteMessage(context.Background(), aliceSession, []byte(`{"message_type":"reticulate"}`))

	payload := lastError(t, aliceConn)
	assert.Equal(t, "unsupported_message_type", payload.Code)
	assert.Len(t, bobConn.events(t), bobBefore, "other connections see nothing")
}

func TestMessageRouter_MalformedFrame(t *testing.T) {
	env := newTestEnv(Options{})
	env.dir.addChat("g1", "alice")

	aliceConn, aliceSession := env.connect(t, "alice-1", "alice")

	env.hub.rpc.RouteMessage(context.Background(), aliceSession, []byte(`{not json`))

	payload := lastError(t, aliceConn)
	assert.Equal(t, "invalid_message", payload.Code)
}

func TestMessageRouter_HandlerErrorsMapToWireCodes(t *testing.T) {
	env := newTestEnv(Options{})
	env.dir.addChat("g1", "alice")
	env.dir.addChat("private", "bob")

	tests := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{
			name:     "join without membership",
			frame:    `{"message_type":"join_chat","chat_id":"private"}`,
			wantCode: "forbidden",
		},
		{
			name:     "typing without membership",
			frame:    `{"message_type":"typing","chat_id":"private","is_typing":true}`,
			wantCode: "forbidden",
		},
		{
			name:     "delete unknown message",
			frame:    `{"message_type":"delete_message","message_id":"missing"}`,
			wantCode: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, session := env.connect(t, "alice-"+tt.wantCode+tt.name, "alice")
			env.hub.rpc.RouteMessage(context.Background(), session, []byte(tt.frame))
			assert.Equal(t, tt.wantCode, lastError(t, conn).Code)
		})
	}
}

func TestMessageRouter_UnauthenticatedRPC(t *testing.T) {
	env := newTestEnv(Options{})

	conn, session := env.connect(t, "anon-1", "")
	env.hub.rpc.RouteMessage(context.Background(), session,
		[]byte(`{"message_type":"send_message","chat_id":"g1","content":"hi"}`))

	assert.Equal(t, "unauthenticated", lastError(t, conn).Code)
	assert.Equal(t, 0, env.msgs.createCalls)
}

func TestMessageRouter_RegisterHandlerOverrides(t *testing.T) {
	router := NewMessageRouter()

	called := false
	router.RegisterHandler(&stubHandler{messageType: RPCTyping, fn: func() { called = true }})

	env := newTestEnv(Options{})
	env.dir.addChat("g1", "alice")
	_, session := env.connect(t, "alice-1", "alice")

	router.RouteMessage(context.Background(), session, []byte(`{"message_type":"typing"}`))
	assert.True(t, called)
}

type stubHandler struct {
	messageType string
	fn          func()
}

func (h *stubHandler) MessageType() string { return h.messageType }

func (h *stubHandler) HandleMessage(ctx context.Context, session *Session, message []byte) error {
	h.fn()
	return nil
}
