package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errSendBufferFull = errors.New("send buffer full")
var errConnectionClosing = errors.New("connection closing")

// Upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient adapts a gorilla websocket connection to the hub's Conn interface.
// Outbound frames go through a buffered channel drained by the write pump so
// a broadcast never blocks on a slow peer.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// closing guards against send-on-closed-channel: Send holds the read
	// lock while the close path takes the write lock before closing.
	closing   bool
	closingMu sync.RWMutex
}

// ID returns the stable connection identifier.
func (c *wsClient) ID() string {
	return c.id
}

// Send queues a frame for delivery. It fails instead of blocking when the
// buffer is full, and closes the underlying socket so the read pump reaps the
// connection: a peer that stopped draining its queue is dead for our
// purposes.
func (c *wsClient) Send(data []byte) error {
	c.closingMu.RLock()
	defer c.closingMu.RUnlock()

	if c.closing {
		return errConnectionClosing
	}

	select {
	case c.send <- data:
		return nil
	default:
		go func() { _ = c.conn.Close() }()
		return errSendBufferFull
	}
}

// closeSendChannel closes the outbound queue exactly once.
func (c *wsClient) closeSendChannel() {
	c.closingMu.Lock()
	defer c.closingMu.Unlock()

	if !c.closing {
		c.closing = true
		close(c.send)
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and runs its
// session until disconnect.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, h.opts.SendBufferSize),
		hub:  h,
	}

	// The request context dies with this handler; the session outlives it.
	session, err := h.StartSession(context.Background(), client, c.Request)
	if err != nil {
		h.logger.Warn("Abandoning connection %s: %v", client.id, err)
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(session)
}

// readPump pumps frames from the socket into the RPC router. It owns
// disconnect: whenever the read loop ends, normally or not, the session is
// torn down.
func (c *wsClient) readPump(session *Session) {
	defer func() {
		session.Disconnect(context.Background())
		c.closeSendChannel()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Read error on connection %s: %v", c.id, err)
			}
			return
		}

		c.hub.rpc.RouteMessage(context.Background(), session, message)
	}
}

// writePump drains the send queue to the socket and keeps the connection
// alive with periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
