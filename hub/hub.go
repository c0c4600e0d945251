package hub

import (
	"time"

	"github.com/courier-chat/courier/internal/slogging"
)

// Options holds hub tuning knobs. Zero values fall back to defaults.
type Options struct {
	// HandshakeTimeout bounds the connect-phase setup (identity resolution,
	// chat list fetch, group joins). A handshake that exceeds it is abandoned
	// with no registry residue.
	HandshakeTimeout time.Duration

	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize int

	// ReadLimit caps the size of a single inbound frame in bytes.
	ReadLimit int64

	// PingInterval is how often the write pump pings the peer.
	PingInterval time.Duration

	// PongWait is how long to wait for any read (including pongs) before the
	// connection is considered dead. Must exceed PingInterval.
	PongWait time.Duration

	// WriteWait bounds a single write to the peer.
	WriteWait time.Duration
}

func (o *Options) withDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = 2 * o.PingInterval
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
}

// Hub owns the process-wide connection, group and presence state and the
// collaborators the sessions call out to. One Hub serves all connections;
// sessions mutate its registries concurrently under the components' own
// locks.
type Hub struct {
	registry *ConnectionRegistry
	groups   *GroupMembership
	presence *PresenceTracker
	router   *BroadcastRouter
	rpc      *MessageRouter

	auth     AuthResolver
	chats    ChatDirectory
	messages MessageStore
	users    UserStore

	opts   Options
	logger *slogging.Logger
}

// New creates a hub wired to its external collaborators.
func New(auth AuthResolver, chats ChatDirectory, messages MessageStore, users UserStore, opts Options) *Hub {
	opts.withDefaults()

	registry := NewConnectionRegistry()
	groups := NewGroupMembership()

	h := &Hub{
		registry: registry,
		groups:   groups,
		presence: NewPresenceTracker(),
		router:   NewBroadcastRouter(registry, groups),
		auth:     auth,
		chats:    chats,
		messages: messages,
		users:    users,
		opts:     opts,
		logger:   slogging.Get(),
	}
	h.rpc = NewMessageRouter()
	return h
}

// Registry exposes the connection registry, mainly for stats and tests.
func (h *Hub) Registry() *ConnectionRegistry { return h.registry }

// Groups exposes the group membership table.
func (h *Hub) Groups() *GroupMembership { return h.groups }

// Presence exposes the presence tracker.
func (h *Hub) Presence() *PresenceTracker { return h.presence }

// Broadcaster exposes the broadcast router so other subsystems (e.g. a REST
// layer persisting a message out of band) can fan out events.
func (h *Hub) Broadcaster() *BroadcastRouter { return h.router }

// ConnectedUsers returns the ids of users with at least one live connection.
func (h *Hub) ConnectedUsers() []string {
	return h.registry.ConnectedUsers()
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	return h.registry.ConnectionCount()
}
