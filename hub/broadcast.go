package hub

import (
	"sync"

	"github.com/courier-chat/courier/internal/slogging"
)

// Conn is the transport-level handle the hub needs from a connection: a
// stable identifier and a unicast send primitive. Send must not block
// indefinitely; a transport whose buffer is exhausted should fail the call
// and let the session tear the connection down.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// BroadcastRouter fans typed events out to every connection in a group,
// independent of transport details. Membership is snapshotted under lock and
// the per-connection sends happen outside it, so one slow or dead socket
// cannot stall registry mutations or delivery to other members.
type BroadcastRouter struct {
	mu      sync.RWMutex
	targets map[string]Conn

	registry *ConnectionRegistry
	groups   *GroupMembership
	logger   *slogging.Logger
}

// NewBroadcastRouter creates a router over the given registry and membership
// tables.
func NewBroadcastRouter(registry *ConnectionRegistry, groups *GroupMembership) *BroadcastRouter {
	return &BroadcastRouter{
		targets:  make(map[string]Conn),
		registry: registry,
		groups:   groups,
		logger:   slogging.Get(),
	}
}

// Attach makes a connection addressable by the router. Attaching the same
// connection id twice replaces the previous handle.
func (b *BroadcastRouter) Attach(conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.targets[conn.ID()] = conn
}

// Detach removes a connection handle. Idempotent.
func (b *BroadcastRouter) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.targets, connID)
}

// Send delivers an event to every connection currently in the group. An
// individual connection's send failure is logged and isolated; it never
// blocks delivery to the remaining members and never propagates to the
// caller.
func (b *BroadcastRouter) Send(groupID, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		b.logger.Error("Failed to marshal %s event for group %s: %v", event, groupID, err)
		return
	}

	for _, connID := range b.groups.MembersOf(groupID) {
		b.deliver(connID, event, data)
	}
}

// SendToUser delivers an event to all of a user's connections, whatever
// groups they are in. Used for multi-device delivery of user-scoped events.
func (b *BroadcastRouter) SendToUser(userID, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		b.logger.Error("Failed to marshal %s event for user %s: %v", event, userID, err)
		return
	}

	for _, connID := range b.registry.ConnectionsOf(userID) {
		b.deliver(connID, event, data)
	}
}

// deliver sends pre-marshaled bytes to one connection, swallowing failures.
func (b *BroadcastRouter) deliver(connID, event string, data []byte) {
	b.mu.RLock()
	conn, ok := b.targets[connID]
	b.mu.RUnlock()
	if !ok {
		// The connection left between the membership snapshot and delivery.
		return
	}

	if err := conn.Send(data); err != nil {
		b.logger.Warn("Dropping %s event for connection %s: %v", event, connID, err)
	}
}
