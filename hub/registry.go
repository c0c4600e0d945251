package hub

import (
	"sync"

	"github.com/courier-chat/courier/internal/slogging"
)

// ConnectionRegistry maps live transport connection ids to authenticated user
// identities. One user may hold several connections at once (multiple devices
// or tabs). All methods are safe for concurrent use from independent
// connection lifecycles.
type ConnectionRegistry struct {
	mu sync.RWMutex

	// connection id -> user id
	users map[string]string

	// user id -> set of connection ids
	conns map[string]map[string]struct{}
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		users: make(map[string]string),
		conns: make(map[string]map[string]struct{}),
	}
}

// Register associates a connection id with a user id. A second registration
// with the same connection id fails with ErrDuplicateConnection; the existing
// entry is left untouched.
func (r *ConnectionRegistry) Register(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[connID]; ok {
		slogging.Get().Error("Connection registry invariant violation: connection %s already registered to user %s", connID, existing)
		return ErrDuplicateConnection
	}

	r.users[connID] = userID
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]struct{})
	}
	r.conns[userID][connID] = struct{}{}
	return nil
}

// Unregister removes a connection. It is idempotent: unregistering an absent
// id is a no-op, so disconnect cleanup can run unconditionally.
func (r *ConnectionRegistry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[connID]
	if !ok {
		return
	}
	delete(r.users, connID)

	if set, ok := r.conns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
}

// UserOf resolves the user id behind a connection. The second return value is
// false when the connection is unknown (never registered, or already gone).
func (r *ConnectionRegistry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.users[connID]
	return userID, ok
}

// ConnectionsOf returns the ids of every live connection held by a user.
func (r *ConnectionRegistry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// ConnectedUsers returns the ids of users with at least one live connection.
func (r *ConnectionRegistry) ConnectedUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	return users
}

// ConnectionCount returns the total number of registered connections.
func (r *ConnectionRegistry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}
