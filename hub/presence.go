package hub

import "sync"

// PresenceChange describes the effect of a connect or disconnect on a user's
// derived online status.
type PresenceChange int

const (
	// NoChange means the user was already online (or already offline) and
	// stays that way.
	NoChange PresenceChange = iota
	// BecameOnline fires exactly when the user's connection count goes 0 -> 1.
	BecameOnline
	// BecameOffline fires exactly when the user's connection count goes 1 -> 0.
	BecameOffline
)

// String returns the string representation of a presence change.
func (c PresenceChange) String() string {
	switch c {
	case BecameOnline:
		return "became_online"
	case BecameOffline:
		return "became_offline"
	default:
		return "no_change"
	}
}

// PresenceTracker derives per-user online status from live connection counts.
// A user with several simultaneous sessions stays online until the last one
// drops; treating any single disconnect as "went offline" would flap status
// for multi-device users.
type PresenceTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		counts: make(map[string]int),
	}
}

// OnConnect records a new connection for a user and reports whether the user
// just came online.
func (p *PresenceTracker) OnConnect(userID string) PresenceChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[userID]++
	if p.counts[userID] == 1 {
		return BecameOnline
	}
	return NoChange
}

// OnDisconnect records a closed connection for a user and reports whether the
// user just went offline. Calls without a matching OnConnect are ignored so
// disconnect cleanup stays idempotent.
func (p *PresenceTracker) OnDisconnect(userID string) PresenceChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.counts[userID]
	if !ok {
		return NoChange
	}
	if count <= 1 {
		delete(p.counts, userID)
		return BecameOffline
	}
	p.counts[userID] = count - 1
	return NoChange
}

// IsOnline reports whether a user currently holds at least one connection.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.counts[userID] > 0
}
