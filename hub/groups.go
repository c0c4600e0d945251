package hub

import "sync"

// GroupMembership tracks which connections subscribe to which chat-scoped
// broadcast groups. A reverse index keeps LeaveAll proportional to the number
// of groups the connection actually joined, not to the total group count.
type GroupMembership struct {
	mu sync.RWMutex

	// group id -> set of connection ids
	members map[string]map[string]struct{}

	// connection id -> set of group ids
	groups map[string]map[string]struct{}
}

// NewGroupMembership creates an empty membership table.
func NewGroupMembership() *GroupMembership {
	return &GroupMembership{
		members: make(map[string]map[string]struct{}),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a group. Joining a group twice is a no-op.
func (g *GroupMembership) Join(connID, groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.members[groupID] == nil {
		g.members[groupID] = make(map[string]struct{})
	}
	g.members[groupID][connID] = struct{}{}

	if g.groups[connID] == nil {
		g.groups[connID] = make(map[string]struct{})
	}
	g.groups[connID][groupID] = struct{}{}
}

// Leave removes a connection from a group, no-op if absent.
func (g *GroupMembership) Leave(connID, groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(connID, groupID)
}

// LeaveAll removes a connection from every group it joined. Afterwards the
// connection appears in zero groups, so no broadcast can reach a disconnected
// socket through a stale entry.
func (g *GroupMembership) LeaveAll(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for groupID := range g.groups[connID] {
		g.removeLocked(connID, groupID)
	}
}

// removeLocked deletes one membership edge. Caller holds the write lock.
func (g *GroupMembership) removeLocked(connID, groupID string) {
	if set, ok := g.members[groupID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(g.members, groupID)
		}
	}
	if set, ok := g.groups[connID]; ok {
		delete(set, groupID)
		if len(set) == 0 {
			delete(g.groups, connID)
		}
	}
}

// MembersOf returns a snapshot of the connection ids currently in a group.
func (g *GroupMembership) MembersOf(groupID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.members[groupID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// GroupsOf returns a snapshot of the group ids a connection has joined.
func (g *GroupMembership) GroupsOf(connID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := g.groups[connID]
	out := make([]string, 0, len(set))
	for groupID := range set {
		out = append(out, groupID)
	}
	return out
}
