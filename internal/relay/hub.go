package relay

import "sync"

// Hub tracks every open connection and the user group each identified one
// belongs to.
type Hub struct {
	mu      sync.RWMutex
	members map[*Client]string              // client -> user id, "" while anonymous
	groups  map[string]map[*Client]struct{} // user id -> clients
}

func NewHub() *Hub {
	return &Hub{
		members: make(map[*Client]string),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds an anonymous connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[c] = ""
}

// Join moves c into userID's group, leaving any group it was in before.
func (h *Hub) Join(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveGroupLocked(c)
	h.members[c] = userID
	g, ok := h.groups[userID]
	if !ok {
		g = make(map[*Client]struct{})
		h.groups[userID] = g
	}
	g[c] = struct{}{}
}

// Unregister forgets c entirely. Group membership ends with the connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveGroupLocked(c)
	delete(h.members, c)
}

func (h *Hub) leaveGroupLocked(c *Client) {
	userID := h.members[c]
	if userID == "" {
		return
	}
	if g, ok := h.groups[userID]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(h.groups, userID)
		}
	}
}

// Broadcast queues msg on every connection in the given groups. A connection
// that appears in more than one group (a user messaging themselves) receives
// it once. A connection whose send buffer is full is dropped rather than
// allowed to stall everyone else.
func (h *Hub) Broadcast(msg []byte, userIDs ...string) {
	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, id := range userIDs {
		for c := range h.groups[id] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		c.trySend(msg)
	}
}

// GroupSize reports how many connections userID currently has.
func (h *Hub) GroupSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// CloseAll disconnects every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.members))
	for c := range h.members {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.kick()
	}
}
