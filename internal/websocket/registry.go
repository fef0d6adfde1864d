package websocket

import (
	"sync"

	"classchat/pkg/logger"
)

// Registry tracks every admitted connection and the rooms it is subscribed
// to. It is the only shared mutable state of the realtime layer; readers get
// snapshots so fan-out never iterates a map another goroutine is mutating.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	// room -> connection id -> client
	rooms map[string]map[string]*Client
	// user id -> connection id -> client
	users map[string]map[string]*Client
	// connection id -> rooms it is subscribed to
	memberships map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		users:       make(map[string]map[string]*Client),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Admit registers c and subscribes it to its owner's implicit rooms.
func (r *Registry) Admit(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ID()]; exists {
		return ErrDuplicateConnection
	}

	r.clients[c.ID()] = c
	r.memberships[c.ID()] = make(map[string]struct{})

	userID := c.User().ID
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]*Client)
	}
	r.users[userID][c.ID()] = c

	for _, room := range c.User().ImplicitRooms() {
		r.join(c, room)
	}
	return nil
}

// Join subscribes a connection to room. Joining a room twice is a no-op.
func (r *Registry) Join(connID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	r.join(c, room)
	return nil
}

func (r *Registry) join(c *Client, room string) {
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[c.ID()] = c
	r.memberships[c.ID()][room] = struct{}{}
}

// Leave unsubscribes a connection from room. Leaving a room the connection is
// not in is a no-op; implicit rooms stay subscribed until eviction.
func (r *Registry) Leave(connID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	for _, implicit := range c.User().ImplicitRooms() {
		if implicit == room {
			return ErrImplicitRoom
		}
	}
	r.leave(connID, room)
	return nil
}

func (r *Registry) leave(connID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.memberships[connID], room)
}

// Evict removes a connection from every room and from the registry. It
// reports whether the connection was admitted; unknown ids are ignored.
func (r *Registry) Evict(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return false
	}

	for room := range r.memberships[connID] {
		r.leave(connID, room)
	}
	delete(r.memberships, connID)
	delete(r.clients, connID)

	userID := c.User().ID
	if conns, ok := r.users[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}

	logger.Debug("Evicted connection %s of user %s", connID, userID)
	return true
}

func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[connID]
	return c, ok
}

// ConnectionsForUser returns every live connection owned by userID.
func (r *Registry) ConnectionsForUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return snapshot(r.users[userID])
}

// ConnectionsInRoom returns every connection subscribed to room.
func (r *Registry) ConnectionsInRoom(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return snapshot(r.rooms[room])
}

// Connections returns every admitted connection.
func (r *Registry) Connections() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return snapshot(r.clients)
}

// Rooms lists the rooms a connection is subscribed to.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.memberships[connID]))
	for room := range r.memberships[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

func snapshot(m map[string]*Client) []*Client {
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}
