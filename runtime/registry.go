package runtime

import (
	"sync"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
)

type Set map[string]struct{}

// connection is the runtime state of one live channel: its sink, the user
// it was identified as, and the single room it may currently be in.
type connection struct {
	sink       contract.EventSink
	user       domain.User
	identified bool
	room       domain.RoomID
	inRoom     bool
}

// Released describes what a Release tore down, so the caller can decide
// whether to flip the user offline and announce it.
type Released struct {
	User           domain.User
	Identified     bool
	Room           domain.RoomID
	InRoom         bool
	LastConnection bool
}

// Registry owns every live connection and the room membership relation.
// It is an explicit object injected into the router, never ambient state,
// so each test can run against an isolated instance.
//
// Invariant: a connection appears in at most one room's member set. Join
// moves the connection out of its previous room before adding it to the
// new one, so the invariant holds by construction.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*connection
	userConns   map[string]Set        // user id -> connection ids
	roomMembers map[domain.RoomID]Set // room id -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*connection),
		userConns:   make(map[string]Set),
		roomMembers: make(map[domain.RoomID]Set),
	}
}

// Register records a freshly opened channel. The connection is idle and
// unassociated until Identify.
func (r *Registry) Register(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[connectionID] = &connection{sink: sink}
}

// Identify associates the connection with a resolved user. Re-identifying
// under a different user moves the connection out of the previous user's
// set first, so the old user's last-connection accounting stays exact.
func (r *Registry) Identify(connectionID string, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return errors.ErrUnknownConnection
	}
	if conn.identified && conn.user.ID != user.ID {
		r.removeUserConn(conn.user.ID, connectionID)
	}
	conn.user = user
	conn.identified = true

	if _, ok := r.userConns[user.ID]; !ok {
		r.userConns[user.ID] = make(Set)
	}
	r.userConns[user.ID][connectionID] = struct{}{}
	return nil
}

// Join moves the connection into roomID, leaving any prior room first.
func (r *Registry) Join(connectionID string, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return errors.ErrUnknownConnection
	}

	if conn.inRoom {
		r.removeMember(conn.room, connectionID)
	}

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}
	conn.room = roomID
	conn.inRoom = true
	return nil
}

// Leave removes the connection from whatever room it is in. Idempotent.
func (r *Registry) Leave(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok || !conn.inRoom {
		return
	}
	r.removeMember(conn.room, connectionID)
	conn.inRoom = false
	conn.room = ""
}

// Release tears down a closed channel: membership entry, user association,
// and the connection itself. Releasing an unknown connection is a no-op.
func (r *Registry) Release(connectionID string) (Released, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return Released{}, false
	}

	released := Released{
		User:       conn.user,
		Identified: conn.identified,
		Room:       conn.room,
		InRoom:     conn.inRoom,
	}

	if conn.inRoom {
		r.removeMember(conn.room, connectionID)
	}

	if conn.identified {
		released.LastConnection = r.removeUserConn(conn.user.ID, connectionID)
	}

	delete(r.connections, connectionID)
	return released, true
}

// SinksForRoom resolves the member sinks of a room at call time, so a
// broadcast always reaches the membership as it stands, never a stale
// snapshot taken before a suspension point.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for connectionID := range members {
		if conn, exists := r.connections[connectionID]; exists {
			sinks = append(sinks, conn.sink)
		}
	}
	return sinks
}

// AllSinks returns a sink per live connection, for global broadcasts.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.connections))
	for _, conn := range r.connections {
		sinks = append(sinks, conn.sink)
	}
	return sinks
}

// MembersOf returns the usernames currently in the room, deduplicated
// when a user holds several connections there.
func (r *Registry) MembersOf(roomID domain.RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	seen := make(Set, len(members))
	usernames := make([]string, 0, len(members))
	for connectionID := range members {
		conn, exists := r.connections[connectionID]
		if !exists || !conn.identified {
			continue
		}
		if _, dup := seen[conn.user.Username]; dup {
			continue
		}
		seen[conn.user.Username] = struct{}{}
		usernames = append(usernames, conn.user.Username)
	}
	return usernames
}

// RoomOf reports the room a connection is in, if any.
func (r *Registry) RoomOf(connectionID string) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionID]
	if !ok || !conn.inRoom {
		return "", false
	}
	return conn.room, true
}

// UserOf reports the identified user of a connection.
func (r *Registry) UserOf(connectionID string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionID]
	if !ok || !conn.identified {
		return domain.User{}, false
	}
	return conn.user, true
}

// removeUserConn must be called with the write lock held. It reports
// whether the user's connection set became empty and was dropped, i.e.
// whether this was the user's last connection.
func (r *Registry) removeUserConn(userID, connectionID string) bool {
	conns, ok := r.userConns[userID]
	if !ok {
		return false
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(r.userConns, userID)
		return true
	}
	return false
}

// removeMember must be called with the write lock held. Empty member sets
// are removed entirely to prevent slow growth of the room map.
func (r *Registry) removeMember(roomID domain.RoomID, connectionID string) {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
}
