package runtime

import (
	"sync"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
)

var _ contract.ITypingCoordinator = (*TypingCoordinator)(nil)

// TypingCoordinator tracks which users are composing in each room. Every
// entry carries an expiry deadline; a fresh typing signal refreshes the
// deadline instead of duplicating the entry. Entries past their deadline
// are reaped by the sweeper even when the client never sent a stop signal
// (e.g. it disconnected mid-composition).
//
// Multiple simultaneous typists are a set per room, never a single slot.
type TypingCoordinator struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[domain.RoomID]map[string]time.Time // room -> username -> deadline
	now   func() time.Time
}

func NewTypingCoordinator(ttl time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		ttl:   ttl,
		rooms: make(map[domain.RoomID]map[string]time.Time),
		now:   time.Now,
	}
}

// Start marks the user typing with a renewed deadline. It reports whether
// this is a fresh start (true) or a refresh of an existing entry (false),
// so the caller broadcasts only actual transitions.
func (t *TypingCoordinator) Start(roomID domain.RoomID, username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	typists, ok := t.rooms[roomID]
	if !ok {
		typists = make(map[string]time.Time)
		t.rooms[roomID] = typists
	}
	_, already := typists[username]
	typists[username] = t.now().Add(t.ttl)
	return !already
}

// Stop removes the user explicitly. It reports whether the entry was still
// present, i.e. whether a stop transition must be broadcast. Presence is
// the criterion, not the deadline: an entry that expired but was not yet
// swept still owes its one stop broadcast, and removing it here means the
// sweeper can never emit a second one.
func (t *TypingCoordinator) Stop(roomID domain.RoomID, username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	typists, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := typists[username]; !ok {
		return false
	}
	delete(typists, username)
	if len(typists) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// TypingIn returns the users currently typing in the room, expired entries
// excluded. The read side never observes an indicator past its deadline.
func (t *TypingCoordinator) TypingIn(roomID domain.RoomID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	typists, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	now := t.now()
	var usernames []string
	for username, deadline := range typists {
		if deadline.After(now) {
			usernames = append(usernames, username)
		}
	}
	return usernames
}

// SweepExpired removes every entry whose deadline elapsed and returns the
// stop transitions to broadcast, exactly one per expired entry.
func (t *TypingCoordinator) SweepExpired() []contract.TypingExpiry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []contract.TypingExpiry
	for roomID, typists := range t.rooms {
		for username, deadline := range typists {
			if deadline.After(now) {
				continue
			}
			delete(typists, username)
			expired = append(expired, contract.TypingExpiry{Room: roomID, Username: username})
		}
		if len(typists) == 0 {
			delete(t.rooms, roomID)
		}
	}
	return expired
}
