package domain

import (
	"time"
)

// Command is an inbound intent routed to a room's serialization point.
type Command interface {
	RoomID() RoomID
}

// PostMessageCommand carries a message sending intent. Reply, when non-nil,
// receives the persistence outcome exactly once; it must be buffered so the
// room worker never blocks on a caller that went away.
type PostMessageCommand struct {
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	CreatedAt  time.Time
	Reply      chan<- PostResult
}

// PostResult is the outcome of a PostMessageCommand: the persisted message,
// or the error that prevented persistence.
type PostResult struct {
	Message Message
	Err     error
}

func (c PostMessageCommand) RoomID() RoomID { return c.Room }

// StartTypingCommand marks a user as typing with a renewed expiry deadline.
type StartTypingCommand struct {
	Room     RoomID
	Username string
}

func (c StartTypingCommand) RoomID() RoomID { return c.Room }

// StopTypingCommand removes a user from the room's typing set.
type StopTypingCommand struct {
	Room     RoomID
	Username string
}

func (c StopTypingCommand) RoomID() RoomID { return c.Room }

// MarkSeenCommand acknowledges every message of the room not yet seen by
// the user. Re-marking is a no-op.
type MarkSeenCommand struct {
	Room   RoomID
	UserID string
	Reply  chan<- error
}

func (c MarkSeenCommand) RoomID() RoomID { return c.Room }
