// Package event defines the domain events broadcast to room members.
package event

import (
	"time"

	"chat-hub/domain"
)

// DomainEvent is anything the fanout can broadcast. RoomID scopes the
// broadcast; domain.GlobalRoom addresses every connected client.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// UserJoined is emitted to the whole room when a user joins, including the
// joiner itself so its UI can reconcile its own presence.
type UserJoined struct {
	Room domain.RoomID
	User domain.User
	At   time.Time
}

func (e UserJoined) RoomID() domain.RoomID { return e.Room }

// MessagePosted carries a persisted, delivered message.
type MessagePosted struct {
	Message domain.Message
}

func (e MessagePosted) RoomID() domain.RoomID { return e.Message.Room }

// TypingStarted signals that a user began (or refreshed) composition.
type TypingStarted struct {
	Room     domain.RoomID
	Username string
}

func (e TypingStarted) RoomID() domain.RoomID { return e.Room }

// TypingStopped signals the end of composition, whether explicit or
// deadline-driven.
type TypingStopped struct {
	Room     domain.RoomID
	Username string
}

func (e TypingStopped) RoomID() domain.RoomID { return e.Room }

// MessagesSeen summarizes one batch acknowledgement: every message of the
// room is now seen by UserID. One event per markSeen call, not per message.
type MessagesSeen struct {
	Room   domain.RoomID
	UserID string
}

func (e MessagesSeen) RoomID() domain.RoomID { return e.Room }

// UserOffline is global: the last connection of a user closed.
type UserOffline struct {
	Username string
}

func (e UserOffline) RoomID() domain.RoomID { return domain.GlobalRoom }
