// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once persisted, except for the seen-by set
// which only ever grows.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-hub/errors"
)

// Message represents a chat message inside a room.
//
// Delivered is stamped true when the message is persisted: delivery is
// synchronous with persistence, there is no intermediate "sent but
// undelivered" state on the server side.
type Message struct {
	ID         uuid.UUID
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	Lang       string
	CreatedAt  time.Time
	Delivered  bool
	SeenBy     []string
}

// SeenByUser reports whether userID already acknowledged this message.
func (m Message) SeenByUser(userID string) bool {
	return slices.Contains(m.SeenBy, userID)
}

// MarkSeen appends userID to the seen-by set. The set is append-only and
// deduplicated, so marking twice is a no-op. It reports whether the set
// actually changed.
func (m *Message) MarkSeen(userID string) bool {
	if m.SeenByUser(userID) {
		return false
	}
	m.SeenBy = append(m.SeenBy, userID)
	return true
}

// ValidateContent rejects empty and whitespace-only message bodies.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	return nil
}
