package ws

import (
	"encoding/json"
	"time"

	"chat-hub/domain"
	"chat-hub/repositories"
)

// Envelope is the frame exchanged over the socket in both directions:
// an event name plus an event-specific payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventMessageSeen = "messageSeen"
)

// Outbound event names.
const (
	EventUserJoined   = "userJoined"
	EventNewMessage   = "newMessage"
	EventMessagesSeen = "messagesSeen"
	EventUserOffline  = "userOffline"
	EventError        = "error"
)

type JoinRoomPayload struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	RoomID   string `json:"roomId"   validate:"required"`
}

type SendMessagePayload struct {
	Content string `json:"content" validate:"required"`
}

type UserJoinedPayload struct {
	Username string   `json:"username"`
	RoomID   string   `json:"roomId"`
	Members  []string `json:"members"`
	At       string   `json:"at"`
}

type NewMessagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Delivered bool      `json:"delivered"`
}

type TypingPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
}

type MessagesSeenPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type UserOfflinePayload struct {
	Username string `json:"username"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type RoomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MessagePageResponse struct {
	Messages []MessageResponse `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Delivered bool      `json:"delivered"`
	SeenBy    []string  `json:"seenBy,omitempty"`
}

type SearchHitResponse struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

func toMessageResponse(m repositories.DiskMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		RoomID:    m.Room,
		Username:  m.Username,
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.At,
		Delivered: m.Delivered,
		SeenBy:    m.SeenBy,
	}
}

func toNewMessagePayload(m domain.Message) NewMessagePayload {
	return NewMessagePayload{
		ID:        m.ID.String(),
		RoomID:    string(m.Room),
		Username:  m.SenderName,
		Content:   m.Content,
		Lang:      m.Lang,
		CreatedAt: m.CreatedAt,
		Delivered: m.Delivered,
	}
}
