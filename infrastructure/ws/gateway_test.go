package ws

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

func TestTranslate_Maps_Domain_Events_To_Frames(t *testing.T) {
	req := require.New(t)
	g := &Gateway{log: slog.Default(), validate: validator.New()}

	message := domain.Message{
		ID:         uuid.New(),
		Room:       "general",
		SenderName: "alice",
		Content:    "hello",
		CreatedAt:  time.Now().UTC(),
		Delivered:  true,
	}

	tests := []struct {
		name     string
		input    event.DomainEvent
		expected string
	}{
		{"message", event.MessagePosted{Message: message}, EventNewMessage},
		{"typing start", event.TypingStarted{Room: "general", Username: "alice"}, EventTyping},
		{"typing stop", event.TypingStopped{Room: "general", Username: "alice"}, EventStopTyping},
		{"receipts", event.MessagesSeen{Room: "general", UserID: "u1"}, EventMessagesSeen},
		{"offline", event.UserOffline{Username: "alice"}, EventUserOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := g.translate(tt.input)
			require.True(t, ok)
			require.Equal(t, tt.expected, env.Event)
		})
	}

	// And the message frame round-trips its payload
	env, ok := g.translate(event.MessagePosted{Message: message})
	req.True(ok)
	var payload NewMessagePayload
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal(message.ID.String(), payload.ID)
	req.Equal("alice", payload.Username)
	req.True(payload.Delivered)
}

func TestDecode_Rejects_Invalid_Join_Payload(t *testing.T) {
	req := require.New(t)
	g := &Gateway{log: slog.Default(), validate: validator.New()}
	c := &client{connectionID: uuid.NewString(), outbound: make(chan Envelope, 4)}

	// When the payload misses the required room id
	raw, err := json.Marshal(JoinRoomPayload{Username: "alice"})
	req.NoError(err)
	var target JoinRoomPayload
	ok := g.decode(c, raw, &target)

	// Then decoding fails and an error frame is queued for the client
	req.False(ok)
	select {
	case env := <-c.outbound:
		req.Equal(EventError, env.Event)
	default:
		req.Fail("No error frame queued")
	}
}

func TestDecode_Rejects_Malformed_Json(t *testing.T) {
	req := require.New(t)
	g := &Gateway{log: slog.Default(), validate: validator.New()}
	c := &client{connectionID: uuid.NewString(), outbound: make(chan Envelope, 4)}

	var target JoinRoomPayload
	ok := g.decode(c, []byte("{not json"), &target)

	req.False(ok)
	env := <-c.outbound
	req.Equal(EventError, env.Event)
}
