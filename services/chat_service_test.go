package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/sink"
)

// harness wires the full engine against a throwaway database, the way the
// server entrypoint does, minus transport and search.
type harness struct {
	service  *ChatService
	registry *runtime.Registry
	room     domain.Room
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)

	registry := runtime.NewRegistry()
	typing := runtime.NewTypingCoordinator(1500 * time.Millisecond)
	messages := repositories.NewMessageRepository(db, log, nil)
	users := repositories.NewUserDirectory(db)
	rooms := repositories.NewRoomDirectory(db)

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log),
		registry, typing, messages, moderator,
		64, time.Second, 100*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = orchestrator.Start(ctx) }()
	t.Cleanup(orchestrator.Stop)

	service := NewChatService(log, registry, orchestrator, typing,
		users, rooms, messages, nil)

	room, err := service.CreateRoom("general")
	req.NoError(err)

	// Give the supervised pipeline a moment to come up.
	time.Sleep(50 * time.Millisecond)
	return &harness{service: service, registry: registry, room: room}
}

// connect opens one fake client: a registered connection with its sink.
func (h *harness) connect(t *testing.T, username string) (string, *sink.ConnSink) {
	t.Helper()
	connectionID := uuid.NewString()
	connSink := sink.NewConnSink(slog.Default(), 64)
	h.registry.Register(connectionID, connSink)
	_, err := h.service.JoinRoom(connectionID, username, h.room.ID)
	require.NoError(t, err)
	return connectionID, connSink
}

func waitFor[T event.DomainEvent](t *testing.T, events <-chan event.DomainEvent) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if typed, ok := evt.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("No %T received in time", zero)
			return zero
		}
	}
}

func TestChatService_Join_Unknown_Room(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	connectionID := uuid.NewString()
	h.registry.Register(connectionID, sink.NewConnSink(slog.Default(), 8))

	// When joining a room id that was never created
	_, err := h.service.JoinRoom(connectionID, "alice", "no-such-room")

	// Then the join is rejected
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestChatService_Join_Broadcasts_To_Members(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	// Given alice is in the room
	_, aliceSink := h.connect(t, "alice")
	waitFor[event.UserJoined](t, aliceSink.Events)

	// When bob joins
	h.connect(t, "bob")

	// Then alice sees bob's arrival
	joined := waitFor[event.UserJoined](t, aliceSink.Events)
	req.Equal("bob", joined.User.Username)
}

func TestChatService_Message_Roundtrip(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	aliceID, aliceSink := h.connect(t, "alice")
	_, bobSink := h.connect(t, "bob")

	// When alice posts a message
	posted, err := h.service.PostMessage(context.Background(), aliceID, "hello from the badger den")
	req.NoError(err)
	req.True(posted.Delivered)
	// And moderation already ran
	req.Equal("hello from the ****** den", posted.Content)

	// Then both members receive the broadcast after persistence
	for _, events := range []*sink.ConnSink{aliceSink, bobSink} {
		received := waitFor[event.MessagePosted](t, events.Events)
		req.Equal(posted.ID, received.Message.ID)
	}

	// And the history holds the censored content
	history, _, err := h.service.GetMessages(h.room.ID, nil)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(posted.Content, history[0].Content)
}

func TestChatService_Post_Without_Join(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	// When a connection that never joined posts
	_, err := h.service.PostMessage(context.Background(), uuid.NewString(), "hello")

	// Then it is rejected as unidentified
	req.ErrorIs(err, errors.ErrNotIdentified)
}

func TestChatService_MarkSeen_Propagates(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	aliceID, aliceSink := h.connect(t, "alice")
	bobID, _ := h.connect(t, "bob")

	_, err := h.service.PostMessage(context.Background(), aliceID, "read me")
	req.NoError(err)

	// When bob acknowledges the room
	req.NoError(h.service.MarkSeen(context.Background(), bobID))

	// Then alice receives one summary receipt
	seen := waitFor[event.MessagesSeen](t, aliceSink.Events)
	req.Equal(h.room.ID, seen.Room)

	// And the stored message carries bob in its seen-by set
	history, _, err := h.service.GetMessages(h.room.ID, nil)
	req.NoError(err)
	req.Len(history, 1)
	req.Len(history[0].SeenBy, 1)
}

func TestChatService_Disconnect_Last_Connection_Goes_Offline(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	aliceID, _ := h.connect(t, "alice")
	_, bobSink := h.connect(t, "bob")

	// Given alice was typing
	req.NoError(h.service.Typing(aliceID))
	waitFor[event.TypingStarted](t, bobSink.Events)

	// When alice's only connection closes
	h.service.Disconnect(aliceID)

	// Then bob sees her typing indicator clear and her presence drop
	stopped := waitFor[event.TypingStopped](t, bobSink.Events)
	req.Equal("alice", stopped.Username)
	offline := waitFor[event.UserOffline](t, bobSink.Events)
	req.Equal("alice", offline.Username)
}

func TestChatService_Typing_Transitions(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	aliceID, _ := h.connect(t, "alice")
	_, bobSink := h.connect(t, "bob")

	// When alice signals typing repeatedly and then stops
	req.NoError(h.service.Typing(aliceID))
	req.NoError(h.service.Typing(aliceID))
	req.NoError(h.service.StopTyping(aliceID))

	// Then bob sees exactly one start and one stop
	started := waitFor[event.TypingStarted](t, bobSink.Events)
	req.Equal("alice", started.Username)
	stopped := waitFor[event.TypingStopped](t, bobSink.Events)
	req.Equal("alice", stopped.Username)
}
