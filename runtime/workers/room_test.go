package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/mocks"
	"chat-hub/moderation"
)

// fakeTyping is a deadline-free coordinator: transitions depend on set
// membership only, which is all the worker cares about.
type fakeTyping struct {
	typists map[string]struct{}
}

func newFakeTyping() *fakeTyping {
	return &fakeTyping{typists: make(map[string]struct{})}
}

func (f *fakeTyping) Start(_ domain.RoomID, username string) bool {
	_, already := f.typists[username]
	f.typists[username] = struct{}{}
	return !already
}

func (f *fakeTyping) Stop(_ domain.RoomID, username string) bool {
	_, ok := f.typists[username]
	delete(f.typists, username)
	return ok
}

func (f *fakeTyping) TypingIn(_ domain.RoomID) []string {
	var usernames []string
	for username := range f.typists {
		usernames = append(usernames, username)
	}
	return usernames
}

func (f *fakeTyping) SweepExpired() []contract.TypingExpiry { return nil }

func newTestModerator(t *testing.T) moderation.Moderator {
	t.Helper()
	mod, err := moderation.NewModerator([]string{"badger", "snake"}, '*')
	require.NoError(t, err)
	return mod
}

func startRoomWorker(t *testing.T, repository *mocks.MockIMessageRepository) (chan domain.Command, chan event.DomainEvent) {
	t.Helper()
	commands := make(chan domain.Command, 16)
	events := make(chan event.DomainEvent, 16)
	worker := NewRoomWorker("general", commands, events,
		repository, newTestModerator(t), newFakeTyping(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = worker.Run(ctx) }()
	return commands, events
}

func waitEvent(t *testing.T, events <-chan event.DomainEvent) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-events:
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("No event broadcast in time")
		return nil
	}
}

func TestRoomWorker_PostMessage_Persists_Then_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	repository.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)
	commands, events := startRoomWorker(t, repository)

	reply := make(chan domain.PostResult, 1)
	// When a message is posted
	commands <- domain.PostMessageCommand{
		Room:       "general",
		SenderID:   "u1",
		SenderName: "alice",
		Content:    "hello there",
		CreatedAt:  time.Now().UTC(),
		Reply:      reply,
	}

	// Then the caller gets the persisted message back
	result := <-reply
	req.NoError(result.Err)
	req.Equal("hello there", result.Message.Content)
	req.True(result.Message.Delivered)
	req.NotEqual("", result.Message.ID.String())

	// And the broadcast carries the same message
	evt := waitEvent(t, events)
	posted, ok := evt.(event.MessagePosted)
	req.True(ok)
	req.Equal(result.Message.ID, posted.Message.ID)
}

func TestRoomWorker_PostMessage_Empty_Content_Rejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	// Given the store is never reached
	repository.EXPECT().StoreMessage(gomock.Any()).Times(0)
	commands, events := startRoomWorker(t, repository)

	reply := make(chan domain.PostResult, 1)
	// When a whitespace-only message is posted
	commands <- domain.PostMessageCommand{
		Room: "general", SenderID: "u1", SenderName: "alice",
		Content: "   \t  ", CreatedAt: time.Now(), Reply: reply,
	}

	// Then the sender gets the validation error
	result := <-reply
	req.ErrorIs(result.Err, errors.ErrEmptyContent)

	// And nothing is broadcast
	select {
	case evt := <-events:
		req.Fail(fmt.Sprintf("Unexpected broadcast: %T", evt))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoomWorker_PostMessage_Persistence_Failure_Not_Broadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	storeErr := fmt.Errorf("disk full")
	repository.EXPECT().StoreMessage(gomock.Any()).Return(storeErr).Times(1)
	commands, events := startRoomWorker(t, repository)

	reply := make(chan domain.PostResult, 1)
	// When the store rejects the message
	commands <- domain.PostMessageCommand{
		Room: "general", SenderID: "u1", SenderName: "alice",
		Content: "hello", CreatedAt: time.Now(), Reply: reply,
	}

	// Then the error is reported to the sender
	result := <-reply
	req.ErrorIs(result.Err, storeErr)

	// And no member ever sees the message
	select {
	case evt := <-events:
		req.Fail(fmt.Sprintf("Unexpected broadcast: %T", evt))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoomWorker_PostMessage_Censors_Content(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	repository.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)
	commands, _ := startRoomWorker(t, repository)

	reply := make(chan domain.PostResult, 1)
	// When the content contains a blacklisted word
	commands <- domain.PostMessageCommand{
		Room: "general", SenderID: "u1", SenderName: "alice",
		Content: "the badger strikes", CreatedAt: time.Now(), Reply: reply,
	}

	// Then the stored and broadcast content is masked
	result := <-reply
	req.NoError(result.Err)
	req.Equal("the ****** strikes", result.Message.Content)
}

func TestRoomWorker_Messages_Broadcast_In_Arrival_Order(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	total := 20
	repository.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(total)
	commands, events := startRoomWorker(t, repository)

	// When many messages arrive in sequence
	for i := 0; i < total; i++ {
		commands <- domain.PostMessageCommand{
			Room: "general", SenderID: "u1", SenderName: "alice",
			Content: fmt.Sprintf("message %03d", i), CreatedAt: time.Now(),
		}
	}

	// Then broadcasts preserve arrival order
	for i := 0; i < total; i++ {
		evt := waitEvent(t, events)
		posted, ok := evt.(event.MessagePosted)
		req.True(ok)
		req.Equal(fmt.Sprintf("message %03d", i), posted.Message.Content)
	}
}

func TestRoomWorker_MarkSeen_Emits_One_Summary_Event(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	repository.EXPECT().MarkAllSeen(domain.RoomID("general"), "u2").Return(3, nil).Times(1)
	commands, events := startRoomWorker(t, repository)

	reply := make(chan error, 1)
	// When a user acknowledges the room
	commands <- domain.MarkSeenCommand{Room: "general", UserID: "u2", Reply: reply}

	// Then the batch succeeds and one summary event is broadcast
	req.NoError(<-reply)
	evt := waitEvent(t, events)
	seen, ok := evt.(event.MessagesSeen)
	req.True(ok)
	req.Equal("u2", seen.UserID)
}

func TestRoomWorker_Typing_Transitions_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)

	commands, events := startRoomWorker(t, repository)

	// When alice signals typing three times in a row
	for i := 0; i < 3; i++ {
		commands <- domain.StartTypingCommand{Room: "general", Username: "alice"}
	}
	// And then stops twice
	commands <- domain.StopTypingCommand{Room: "general", Username: "alice"}
	commands <- domain.StopTypingCommand{Room: "general", Username: "alice"}

	// Then exactly one start and one stop are broadcast
	started, ok := waitEvent(t, events).(event.TypingStarted)
	req.True(ok)
	req.Equal("alice", started.Username)

	stopped, ok := waitEvent(t, events).(event.TypingStopped)
	req.True(ok)
	req.Equal("alice", stopped.Username)

	select {
	case evt := <-events:
		req.Fail(fmt.Sprintf("Unexpected broadcast: %T", evt))
	case <-time.After(100 * time.Millisecond):
	}
}
