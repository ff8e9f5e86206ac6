package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/runtime/workers"
)

func newTestOrchestrator(t *testing.T, bufferSize int) *Orchestrator {
	t.Helper()
	log := slog.Default()
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)

	return NewOrchestrator(log, workers.NewSupervisor(log),
		NewRegistry(), NewTypingCoordinator(1500*time.Millisecond),
		nil, moderator,
		bufferSize, time.Second, 100*time.Millisecond, time.Minute)
}

func TestOrchestrator_Dispatch_Unknown_Room(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(t, 8)

	// When dispatching to a room with no live worker
	err := orchestrator.Dispatch(domain.StartTypingCommand{Room: "ghost", Username: "alice"})

	// Then the command is dropped at the router
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestOrchestrator_Dispatch_Saturation_Sheds_Load(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(t, 1)

	// Given a live room whose worker never drains (no supervisor running)
	orchestrator.mu.Lock()
	orchestrator.roomCommands["general"] = make(chan domain.Command, 1)
	orchestrator.mu.Unlock()

	// When more commands arrive than the channel holds
	first := orchestrator.Dispatch(domain.StartTypingCommand{Room: "general", Username: "alice"})
	second := orchestrator.Dispatch(domain.StartTypingCommand{Room: "general", Username: "bob"})

	// Then the overflow is rejected instead of blocking the caller
	req.NoError(first)
	req.ErrorIs(second, errors.ErrRouterSaturated)
}

func TestOrchestrator_EnsureRoom_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(t, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = orchestrator.Start(ctx) }()
	defer orchestrator.Stop()
	time.Sleep(20 * time.Millisecond)

	// When the same room is ensured twice
	orchestrator.EnsureRoom("general")
	commands := orchestrator.roomCommands["general"]
	orchestrator.EnsureRoom("general")

	// Then the command channel is reused, not replaced
	req.Equal(commands, orchestrator.roomCommands["general"])
	req.Len(orchestrator.roomCommands, 1)
}

func TestOrchestrator_Publish_Bypasses_Room_Serialization(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(t, 8)

	// When publishing a service-originated event
	orchestrator.Publish(event.UserOffline{Username: "alice"})

	// Then it waits on the fanout channel even with no room worker alive
	req.Len(orchestrator.events, 1)
}
