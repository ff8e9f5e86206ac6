package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-hub/contract"
	"chat-hub/domain/event"
	"chat-hub/mocks"
)

func TestTypingSweeper_Broadcasts_Expired_Entries(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	typing := mocks.NewMockITypingCoordinator(ctrl)

	// Given one expired entry on the first sweep, then nothing
	first := typing.EXPECT().SweepExpired().
		Return([]contract.TypingExpiry{{Room: "general", Username: "alice"}}).Times(1)
	typing.EXPECT().SweepExpired().Return(nil).AnyTimes().After(first)

	events := make(chan event.DomainEvent, 8)
	sweeper := NewTypingSweeper(slog.Default(), typing, events, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sweeper.Run(ctx) }()

	// Then exactly one stop broadcast comes out
	select {
	case evt := <-events:
		stopped, ok := evt.(event.TypingStopped)
		req.True(ok)
		req.Equal("alice", stopped.Username)
	case <-time.After(1 * time.Second):
		req.Fail("No stop broadcast in time")
	}

	// And no second broadcast follows
	select {
	case evt := <-events:
		req.Failf("Unexpected broadcast", "%T", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
