package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/mocks"
)

func TestEventFanout_Room_Scoped_Broadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	memberSink := mocks.NewMockEventSink(ctrl)
	permanentSink := mocks.NewMockEventSink(ctrl)

	telemetry := make(chan event.Event, 8)
	fanout := NewEventFanout(slog.Default(), mockRegistry,
		make(chan event.DomainEvent), telemetry, time.Second).
		Add(permanentSink)

	evt := event.TypingStarted{Room: "general", Username: "alice"}

	// Given the room has two member connections
	mockRegistry.EXPECT().SinksForRoom(domain.RoomID("general")).
		Return([]contract.EventSink{memberSink, memberSink}).Times(1)
	// Then members and the permanent sink each consume the event
	memberSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(2)
	permanentSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When the event is fanned out
	fanout.Fanout(context.Background(), evt)
	req.Empty(telemetry)
}

func TestEventFanout_Global_Event_Reaches_All_Connections(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)

	fanout := NewEventFanout(slog.Default(), mockRegistry,
		make(chan event.DomainEvent), make(chan event.Event, 8), time.Second)

	evt := event.UserOffline{Username: "alice"}

	// Given connections spread over several rooms
	mockRegistry.EXPECT().AllSinks().
		Return([]contract.EventSink{sink, sink, sink}).Times(1)
	// Then every connection consumes the global event
	sink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(3)

	// When the event is fanned out
	fanout.Fanout(context.Background(), evt)
}

func TestEventFanout_Slow_Sink_Times_Out(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)
	healthySink := mocks.NewMockEventSink(ctrl)

	sinkTimeout := 20 * time.Millisecond
	fanout := NewEventFanout(slog.Default(), mockRegistry,
		make(chan event.DomainEvent), make(chan event.Event, 8), sinkTimeout)

	evt := event.TypingStarted{Room: "general", Username: "alice"}

	mockRegistry.EXPECT().SinksForRoom(domain.RoomID("general")).
		Return([]contract.EventSink{slowSink, healthySink}).Times(1)
	// Given one sink that never returns until its context is cut
	slowSink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)
	// Then the healthy sink still consumes
	healthySink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When the event is fanned out
	fanout.Fanout(context.Background(), evt)
}
