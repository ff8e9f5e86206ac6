package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout broadcasts domain events to the room's current member sinks.
//
// Membership is resolved through the registry at broadcast time, so an
// event always reaches the member set as it stands when the broadcast
// happens. Events addressed to domain.GlobalRoom go to every connection.
//
// Permanent sinks (projections, the search index) receive every event.
// Telemetry delivery is best-effort: a slow observability consumer never
// stalls the broadcast path.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	events         chan event.DomainEvent
	telemetry      chan event.Event
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	events chan event.DomainEvent, telemetry chan event.Event,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		registry:    registry,
		events:      events,
		telemetry:   telemetry,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.permanentSinks = append(w.permanentSinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt := <-w.events:
			w.Fanout(ctx, evt)
			select {
			case w.telemetry <- toTelemetryEvent(evt):
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

// Fanout delivers one event to every member sink of its room plus the
// permanent sinks. Each sink gets its own timeout so one stuck consumer
// cannot hold up the rest of the room.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	var sinks []contract.EventSink
	if evt.RoomID() == domain.GlobalRoom {
		sinks = w.registry.AllSinks()
	} else {
		sinks = w.registry.SinksForRoom(evt.RoomID())
	}
	sinks = append(sinks, w.permanentSinks...)

	for _, sink := range sinks {
		w.consume(ctx, sink, evt)
	}
}

func (w *EventFanout) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink failed to consume event",
			"room_id", evt.RoomID(), "error", err)
	}
}

func toTelemetryEvent(evt event.DomainEvent) event.Event {
	return event.Event{
		Type:      event.DomainType,
		CreatedAt: time.Now().UTC(),
		Payload:   evt,
	}
}
