package sink

import (
	"context"
	"log/slog"

	"chat-hub/domain/event"
)

// ConnSink is the per-connection delivery buffer. The fanout pushes events
// into a bounded channel; the connection's write pump drains it. A client
// that stopped reading fills its own buffer and starts losing events, but
// never blocks the room's broadcast for everyone else.
type ConnSink struct {
	log    *slog.Logger
	Events chan event.DomainEvent
}

func NewConnSink(log *slog.Logger, bufferSize int) *ConnSink {
	return &ConnSink{
		log:    log,
		Events: make(chan event.DomainEvent, bufferSize),
	}
}

func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.Events <- e:
		return nil
	default:
		s.log.Debug("Connection buffer full, dropping event")
		return nil
	}
}
