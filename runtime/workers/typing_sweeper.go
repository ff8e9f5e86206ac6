package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain/event"
)

var _ contract.Worker = (*TypingSweeper)(nil)

// TypingSweeper reaps typing entries whose deadline elapsed without an
// explicit stop signal, e.g. when a client disconnects mid-composition.
// Exactly one stop event is broadcast per expired entry; the coordinator
// removed the entry before this worker sees it, so a concurrent explicit
// stop can never produce a second broadcast.
type TypingSweeper struct {
	log      *slog.Logger
	typing   contract.ITypingCoordinator
	events   chan<- event.DomainEvent
	interval time.Duration
}

func NewTypingSweeper(log *slog.Logger, typing contract.ITypingCoordinator,
	events chan<- event.DomainEvent, interval time.Duration) *TypingSweeper {
	return &TypingSweeper{log: log, typing: typing, events: events, interval: interval}
}

func (w *TypingSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping typing sweeper")
			return nil
		case <-ticker.C:
			for _, expired := range w.typing.SweepExpired() {
				select {
				case <-ctx.Done():
					return nil
				case w.events <- event.TypingStopped{Room: expired.Room, Username: expired.Username}:
				}
			}
		}
	}
}
