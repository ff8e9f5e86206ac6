package sink

import (
	"context"
	"log/slog"

	"chat-hub/domain/event"
	"chat-hub/search"
)

// SearchSink feeds posted messages into the full-text index. Indexing is
// best-effort: an index failure is logged, never propagated back into the
// broadcast path.
type SearchSink struct {
	index *search.Index
	log   *slog.Logger
}

func NewSearchSink(index *search.Index, log *slog.Logger) *SearchSink {
	return &SearchSink{index: index, log: log}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	if err := s.index.IndexMessage(evt.Message); err != nil {
		s.log.Warn("Failed to index message",
			"message_id", evt.Message.ID, "error", err)
	}
	return nil
}
