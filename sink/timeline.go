// Package sink contains event consumers fed by the fanout: per-connection
// delivery, projections, and the search index feed.
package sink

import (
	"context"
	"sync"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

// Timeline accumulates the messages observed for one room. It is a simple
// local projection, useful to the UI layer and to tests asserting broadcast
// order.
type Timeline struct {
	mu       sync.Mutex
	messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	if evt, ok := e.(event.MessagePosted); ok {
		t.mu.Lock()
		t.messages = append(t.messages, evt.Message)
		t.mu.Unlock()
	}
	return nil
}

// Messages returns the observed messages in broadcast order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
