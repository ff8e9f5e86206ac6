//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Supervision (panic recovery, restart) is the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives broadcast events. A sink must tolerate being called
// from the fanout goroutine and should honor ctx cancellation.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the fanout's view of live connections: the member sinks of a
// room resolved at broadcast time, never a stale snapshot.
type IRegistry interface {
	SinksForRoom(roomID domain.RoomID) []EventSink
	AllSinks() []EventSink
}

// IDispatcher routes inbound commands to a room's serialization point.
type IDispatcher interface {
	Dispatch(cmd domain.Command) error
	Publish(evt event.DomainEvent)
}

// TypingExpiry is one deadline-driven stop transition found by a sweep.
type TypingExpiry struct {
	Room     domain.RoomID
	Username string
}

// ITypingCoordinator tracks the set of users composing in each room.
// Start and Stop report whether an actual transition happened, so callers
// broadcast transitions only, never refreshes.
type ITypingCoordinator interface {
	Start(roomID domain.RoomID, username string) bool
	Stop(roomID domain.RoomID, username string) bool
	TypingIn(roomID domain.RoomID) []string
	SweepExpired() []TypingExpiry
}
