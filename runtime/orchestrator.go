// Package runtime wires the live parts of the chat engine: connection and
// membership state, typing coordination, per-room serialization, and event
// propagation. It orchestrates the system without containing domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime/workers"
)

var _ contract.IDispatcher = (*Orchestrator)(nil)

// Orchestrator is the room event router. It keeps one command channel per
// live room, each drained by a supervised RoomWorker, so events for one
// room apply in arrival order while distinct rooms proceed in parallel.
//
// The orchestrator itself is a thin, stateless dispatcher: an event
// referencing an unknown room is dropped here (and logged), never
// broadcast.
type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	registry          *Registry
	typing            contract.ITypingCoordinator
	supervisor        contract.ISupervisor
	messageRepository repositories.IMessageRepository
	moderator         moderation.Moderator
	monitoring        []event.Handler

	roomCommands map[domain.RoomID]chan domain.Command
	events       chan event.DomainEvent
	telemetry    chan event.Event

	bufferSize     int
	sinkTimeout    time.Duration
	sweepInterval  time.Duration
	metricInterval time.Duration
	permanentSinks []contract.EventSink

	runCtx context.Context
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, typing contract.ITypingCoordinator,
	messageRepository repositories.IMessageRepository, moderator moderation.Moderator,
	bufferSize int, sinkTimeout, sweepInterval, metricInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		registry:          registry,
		typing:            typing,
		supervisor:        supervisor,
		messageRepository: messageRepository,
		moderator:         moderator,
		roomCommands:      make(map[domain.RoomID]chan domain.Command),
		events:            make(chan event.DomainEvent, bufferSize),
		telemetry:         make(chan event.Event, bufferSize),
		bufferSize:        bufferSize,
		sinkTimeout:       sinkTimeout,
		sweepInterval:     sweepInterval,
		metricInterval:    metricInterval,
	}
}

// AddSinks registers permanent sinks receiving every broadcast event
// (projections, search index feed). Must be called before Start.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// AddTelemetryHandlers registers observability consumers. Must be called
// before Start.
func (o *Orchestrator) AddTelemetryHandlers(handlers ...event.Handler) {
	o.monitoring = append(o.monitoring, handlers...)
}

// EnsureRoom spins up the serialization point for a room on first use.
// Idempotent: joining an already-live room reuses its worker.
func (o *Orchestrator) EnsureRoom(roomID domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.roomCommands[roomID]; ok {
		return
	}
	commands := make(chan domain.Command, o.bufferSize)
	o.roomCommands[roomID] = commands

	runCtx := o.runCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	worker := workers.NewRoomWorker(roomID, commands, o.events,
		o.messageRepository, o.moderator, o.typing, o.log)
	o.supervisor.Start(runCtx, worker)
	o.log.Info("Room worker started", "room_id", roomID)
}

// Dispatch routes a command to its room's serialization point. Commands
// for rooms with no live worker are rejected with ErrRoomNotFound; a full
// command channel sheds load instead of blocking the caller.
func (o *Orchestrator) Dispatch(cmd domain.Command) error {
	o.mu.Lock()
	commands, ok := o.roomCommands[cmd.RoomID()]
	o.mu.Unlock()

	if !ok {
		return errors.ErrRoomNotFound
	}
	select {
	case commands <- cmd:
		return nil
	default:
		o.log.Warn(fmt.Sprintf("Command channel full for Room %s, dropping command", cmd.RoomID()))
		return errors.ErrRouterSaturated
	}
}

// Publish pushes an event straight to the fanout, bypassing room
// serialization. Used for events produced outside a room worker (joins,
// global offline notifications).
func (o *Orchestrator) Publish(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	default:
		o.log.Warn("Event channel full, dropping event", "room_id", evt.RoomID())
	}
}

// Start prepares the pipeline workers and runs the supervisor. It blocks
// until Stop is called or ctx is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanout := workers.NewEventFanout(o.log, o.registry, o.events, o.telemetry, o.sinkTimeout).
		Add(o.permanentSinks...)
	sweeper := workers.NewTypingSweeper(o.log, o.typing, o.events, o.sweepInterval)
	capacity := workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
		{Name: "events", Channel: o.events},
		{Name: "telemetry", Channel: o.telemetry},
	}, o.telemetry, o.metricInterval)
	telemetry := workers.NewTelemetryWorker(o.log, o.telemetry, o.monitoring)
	stats := workers.NewStatsWorker(o.log, o.telemetry, o.metricInterval)

	o.mu.Lock()
	o.runCtx = ctx
	o.supervisor.Add(fanout, sweeper, capacity, telemetry, stats)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown: workers get their cancellation
// signal and Start returns once they drain.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
