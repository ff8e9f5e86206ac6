package event

import "time"

type Type string

const (
	DomainType              Type = "DOMAIN"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ProcessStatsType        Type = "PROCESS_STATS"
)

// Event wraps telemetry payloads flowing on the observability channel.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

// Handler consumes telemetry events.
type Handler interface {
	Handle(e Event)
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ProcessStats struct {
	PID        int
	RSSBytes   uint64
	CPUPercent float64
	Status     string
}
