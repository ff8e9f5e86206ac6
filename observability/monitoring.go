// Package observability aggregates runtime telemetry. Everything here is
// off the broadcast path: counters are atomic and sampled, and losing a
// sample only skews a metric, never a chat event.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-hub/domain/event"
)

// MonitoringStats is a point-in-time snapshot of the service counters.
type MonitoringStats struct {
	MessagesPosted uint64  `json:"messages_posted"`
	UsersJoined    uint64  `json:"users_joined"`
	ReceiptBatches uint64  `json:"receipt_batches"`
	TypingStarted  uint64  `json:"typing_started"`
	TypingStopped  uint64  `json:"typing_stopped"`
	RSSBytes       uint64  `json:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
}

// MonitoringManager keeps live counters and the latest process sample.
// It implements event.Handler so the telemetry worker can feed it.
type MonitoringManager struct {
	log *slog.Logger

	mu         sync.RWMutex
	latestProc event.ProcessStats

	messagesPosted uint64
	usersJoined    uint64
	receiptBatches uint64
	typingStarted  uint64
	typingStopped  uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) Handle(e event.Event) {
	switch payload := e.Payload.(type) {
	case event.ProcessStats:
		mm.mu.Lock()
		mm.latestProc = payload
		mm.mu.Unlock()
	case event.ChannelCapacity:
		if payload.Capacity > 0 && payload.Length == payload.Capacity {
			mm.log.Warn("Channel saturated",
				"channel", payload.ChannelName, "capacity", payload.Capacity)
		}
	case event.MessagePosted:
		atomic.AddUint64(&mm.messagesPosted, 1)
	case event.UserJoined:
		atomic.AddUint64(&mm.usersJoined, 1)
	case event.MessagesSeen:
		atomic.AddUint64(&mm.receiptBatches, 1)
	case event.TypingStarted:
		atomic.AddUint64(&mm.typingStarted, 1)
	case event.TypingStopped:
		atomic.AddUint64(&mm.typingStopped, 1)
	}
}

// GetLatest returns a consistent snapshot of all counters.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	proc := mm.latestProc
	mm.mu.RUnlock()

	return MonitoringStats{
		MessagesPosted: atomic.LoadUint64(&mm.messagesPosted),
		UsersJoined:    atomic.LoadUint64(&mm.usersJoined),
		ReceiptBatches: atomic.LoadUint64(&mm.receiptBatches),
		TypingStarted:  atomic.LoadUint64(&mm.typingStarted),
		TypingStopped:  atomic.LoadUint64(&mm.typingStopped),
		RSSBytes:       proc.RSSBytes,
		CPUPercent:     proc.CPUPercent,
	}
}

// Listen emits a summary line on every interval until ctx ends.
func (mm *MonitoringManager) Listen(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return
		case <-ticker.C:
			stats := mm.GetLatest()
			mm.log.Info("Service stats",
				"messages", stats.MessagesPosted,
				"joins", stats.UsersJoined,
				"receipt_batches", stats.ReceiptBatches,
				"rss_mb", stats.RSSBytes/(1024*1024))
		}
	}
}
