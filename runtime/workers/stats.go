package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-hub/domain/event"
)

// StatsWorker samples the server process itself (RSS, CPU, scheduler
// status) on an interval and feeds the observability channel. Losing a
// sample is fine; the next tick produces a fresh one.
type StatsWorker struct {
	log            *slog.Logger
	telemetryChan  chan event.Event
	metricInterval time.Duration
}

func NewStatsWorker(log *slog.Logger, telemetryChan chan event.Event,
	metricInterval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, telemetryChan: telemetryChan, metricInterval: metricInterval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.telemetryChan <- toStatsEvent(rss, cpu, status):
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

// selfStats retrieves technical metrics (Memory, CPU, and OS Status) for
// the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}

func toStatsEvent(rss uint64, cpu float64, status string) event.Event {
	return event.Event{
		Type:      event.ProcessStatsType,
		CreatedAt: time.Now().UTC(),
		Payload: event.ProcessStats{
			PID:        os.Getpid(),
			RSSBytes:   rss,
			CPUPercent: cpu,
			Status:     status,
		},
	}
}
