package workers

import (
	"context"
	"log/slog"

	"chat-hub/domain/event"
)

// TelemetryWorker drains the observability channel and hands each sample
// to the registered handlers. It sits entirely off the broadcast path.
type TelemetryWorker struct {
	log           *slog.Logger
	telemetryChan chan event.Event
	handlers      []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryChan chan event.Event,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:           log,
		telemetryChan: telemetryChan,
		handlers:      handlers,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.telemetryChan:
			if !ok {
				w.log.Debug("Telemetry channel closed")
				return nil
			}
			for _, h := range w.handlers {
				h.Handle(evt)
			}
		}
	}
}
