package worker

import (
	"context"
	"log/slog"

	audit "persona/pkg/platform/audit"
)

// DeliverFunc hands one event to its destinations.
type DeliverFunc func(ctx context.Context, event audit.Event) error

// Worker consumes audit events from a channel and delivers them. Delivery
// failures are logged and do not stop the loop.
type Worker struct {
	deliver DeliverFunc
	inbox   <-chan audit.Event
	logger  *slog.Logger
}

func NewWorker(deliver DeliverFunc, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{deliver: deliver, inbox: inbox, logger: logger}
}

// Run delivers events until the inbox is closed. Cancelling ctx stops the
// loop early and abandons undelivered events.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.deliver(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit delivery failed",
					"action", event.Action,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}
