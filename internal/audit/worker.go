package audit

import (
	"context"
	"log/slog"
)

// Worker drains the audit inbox into the store. A failed append is logged and
// the event dropped rather than stalling the pipeline; when a Kafka sink is
// configured it remains the durable record.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Warn("audit append failed",
			"action", event.Action,
			"user_id", event.UserID.String(),
			"error", err,
		)
	}
}

// drain flushes whatever is already buffered so a graceful shutdown does not
// lose events that were accepted before cancellation.
func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.append(context.Background(), event)
		default:
			return
		}
	}
}
