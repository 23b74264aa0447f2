package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"carebridge/internal/platform/kafka"
	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. When a Kafka
// publisher is configured, events are additionally produced to the audit
// topic keyed by user id; broker failures are logged, never propagated, so
// audit can't take down the request path.
type Publisher struct {
	store  Store
	sink   *kafka.Publisher
	inbox  chan<- Event
	logger *slog.Logger
}

// NewPublisher appends events to the store synchronously. Tests and small
// deployments use this form.
func NewPublisher(store Store, sink *kafka.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, logger: logger}
}

// NewAsyncPublisher hands events to a background Worker via inbox instead of
// appending on the request path. The caller owns the Worker draining inbox
// into the same store. A full inbox falls back to a synchronous append so
// events are never dropped.
func NewAsyncPublisher(store Store, sink *kafka.Publisher, inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.persist(ctx, base); err != nil {
		return err
	}

	if p.sink != nil {
		payload, err := json.Marshal(base)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to marshal audit event",
				"error", err,
				"action", base.Action,
			)
			return nil
		}
		// Bound the produce so a slow broker can't stall the request.
		produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.sink.Publish(produceCtx, []byte(base.UserID.String()), payload); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish audit event",
				"error", err,
				"action", base.Action,
			)
		}
	}
	return nil
}

func (p *Publisher) persist(ctx context.Context, event Event) error {
	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
