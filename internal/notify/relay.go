package notify

import (
	"context"
	"fmt"

	"chronobank/internal/domain"
	"chronobank/internal/logger"
	"chronobank/internal/metrics"
	"chronobank/internal/repository"
)

// Relay forwards undelivered notifications to a Sink. A failed delivery
// stays undelivered and is retried on the next pass.
type Relay struct {
	notes   repository.NotificationRepository
	sink    Sink
	batch   int
	now     domain.Clock
	metrics *metrics.Collector
}

func NewRelay(notes repository.NotificationRepository, sink Sink, batch int, clock domain.Clock) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{notes: notes, sink: sink, batch: batch, now: clock.OrSystem()}
}

func (r *Relay) WithMetrics(m *metrics.Collector) *Relay {
	r.metrics = m
	return r
}

// Run delivers one batch and reports how many notifications went out.
func (r *Relay) Run(ctx context.Context) (int, error) {
	pending, err := r.notes.ListUndelivered(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("list undelivered notifications: %w", err)
	}

	delivered, failed := 0, 0
	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := r.sink.Deliver(ctx, n); err != nil {
			logger.WarnContext(ctx, "Notification delivery failed", "notificationID", n.ID, "error", err)
			failed++
			continue
		}
		if err := r.notes.MarkDelivered(ctx, n.ID, r.now()); err != nil {
			return delivered, fmt.Errorf("mark notification %d delivered: %w", n.ID, err)
		}
		delivered++
	}

	r.metrics.RecordRelay(delivered, failed)
	if len(pending) > 0 {
		logger.Info("Notification relay finished", "pending", len(pending), "delivered", delivered, "failed", failed)
	}
	return delivered, nil
}
