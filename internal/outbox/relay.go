package outbox

import (
	"context"
	"log/slog"
	"time"
)

const defaultBatchSize = 100

// Relay polls the outbox and hands pending events to a Publisher. Delivery is
// at-least-once: an event is marked sent only after Publish succeeds.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	log       *slog.Logger
}

func NewRelay(store Store, publisher Publisher, interval time.Duration, log *slog.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{store: store, publisher: publisher, interval: interval, batchSize: defaultBatchSize, log: log}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.log.ErrorContext(ctx, "outbox flush failed", "error", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were marked sent.
// It stops at the first publish failure so ordering per key is preserved.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.log.WarnContext(ctx, "outbox publish failed", "event_id", e.ID.String(), "event_type", e.Type, "error", err)
			return sent, nil
		}
		if err := r.store.MarkSent(ctx, e.Seq); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
