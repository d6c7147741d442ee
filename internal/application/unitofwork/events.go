package unitofwork

import (
	"context"

	"github.com/retailpos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventBuffer collects domain events raised inside a transaction so they can
// be published once the transaction has committed.
type EventBuffer struct {
	events []shared.DomainEvent
}

// Add appends events to the buffer
func (b *EventBuffer) Add(events ...shared.DomainEvent) {
	b.events = append(b.events, events...)
}

// Collect drains pending events from aggregates
func (b *EventBuffer) Collect(aggregates ...shared.AggregateRoot) {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		b.events = append(b.events, agg.GetDomainEvents()...)
		agg.ClearDomainEvents()
	}
}

// Len returns the number of buffered events
func (b *EventBuffer) Len() int {
	return len(b.events)
}

// Reset drops buffered events, used when a transaction rolls back
func (b *EventBuffer) Reset() {
	b.events = nil
}

// Flush publishes the buffered events. Publishing failures are logged and
// never undo the committed transaction.
func (b *EventBuffer) Flush(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger) {
	if publisher == nil || len(b.events) == 0 {
		b.events = nil
		return
	}
	if err := publisher.Publish(ctx, b.events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("event_count", len(b.events)),
			zap.Error(err))
	}
	b.events = nil
}
