package sales_repo

import (
	"context"

	"tpv/internal/domain/sales"
	"tpv/internal/infrastructure/storage/postgres"
)

// EventPublisher adapts the transactional outbox to the sales contract.
type EventPublisher struct {
	outbox *postgres.OutboxPublisher
}

// NewEventPublisher creates the outbox-backed publisher.
func NewEventPublisher(outbox *postgres.OutboxPublisher) *EventPublisher {
	return &EventPublisher{outbox: outbox}
}

// Publish writes the event to the outbox within the current transaction.
func (p *EventPublisher) Publish(ctx context.Context, event sales.Event) error {
	return p.outbox.Publish(ctx, postgres.DomainEvent{
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
	})
}

// Ensure interface compliance
var _ sales.EventPublisher = (*EventPublisher)(nil)
