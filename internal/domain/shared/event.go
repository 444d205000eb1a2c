package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about an aggregate. Events are published only after
// the transaction that produced them has committed.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// EventHeader is embedded in every event and serialized next to its payload
type EventHeader struct {
	ID          uuid.UUID `json:"event_id"`
	Type        string    `json:"event_type"`
	At          time.Time `json:"occurred_at"`
	AggregateOf uuid.UUID `json:"aggregate_id"`
}

func NewEventHeader(eventType string, aggregateID uuid.UUID) EventHeader {
	return EventHeader{
		ID:          uuid.New(),
		Type:        eventType,
		At:          time.Now(),
		AggregateOf: aggregateID,
	}
}

func (h *EventHeader) EventID() uuid.UUID     { return h.ID }
func (h *EventHeader) EventType() string      { return h.Type }
func (h *EventHeader) OccurredAt() time.Time  { return h.At }
func (h *EventHeader) AggregateID() uuid.UUID { return h.AggregateOf }

// EventPublisher hands committed events to whoever listens. Publishing is
// best effort: services log a failure and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventHandler consumes events of the types it lists; none means all types.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}
