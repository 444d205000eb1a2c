package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseAggregateRoot carries what every persisted aggregate needs: identity,
// audit timestamps, the optimistic lock version and the events raised since
// it was loaded. Events are never persisted.
type BaseAggregateRoot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
	events    []DomainEvent
}

// NewBaseAggregateRoot returns a fresh root at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now()
	return BaseAggregateRoot{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Touch moves UpdatedAt forward to now
func (a *BaseAggregateRoot) Touch() {
	a.UpdatedAt = time.Now()
}

// Raise queues an event for publication once the aggregate is saved
func (a *BaseAggregateRoot) Raise(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns the queued events without clearing them
func (a *BaseAggregateRoot) Events() []DomainEvent {
	return a.events
}

// PullEvents returns the queued events and clears the queue.
func (a *BaseAggregateRoot) PullEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}
