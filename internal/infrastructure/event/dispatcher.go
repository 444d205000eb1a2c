// Package event delivers count domain events to in-process handlers.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/stockcount/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Publish once Close has been called
var ErrDispatcherClosed = errors.New("event dispatcher is closed")

// Dispatcher hands each published event to the handlers routed for its type,
// then to the catch-all handlers, synchronously and in subscription order.
// A failing or panicking handler is logged and never fails the publisher.
type Dispatcher struct {
	mu       sync.RWMutex
	routes   map[string][]shared.EventHandler
	catchAll []shared.EventHandler
	closed   bool
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		routes: make(map[string][]shared.EventHandler),
		logger: logger,
	}
}

// Subscribe routes eventTypes to handler. With no types given the handler's
// own EventTypes are used; an empty list there makes it a catch-all.
func (d *Dispatcher) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(eventTypes) == 0 {
		d.catchAll = append(d.catchAll, handler)
		return
	}
	for _, t := range eventTypes {
		d.routes[t] = append(d.routes[t], handler)
	}
}

// Publish delivers events in order
func (d *Dispatcher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrDispatcherClosed
	}

	for _, event := range events {
		for _, handler := range d.handlersFor(event.EventType()) {
			if err := deliver(ctx, handler, event); err != nil {
				d.logger.Error("Event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("count_id", event.AggregateID().String()),
					zap.Error(err))
			}
		}
	}
	return nil
}

// Close stops delivery. It matches the shutdown hook signature.
func (d *Dispatcher) Close(context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.logger.Debug("Event dispatcher closed")
	return nil
}

func (d *Dispatcher) handlersFor(eventType string) []shared.EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	routed := d.routes[eventType]
	out := make([]shared.EventHandler, 0, len(routed)+len(d.catchAll))
	out = append(out, routed...)
	return append(out, d.catchAll...)
}

func deliver(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventPublisher = (*Dispatcher)(nil)
