// Package notify defines the notification sink the unit of work dispatches committed
// events to, plus a local in-process registry implementation. The natsbus subpackage
// provides a NATS JetStream implementation.
//
// Dispatch is best-effort and happens strictly after commit: a failing sink never
// rolls back a committed unit of work.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
)

// Sink receives events of a committed unit of work, in the order they were recorded.
type Sink interface {
	Publish(ctx context.Context, event eventstore.StorableEvent) error
}

// Handler processes one committed event.
type Handler func(ctx context.Context, event eventstore.StorableEvent) error

// Registry is a local in-process Sink dispatching events to handlers subscribed by
// event type. Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string][]Handler
	allHandlers []Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event type.
func (r *Registry) Subscribe(eventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// SubscribeAll registers a handler receiving every event.
func (r *Registry) SubscribeAll(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.allHandlers = append(r.allHandlers, handler)
}

// Publish dispatches the event to all matching handlers. Every handler runs even if
// an earlier one fails; the errors are joined.
func (r *Registry) Publish(ctx context.Context, event eventstore.StorableEvent) error {
	r.mu.RLock()
	matching := make([]Handler, 0, len(r.allHandlers)+len(r.handlers[event.EventType]))
	matching = append(matching, r.allHandlers...)
	matching = append(matching, r.handlers[event.EventType]...)
	r.mu.RUnlock()

	var errs []error
	for _, handler := range matching {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

var _ Sink = (*Registry)(nil)

// Fanout combines multiple sinks into one. Every sink receives every event even if an
// earlier sink fails; the errors are joined.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

type fanout []Sink

func (f fanout) Publish(ctx context.Context, event eventstore.StorableEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
