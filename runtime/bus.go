// Package runtime handles event propagation, session bookkeeping, timers,
// and the membership lifecycle. It orchestrates the system; domain rules
// live in the aggregates.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"jamlab/domain/event"
)

// Handler consumes one domain event. Handlers run sequentially on the
// publisher's goroutine; a failing handler does not stop its siblings.
type Handler func(ctx context.Context, e event.DomainEvent) error

// Subscription identifies one registered handler. Go functions are not
// comparable, so unsubscription goes through the token instead of the
// handler value.
type Subscription struct {
	kind event.Kind
	id   uint64
}

type busEntry struct {
	id      uint64
	handler Handler
}

// Bus is the typed publish/subscribe core. Dispatch is keyed by the event
// kind tag; handlers for a kind run in registration order.
type Bus struct {
	mu       sync.RWMutex
	log      *slog.Logger
	nextID   uint64
	handlers map[event.Kind][]busEntry
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: make(map[event.Kind][]busEntry),
	}
}

func (b *Bus) Subscribe(kind event.Kind, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], busEntry{id: b.nextID, handler: handler})
	return Subscription{kind: kind, id: b.nextID}
}

func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[sub.kind]
	for i, entry := range entries {
		if entry.id == sub.id {
			b.handlers[sub.kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler registered for the event's kind, in
// registration order, sequentially. All handlers run even when an earlier
// one fails; the first error is returned after the last handler finished.
// Callers must not assume an error means no side effects occurred.
func (b *Bus) Publish(ctx context.Context, e event.DomainEvent) error {
	b.mu.RLock()
	entries := make([]busEntry, len(b.handlers[e.Kind()]))
	copy(entries, b.handlers[e.Kind()])
	b.mu.RUnlock()

	var firstErr error
	for _, entry := range entries {
		if err := entry.handler(ctx, e); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s: %w", e.Kind(), err)
			}
			b.log.Warn("Event handler failed", "kind", string(e.Kind()), "room", e.RoomID(), "error", err)
		}
	}
	return firstErr
}

// PublishAll publishes events strictly in the given order, each one fully
// dispatched before the next starts. Every event is published even when an
// earlier one reported a handler failure; the first error wins.
func (b *Bus) PublishAll(ctx context.Context, events []event.DomainEvent) error {
	var firstErr error
	for _, e := range events {
		if err := b.Publish(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
