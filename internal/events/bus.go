// Package events delivers lifecycle notifications emitted by the engine.
//
// The engine depends only on the Notifier interface. Bus is the
// asynchronous implementation: Notify enqueues and returns at once, and a
// separate Run loop hands events to subscribers, so a slow or failing
// subscriber can never delay or fail the operation that produced the event.
//
// Event names follow the pattern "created", "created.<type>", "updated",
// "updated.<type>" and "updated.<type>.<id>".
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/objgate/internal/ir"
)

// Event names.
const (
	Created = "created"
	Updated = "updated"

	// All subscribes to every event.
	All = "*"
)

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(e ir.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(e ir.Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e ir.Event) { f(e) }

// Handler consumes a delivered event.
type Handler func(ctx context.Context, e ir.Event)

// Names returns the event names for an action on an object, most general
// first.
func Names(action, typ, id string) []string {
	names := []string{action, action + "." + typ}
	if action == Updated && id != "" {
		names = append(names, action+"."+typ+"."+id)
	}
	return names
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an asynchronous publish/subscribe hub.
type Bus struct {
	queue  *eventQueue
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
}

var _ Notifier = (*Bus)(nil)

// NewBus creates a bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		queue:  newEventQueue(),
		logger: logger,
		subs:   make(map[string][]subscription),
	}
}

// Subscribe registers h for events named name, or for every event when name
// is All. It returns a function that removes the subscription.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[name]
		for i, s := range subs {
			if s.id == id {
				b.subs[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish enqueues e for delivery. It never blocks. Events published after
// Close are dropped.
func (b *Bus) Publish(e ir.Event) {
	if !b.queue.Enqueue(e) {
		b.logger.Debug("event dropped after close", "event", e.Name)
	}
}

// Notify implements Notifier by publishing e.
func (b *Bus) Notify(e ir.Event) { b.Publish(e) }

// Pending returns the number of events waiting for delivery.
func (b *Bus) Pending() int {
	return b.queue.Len()
}

// Close stops accepting events. Run delivers what is already queued and
// then returns.
func (b *Bus) Close() {
	b.queue.Close()
}

// Run delivers events until ctx is cancelled or the bus is closed and
// drained.
func (b *Bus) Run(ctx context.Context) error {
	for {
		for {
			e, ok := b.queue.TryDequeue()
			if !ok {
				break
			}
			b.deliver(ctx, e)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if b.queue.Closed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.queue.Wait():
		}
	}
}

func (b *Bus) deliver(ctx context.Context, e ir.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Name])+len(b.subs[All]))
	for _, s := range b.subs[e.Name] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.subs[All] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(ctx, h, e)
	}
}

func (b *Bus) call(ctx context.Context, h Handler, e ir.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", e.Name,
				"type", e.Type,
				"id", e.ID,
				"panic", r)
		}
	}()
	h(ctx, e)
}
