package events

import (
	"sync"

	"github.com/roach88/objgate/internal/ir"
)

// Recorder is a synchronous Notifier that keeps every event it receives.
// It is used by tests and the conformance harness.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

var _ Notifier = (*Recorder)(nil)

// Notify records e.
func (r *Recorder) Notify(e ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
