// Package events implements the observer registry used by views and their
// collaborators: subscribe/unsubscribe/emit on named events, plus
// listen-to-another-object bookkeeping so a view can drop every external
// registration in one call when it is removed.
package events

import "sync"

// Handler is an event callback. Arguments are event-specific.
type Handler func(args ...interface{})

// Subscription identifies one registered handler so it can be removed
// without comparing function values.
type Subscription struct {
	emitter *Emitter
	event   string
	id      int
}

// Observable is implemented by anything that exposes an event surface.
// Views implement it, and bound models or collections may implement it to
// opt in to change notification and removal-time detachment.
type Observable interface {
	On(event string, fn Handler) *Subscription
	Off(sub *Subscription)
}

// Emitter is a per-object event registry. The zero value is ready to use.
type Emitter struct {
	mu       sync.Mutex
	seq      int
	handlers map[string][]entry
}

type entry struct {
	id   int
	once bool
	fn   Handler
}

// On registers fn for event and returns its subscription.
func (e *Emitter) On(event string, fn Handler) *Subscription {
	return e.register(event, fn, false)
}

// Once registers fn to run at most one time for event.
func (e *Emitter) Once(event string, fn Handler) *Subscription {
	return e.register(event, fn, true)
}

func (e *Emitter) register(event string, fn Handler, once bool) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[string][]entry)
	}
	e.seq++
	e.handlers[event] = append(e.handlers[event], entry{id: e.seq, once: once, fn: fn})
	return &Subscription{emitter: e, event: event, id: e.seq}
}

// Off removes a single subscription. Unknown or already-removed
// subscriptions are ignored.
func (e *Emitter) Off(sub *Subscription) {
	if sub == nil || sub.emitter != e {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.handlers[sub.event]
	for i, en := range entries {
		if en.id == sub.id {
			e.handlers[sub.event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// RemoveAll drops every handler for every event.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = nil
}

// Emit invokes every handler registered for event, in registration order,
// on the calling goroutine. Once-handlers are unregistered before they run.
func (e *Emitter) Emit(event string, args ...interface{}) {
	e.mu.Lock()
	entries := e.handlers[event]
	// Snapshot so handlers may subscribe/unsubscribe reentrantly.
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	if len(entries) > 0 {
		kept := entries[:0]
		for _, en := range entries {
			if !en.once {
				kept = append(kept, en)
			}
		}
		e.handlers[event] = kept
	}
	e.mu.Unlock()

	for _, en := range snapshot {
		en.fn(args...)
	}
}

// Listener tracks subscriptions an object holds on other Observables so
// they can all be dropped at once. The zero value is ready to use.
type Listener struct {
	mu   sync.Mutex
	subs []listened
}

type listened struct {
	source Observable
	sub    *Subscription
}

// ListenTo subscribes fn to event on source and records the subscription.
func (l *Listener) ListenTo(source Observable, event string, fn Handler) *Subscription {
	sub := source.On(event, fn)
	l.mu.Lock()
	l.subs = append(l.subs, listened{source: source, sub: sub})
	l.mu.Unlock()
	return sub
}

// StopListening removes every recorded subscription. Sources that have
// already dropped the handler are unaffected.
func (l *Listener) StopListening() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()
	for _, s := range subs {
		s.source.Off(s.sub)
	}
}
