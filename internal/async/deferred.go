// Package async provides the deferred-result primitive used throughout the
// view engine.
//
// The engine is cooperatively scheduled: "asynchronous" means deferred
// continuation, not preemption. A Deferred is resolved exactly once and
// invokes its continuations synchronously on the resolving goroutine.
// Collaborators (templators, factories) may resolve from their own
// goroutines, so resolution is mutex-guarded.
package async

import "sync"

// Deferred is a resolve-once asynchronous result. The zero value is not
// usable; create one with NewDeferred or Resolved.
type Deferred struct {
	mu        sync.Mutex
	resolved  bool
	value     interface{}
	callbacks []func(interface{})
}

// NewDeferred creates an unresolved Deferred.
func NewDeferred() *Deferred {
	return &Deferred{}
}

// Resolved creates a Deferred that is already resolved with value.
func Resolved(value interface{}) *Deferred {
	return &Deferred{resolved: true, value: value}
}

// Resolve resolves the Deferred and runs all registered continuations in
// registration order. Resolving an already-resolved Deferred is a no-op.
func (d *Deferred) Resolve(value interface{}) {
	d.mu.Lock()
	if d.resolved {
		d.mu.Unlock()
		return
	}
	d.resolved = true
	d.value = value
	callbacks := d.callbacks
	d.callbacks = nil
	d.mu.Unlock()

	for _, fn := range callbacks {
		fn(value)
	}
}

// Then registers a continuation. If the Deferred is already resolved the
// continuation runs immediately on the calling goroutine. Returns the
// receiver for chaining.
func (d *Deferred) Then(fn func(interface{})) *Deferred {
	d.mu.Lock()
	if d.resolved {
		value := d.value
		d.mu.Unlock()
		fn(value)
		return d
	}
	d.callbacks = append(d.callbacks, fn)
	d.mu.Unlock()
	return d
}

// Done reports whether the Deferred has been resolved.
func (d *Deferred) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolved
}

// Value returns the resolution value, or nil if unresolved.
func (d *Deferred) Value() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// All returns a Deferred that resolves to nil once every input has resolved.
// With no inputs the result is resolved immediately. The barrier observes
// completions, not values; callers that need values read them off the
// inputs afterwards.
func All(deferreds ...*Deferred) *Deferred {
	barrier := NewDeferred()
	if len(deferreds) == 0 {
		barrier.Resolve(nil)
		return barrier
	}

	var mu sync.Mutex
	remaining := len(deferreds)
	for _, d := range deferreds {
		d.Then(func(interface{}) {
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				barrier.Resolve(nil)
			}
		})
	}
	return barrier
}

// Wrap runs fn and returns a Deferred resolved with its result. It adapts
// synchronous computations to the deferred control surface.
func Wrap(fn func() interface{}) *Deferred {
	return Resolved(fn())
}
