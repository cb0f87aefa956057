package view

import "github.com/conneroisu/viewtree/internal/async"

// EventReady fires exactly once per view lifetime, when every readiness
// input has cleared.
const EventReady = "ready"

// IsReady reports whether the readiness latch has fired. The latch is
// monotonic: once true it never reverts.
func (v *View) IsReady() bool { return v.ready }

// WaitForChild blocks readiness until every named key is present in the
// child map.
func (v *View) WaitForChild(keys ...string) {
	v.waitKeys = append(v.waitKeys, keys...)
	v.evaluateReadiness()
}

// AddReadyCondition registers a custom readiness predicate. The view only
// becomes ready while every registered predicate evaluates true.
func (v *View) AddReadyCondition(fn func() bool) {
	if fn == nil {
		return
	}
	v.readyConditions = append(v.readyConditions, fn)
	v.evaluateReadiness()
}

// Wait is the overloaded readiness control surface:
//
//   - a *async.Deferred counts as an outstanding wait until it resolves;
//   - a func() is wrapped into a deferred computation with the same
//     semantics, and that deferred is returned;
//   - true sets the hold flag, pinning the view not-ready;
//   - false clears the hold flag and re-evaluates immediately.
//
// The returned deferred is the one registered, or nil for the flag forms.
func (v *View) Wait(x interface{}) *async.Deferred {
	switch arg := x.(type) {
	case *async.Deferred:
		v.registerWait(arg)
		return arg
	case func():
		d := async.NewDeferred()
		v.registerWait(d)
		arg()
		d.Resolve(nil)
		return d
	case bool:
		v.holdReady = arg
		if !arg {
			v.evaluateReadiness()
		}
		return nil
	default:
		return nil
	}
}

func (v *View) registerWait(d *async.Deferred) {
	v.outstandingWaits++
	d.Then(func(interface{}) {
		v.outstandingWaits--
		v.evaluateReadiness()
	})
}

// evaluateReadiness re-checks every readiness input. Evaluation is
// synchronous and idempotent once latched; re-evaluation after the latch
// has fired is a no-op, so the ready notification cannot fire twice.
func (v *View) evaluateReadiness() {
	if v.ready || v.removed {
		return
	}
	if v.holdReady || !v.layoutLoaded || v.outstandingWaits > 0 {
		return
	}
	for _, key := range v.waitKeys {
		if _, ok := v.children[key]; !ok {
			return
		}
	}
	for _, cond := range v.readyConditions {
		if !cond() {
			return
		}
	}

	v.ready = true
	v.Emit(EventReady, v)
	if v.hooks.OnReady != nil {
		onReady := v.hooks.OnReady
		v.hooks.OnReady = nil
		onReady(v)
	}
}
