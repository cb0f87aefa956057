package view

import "github.com/conneroisu/viewtree/internal/dom"

// EventRemove fires once when a view is removed.
const EventRemove = "remove"

// Detachable is implemented by bound models or collections that support
// detaching a view's observers on removal. Models lacking it are silently
// skipped.
type Detachable interface {
	Detach(observer interface{})
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// KeepDisplay leaves the host display untouched.
	KeepDisplay bool
}

// Remove tears the view down recursively, bottom-up. It is terminal: a
// removed view must not be reused. Invoking it again is a safe no-op.
//
// The sequence: cancel any in-flight render, clear every child (which
// recursively removes it), emit the remove event, run the on-remove hook,
// drop every event registration this view holds (including detaching from
// a bound model or collection when supported), detach the element from the
// host display, clear parent linkage and element references, mark terminal.
func (v *View) Remove(opts ...RemoveOptions) {
	if v.removed {
		return
	}
	var o RemoveOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	v.CancelRender()

	for _, key := range v.ChildKeys() {
		v.ClearChild(key)
	}
	for key := range v.pending {
		v.supersedePending(key)
	}

	v.Emit(EventRemove, v)
	if v.hooks.OnRemove != nil {
		v.hooks.OnRemove(v)
	}

	v.listener.StopListening()
	if d, ok := v.model.(Detachable); ok {
		d.Detach(v)
	}
	if d, ok := v.collection.(Detachable); ok {
		d.Detach(v)
	}
	v.emitter.RemoveAll()

	if !o.KeepDisplay && v.element != nil {
		if v.isComponent {
			// An inert placeholder keeps the sibling layout intact.
			placeholder := dom.NewElement(SlotTag)
			dom.SetAttr(placeholder, DataAttr, v.id)
			dom.ReplaceNode(v.element, placeholder)
		} else {
			dom.Empty(v.element)
		}
	}

	if v.parent != nil {
		v.parent.detachChild(v)
	}
	v.element = nil
	v.pendingElement = nil
	v.boundHandlers = nil
	v.removed = true
}
