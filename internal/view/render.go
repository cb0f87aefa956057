package view

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/conneroisu/viewtree/internal/async"
	"github.com/conneroisu/viewtree/internal/dom"
	verrors "github.com/conneroisu/viewtree/internal/errors"
)

// Lifecycle events emitted by the render pipeline.
const (
	EventRender      = "render"
	EventAfterRender = "after:render"
)

// SlotMarker returns the opaque placeholder markup embedded in composed
// template data for a child view.
func SlotMarker(id string) string {
	return fmt.Sprintf(`<%s %s=%q></%s>`, SlotTag, DataAttr, id, SlotTag)
}

// preparedChild is one child's contribution to a parent's render pass.
type preparedChild struct {
	view *View
	// fragment holds the content to splice over the child's placeholder.
	// Nil for placeholder-only children, whose slot element stays in the
	// committed markup as their future mount point.
	fragment *html.Node
	keep     bool
	// preserved lists the live nodes lifted by preserveContent, and
	// restoreParent/restoreBefore record where a kept component element
	// lived before preservation detached it, so a canceled commit can put
	// them back.
	preserved     []*html.Node
	restoreParent *html.Node
	restoreBefore *html.Node
}

// preparedRender is a completed preparation: the assembled detached
// fragment with every child already spliced in, ready to commit.
type preparedRender struct {
	fragment *html.Node
}

// Render runs the full render cycle and returns a deferred resolving to
// the view itself once the cycle completes. Cancellation resolves the same
// deferred without committing. Rendering while a cycle is in flight queues
// a re-render behind the current one.
func (v *View) Render() *async.Deferred {
	if v.removed {
		return async.Resolved(v)
	}
	if v.deps == nil {
		v.deps = (&Deps{}).normalized()
	}
	if v.beingRendered {
		return v.queueRender()
	}
	done := async.NewDeferred()
	v.prepare().Then(func(res interface{}) {
		v.commit(res.(*preparedRender))
		done.Resolve(v)
	})
	return done
}

// ReRenderOptions controls ReRender.
type ReRenderOptions struct {
	// Force renders even if the view has never rendered.
	Force bool
	// Keep lists child keys whose live DOM must survive the parent's next
	// render pass.
	Keep []string
}

// ReRender re-runs the render cycle when already rendered, queues behind an
// in-flight cycle, and otherwise returns a deferred that never resolves
// (explicit no-op, not a failure) unless forced. Keys in Keep flag those
// children to preserve their live DOM across the next pass regardless of
// this view's current render state.
func (v *View) ReRender(opts ...ReRenderOptions) *async.Deferred {
	var o ReRenderOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	for _, key := range o.Keep {
		if child, ok := v.children[key]; ok {
			child.keepOnRender = true
		}
	}
	switch {
	case v.beingRendered:
		return v.queueRender()
	case v.rendered || o.Force:
		return v.Render()
	default:
		return async.NewDeferred()
	}
}

// CancelRender requests cooperative cancellation of the in-flight render.
// The request is observed at the single commit checkpoint; preparation
// already under way (template fetch, prepare hook) is not aborted, only
// the eventual display commit is suppressed.
func (v *View) CancelRender() {
	if v.beingRendered {
		v.renderCanceled = true
	}
}

// queueRender registers a re-render to start right after the in-flight
// cycle's after-render fires (or after its cancellation unwinds).
func (v *View) queueRender() *async.Deferred {
	if v.queuedRender == nil {
		v.queuedRender = async.NewDeferred()
	}
	return v.queuedRender
}

func (v *View) startQueuedRender() {
	queued := v.queuedRender
	if queued == nil {
		return
	}
	v.queuedRender = nil
	v.Render().Then(func(res interface{}) {
		queued.Resolve(res)
	})
}

// prepare runs steps 1-7 of the pipeline without committing: flags and the
// render event, the async prepare hook barrier, concurrent child
// preparation, data composition, template resolution, markup rendering and
// child splicing. Resolves to the assembled fragment.
func (v *View) prepare() *async.Deferred {
	done := async.NewDeferred()

	// Step 1: reset cycle flags, mark in progress, announce.
	v.rendered = false
	v.fullyRendered = false
	v.beingRendered = true
	v.Emit(EventRender, v)

	// Step 2: nothing below starts before the prepare hook resolves.
	barrier := async.Resolved(nil)
	if v.hooks.Prepare != nil {
		if d, ok := v.hooks.Prepare(v).(*async.Deferred); ok && d != nil {
			barrier = d
		}
	}

	barrier.Then(func(interface{}) {
		v.prepareChildren().Then(func(interface{}) {
			data := v.composeData()
			v.resolveTemplate().Then(func(tpl interface{}) {
				fragment := v.renderMarkup(tpl, data)
				v.spliceChildren(fragment)
				done.Resolve(&preparedRender{fragment: fragment})
			})
		})
	})
	return done
}

// prepareChildren fans out preparation across every currently-set child
// and fans back in. Children flagged do-not-auto-render or keep contribute
// a placeholder (for keep, their existing element content is physically
// moved so it survives the parent's re-render); the rest prepare their own
// content concurrently with no ordering among siblings.
func (v *View) prepareChildren() *async.Deferred {
	v.prepared = v.prepared[:0]
	var pending []*async.Deferred

	for _, key := range v.ChildKeys() {
		child := v.children[key]
		switch {
		case child.keepOnRender:
			pc := &preparedChild{view: child, keep: true}
			if child.isComponent && child.element != nil {
				pc.restoreParent = child.element.Parent
				pc.restoreBefore = child.element.NextSibling
			}
			pc.fragment = child.preserveContent()
			for c := pc.fragment.FirstChild; c != nil; c = c.NextSibling {
				pc.preserved = append(pc.preserved, c)
			}
			v.prepared = append(v.prepared, pc)
		case child.notToRender:
			v.prepared = append(v.prepared, &preparedChild{view: child})
		default:
			pc := &preparedChild{view: child}
			v.prepared = append(v.prepared, pc)
			d := async.NewDeferred()
			pending = append(pending, d)
			child.prepare().Then(func(res interface{}) {
				pc.fragment = res.(*preparedRender).fragment
				d.Resolve(nil)
			})
		}
	}
	return async.All(pending...)
}

// preserveContent lifts the child's live content out of the host document
// into a detached container so the parent's re-render cannot destroy it.
func (v *View) preserveContent() *html.Node {
	container := dom.NewElement("div")
	if v.element == nil {
		return container
	}
	if v.isComponent {
		dom.Detach(v.element)
		container.AppendChild(v.element)
	} else {
		dom.MoveChildren(v.element, container)
	}
	return container
}

// composeData builds the template data: the view's own data (value or
// zero-argument supplier) shallow-merged with one placeholder marker per
// child key, the bound model and collection when present, and a
// self-reference. The ComposeData hook may mutate the map synchronously.
func (v *View) composeData() map[string]interface{} {
	data := make(map[string]interface{})

	raw := v.data
	if fn, ok := raw.(func() interface{}); ok {
		raw = fn()
	}
	switch m := raw.(type) {
	case nil:
	case map[string]interface{}:
		for k, val := range m {
			data[k] = val
		}
	case Options:
		for k, val := range m {
			data[k] = val
		}
	default:
		data["data"] = m
	}

	for key, child := range v.children {
		data[key] = SlotMarker(child.id)
	}
	if v.model != nil {
		data["model"] = v.model
	}
	if v.collection != nil {
		data["collection"] = v.collection
	}
	data["view"] = v

	if v.hooks.ComposeData != nil {
		v.hooks.ComposeData(v, data)
	}
	return data
}

// resolveTemplate picks the template for this cycle, in priority order: a
// precompiled form cached on the view, literal template content set
// directly, a precompiled entry by name from the cache supplied at
// initialization, and finally the templator collaborator, which may
// resolve asynchronously. Resolves to a Template or nil.
func (v *View) resolveTemplate() *async.Deferred {
	if v.compiled != nil {
		return async.Resolved(v.compiled)
	}
	if v.templateContent != "" {
		if v.deps.Templator != nil {
			tpl, err := v.deps.Templator.CompileTemplate(v.templateContent)
			if err != nil {
				v.reportf("render", verrors.SeverityError, "compiling template content: %v", err)
				return async.Resolved(nil)
			}
			v.compiled = tpl
			return async.Resolved(tpl)
		}
		return async.Resolved(nil)
	}
	if v.templateName != "" && v.deps.Precompiled != nil {
		if tpl, ok := v.deps.Precompiled[v.templateName]; ok {
			return async.Resolved(tpl)
		}
	}
	if v.deps.Templator != nil && (v.templateName != "" || v.options[OptLayout] != nil) {
		done := async.NewDeferred()
		v.deps.Templator.GetTemplate(v.templateName, v.options, func(tpl Template) {
			if tpl != nil && v.deps.Templator.Precompilable() {
				v.compiled = tpl
			}
			done.Resolve(tpl)
		})
		return done
	}
	return async.Resolved(nil)
}

// renderMarkup invokes the renderer collaborator and parses the produced
// markup into a detached fragment. A view with no resolvable template
// renders its child markers in declaration order so container views still
// compose.
func (v *View) renderMarkup(tpl interface{}, data map[string]interface{}) *html.Node {
	var markup string
	if tpl != nil && v.deps.Renderer != nil {
		out, err := v.deps.Renderer.Render(tpl, data)
		if err != nil {
			v.reportf("render", verrors.SeverityError, "renderer failed: %v", err)
		} else {
			markup = out
		}
	}
	if tpl == nil {
		for _, key := range v.childMarkerOrder() {
			if child, ok := v.children[key]; ok {
				markup += SlotMarker(child.id)
			}
		}
	}
	fragment, err := dom.ParseFragment(markup)
	if err != nil {
		v.reportf("render", verrors.SeverityError, "parsing rendered markup: %v", err)
		return dom.NewElement("div")
	}
	return fragment
}

// childMarkerOrder lists child keys in declaration order, with undeclared
// (directly assigned) keys appended.
func (v *View) childMarkerOrder() []string {
	seen := make(map[string]bool, len(v.specOrder))
	order := make([]string, 0, len(v.children))
	for _, key := range v.specOrder {
		if _, ok := v.children[key]; ok {
			seen[key] = true
			order = append(order, key)
		}
	}
	for _, key := range v.ChildKeys() {
		if !seen[key] {
			order = append(order, key)
		}
	}
	return order
}

// spliceChildren locates each prepared child's placeholder inside the
// fragment and splices its content in. A component child replaces the
// placeholder element wholesale and the new root receives the owning id; a
// normal child replaces the placeholder with its content's child nodes and
// the surviving parent element receives the owning id. A placeholder
// absent from the produced markup drops the child's content silently.
// Placeholder-only children keep their slot element as a mount point.
func (v *View) spliceChildren(fragment *html.Node) {
	for _, pc := range v.prepared {
		slot := findSlot(fragment, pc.view.id)
		if slot == nil {
			continue
		}
		if pc.fragment == nil {
			// Placeholder-only: the slot stays, carrying the child id.
			continue
		}
		if pc.view.isComponent {
			root := dom.FirstElementChild(pc.fragment)
			if root == nil {
				dom.Detach(slot)
				continue
			}
			container := pc.fragment
			dom.ReplaceNode(slot, root)
			dom.SetAttr(root, DataAttr, pc.view.id)
			pc.view.remapPendingContainer(container, root)
			pc.view.pendingElement = root
		} else {
			parent := slot.Parent
			container := pc.fragment
			dom.ReplaceWithChildren(slot, pc.fragment)
			if parent != nil {
				dom.SetAttr(parent, DataAttr, pc.view.id)
				pc.view.remapPendingContainer(container, parent)
				pc.view.pendingElement = parent
			}
		}
	}
}

// remapPendingContainer redirects prepared descendants whose pending
// element was this view's scratch container to the element that survived
// the splice. A marker at the top level of a template has no surviving
// element of its own until the content lands in its final parent.
func (v *View) remapPendingContainer(old, replacement *html.Node) {
	for _, pc := range v.prepared {
		if pc.view.pendingElement == old {
			pc.view.pendingElement = replacement
		}
	}
}

func findSlot(fragment *html.Node, id string) *html.Node {
	var found *html.Node
	var visit func(n *html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == SlotTag {
			if val, ok := dom.Attr(n, DataAttr); ok && val == id {
				found = n
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(fragment)
	return found
}

// commit is steps 8-9: the single cancellation checkpoint, the in-place
// display mutation, handler re-binding, downward after-render propagation
// and the view's own after-render.
func (v *View) commit(prep *preparedRender) {
	// Step 8: sole cancellation observation point. Prepared children are
	// unwound, not committed: preserved keep-content goes back into the
	// live display, and each child's cycle state resets so later renders
	// are not queued behind a commit that never happened.
	if v.renderCanceled {
		v.renderCanceled = false
		v.beingRendered = false
		for _, pc := range v.prepared {
			pc.view.unwindAsChild(pc)
		}
		v.prepared = v.prepared[:0]
		v.startQueuedRender()
		return
	}

	if v.element == nil {
		v.bind()
	}
	if v.element == nil {
		// Non-fatal: rendering proceeds with no element bound.
		v.reportf("render", verrors.SeverityWarning,
			"no element resolvable for selector %q", v.ResolvedSelector())
	} else if v.isComponent {
		if root := dom.FirstElementChild(prep.fragment); root != nil {
			dom.SetAttr(root, DataAttr, v.id)
			dom.ReplaceNode(v.element, root)
			v.element = root
			v.remapPendingContainer(prep.fragment, v.element)
		} else {
			v.reportf("render", verrors.SeverityWarning,
				"component view produced no root element")
		}
	} else {
		dom.Empty(v.element)
		dom.MoveChildren(prep.fragment, v.element)
		dom.SetAttr(v.element, DataAttr, v.id)
		v.remapPendingContainer(prep.fragment, v.element)
	}

	v.rendered = true
	v.beingRendered = false

	// Step 9: rebind delegated handlers, propagate after-render downward,
	// then finish this view's own cycle.
	v.bindHandlers()
	for _, pc := range v.prepared {
		pc.view.finishAsChild(pc)
	}
	v.prepared = v.prepared[:0]

	if v.hooks.AfterRender != nil {
		v.hooks.AfterRender(v)
	}
	v.Emit(EventAfterRender, v)
	v.fullyRendered = true
	v.startQueuedRender()
}

// finishAsChild completes a child's cycle after its parent committed the
// fragment that contains its content.
func (v *View) finishAsChild(pc *preparedChild) {
	if v.removed {
		return
	}
	if v.pendingElement != nil {
		v.element = v.pendingElement
		v.pendingElement = nil
	}
	if pc.keep {
		// Preserved DOM: not re-rendered, only re-attached.
		v.keepOnRender = false
		return
	}
	if pc.fragment == nil {
		// Skipped (do-not-auto-render) child: no cycle to finish.
		return
	}

	v.rendered = true
	v.beingRendered = false
	v.renderCanceled = false
	v.bindHandlers()
	for _, nested := range v.prepared {
		nested.view.finishAsChild(nested)
	}
	v.prepared = v.prepared[:0]

	if v.hooks.AfterRender != nil {
		v.hooks.AfterRender(v)
	}
	v.Emit(EventAfterRender, v)
	v.fullyRendered = true
	v.startQueuedRender()
}

// unwindAsChild rolls a prepared child back after its parent canceled the
// commit that would have carried its content.
func (v *View) unwindAsChild(pc *preparedChild) {
	if v.removed {
		return
	}
	v.pendingElement = nil
	if pc.keep {
		v.keepOnRender = false
		v.restorePreserved(pc)
		return
	}
	if pc.fragment == nil {
		// Skipped (do-not-auto-render) child: no cycle to unwind.
		return
	}

	v.beingRendered = false
	v.renderCanceled = false
	for _, nested := range v.prepared {
		nested.view.unwindAsChild(nested)
	}
	v.prepared = v.prepared[:0]
	v.startQueuedRender()
}

// restorePreserved puts content lifted by preserveContent back where it
// came from: a component element is reinserted at its recorded position, a
// normal child's content moves back into its still-attached element. The
// splice may already have carried the preserved nodes into the abandoned
// fragment, so they are detached from wherever they sit now.
func (v *View) restorePreserved(pc *preparedChild) {
	if v.element == nil {
		return
	}
	if v.isComponent {
		if pc.restoreParent != nil {
			dom.Detach(v.element)
			pc.restoreParent.InsertBefore(v.element, pc.restoreBefore)
		}
		return
	}
	for _, n := range pc.preserved {
		dom.Detach(n)
		v.element.AppendChild(n)
	}
}

// bindHandlers resolves the declared interaction-handler map against the
// registered methods and attaches it to the live element. A declared name
// with no matching method is reported and skipped.
func (v *View) bindHandlers() {
	if len(v.handlerDecls) == 0 {
		return
	}
	bound := make(map[string]HandlerFunc, len(v.handlerDecls))
	for decl, h := range v.handlerDecls {
		switch fn := h.(type) {
		case HandlerFunc:
			bound[decl] = fn
		case func(*View, ...interface{}):
			bound[decl] = fn
		case string:
			if m, ok := v.methods[fn]; ok {
				bound[decl] = m
			} else {
				v.reportf("handlers", verrors.SeverityWarning,
					"handler %q declared for %q has no matching method", fn, decl)
			}
		default:
			v.reportf("handlers", verrors.SeverityWarning,
				"handler for %q has unsupported type %T", decl, h)
		}
	}
	v.boundHandlers = bound
}

// Handlers returns the handler map bound at the last render commit.
func (v *View) Handlers() map[string]HandlerFunc {
	return v.boundHandlers
}

// IsRendered reports whether a render has committed.
func (v *View) IsRendered() bool { return v.rendered }

// IsBeingRendered reports whether a render cycle is in flight.
func (v *View) IsBeingRendered() bool { return v.beingRendered }

// IsFullyRendered reports whether the last cycle completed through
// after-render.
func (v *View) IsFullyRendered() bool { return v.fullyRendered }
