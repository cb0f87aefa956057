// Package view implements the view-composition and rendering-lifecycle
// engine: a tree of renderable views, each owning named children, driven
// through an asynchronous become-ready-then-render protocol that commits
// consistent patches into a host HTML document.
//
// The engine is cooperatively scheduled. It never spawns goroutines;
// asynchrony is deferred continuation through internal/async, and external
// collaborators (templator, factory) may resolve their callbacks later.
package view

import (
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/conneroisu/viewtree/internal/async"
	"github.com/conneroisu/viewtree/internal/events"
	verrors "github.com/conneroisu/viewtree/internal/errors"
)

// DataAttr is the attribute carrying a view's id on its bound element and
// on placeholder slots.
const DataAttr = "data-view-id"

// SlotTag is the placeholder element standing in for a child during
// template assembly.
const SlotTag = "view-slot"

var idCounter uint64

func nextID() string {
	return fmt.Sprintf("view-%d", atomic.AddUint64(&idCounter, 1))
}

// View is a composable unit owning a host-document subtree and a map of
// named children. Construct with New, then wire collaborators with Init.
type View struct {
	id  string
	key string // key under parent, "" for a root

	emitter  events.Emitter
	listener events.Listener

	parent   *View // non-owning back-reference
	children map[string]*View
	path     string

	options Options
	deps    *Deps
	hooks   Hooks

	data       interface{} // value or func() interface{}
	model      interface{}
	collection interface{}

	selector     string
	fullSelector string

	templateName    string
	templateContent string
	compiled        Template // cached precompiled form

	isComponent  bool
	notToRender  bool
	keepOnRender bool

	attachBeforeCallback bool
	defaultChildType     string
	forwardKeys          []string

	handlerDecls  map[string]interface{}
	boundHandlers map[string]HandlerFunc
	methods       map[string]HandlerFunc

	element        *html.Node
	pendingElement *html.Node
	bindQueued     bool

	// render state
	rendered       bool
	beingRendered  bool
	fullyRendered  bool
	removed        bool
	renderCanceled bool
	queuedRender   *async.Deferred
	prepared       []*preparedChild

	// readiness
	ready            bool
	holdReady        bool
	waitKeys         []string
	outstandingWaits int
	readyConditions  []func() bool
	layoutLoaded     bool

	// child loading
	declaredSpecs  map[string]*ChildDecl
	specOrder      []string
	pending        map[string]*pendingAssignment
	loaderTotal    int
	loaderResolved int

	initialized bool
	initDone    *async.Deferred
}

// New constructs a view from raw options. Configuration is only applied
// during Init so that callers may still adjust options and hooks between
// the two steps.
func New(options Options) *View {
	if options == nil {
		options = Options{}
	}
	return &View{
		id:            nextID(),
		options:       options,
		children:      make(map[string]*View),
		declaredSpecs: make(map[string]*ChildDecl),
		pending:       make(map[string]*pendingAssignment),
		initDone:      async.NewDeferred(),
	}
}

// SetHooks installs lifecycle hooks. Must be called before Init.
func (v *View) SetHooks(h Hooks) {
	v.hooks = h
}

// Init wires collaborators, applies options, merges child declarations and
// begins asynchronous child loading. A layouter returning malformed output
// or a factory failing to resolve a type name is fatal and reported here.
func (v *View) Init(deps *Deps) error {
	if v.removed {
		return verrors.ErrViewRemoved
	}
	if v.initialized {
		return nil
	}
	v.deps = deps.normalized()
	v.applyOptions()

	if err := v.loadChildren(); err != nil {
		return err
	}

	v.initialized = true
	v.initDone.Resolve(v)
	v.evaluateReadiness()
	return nil
}

func (v *View) applyOptions() {
	o := v.options
	v.selector = o.str(OptSelector)
	v.fullSelector = o.str(OptFullSelector)
	v.templateName = o.str(OptTemplate)
	v.templateContent = o.str(OptTemplateContent)
	v.isComponent = o.boolean(OptComponent)
	v.notToRender = o.boolean(OptNotToRender)
	v.attachBeforeCallback = o.boolean(OptAttachBeforeCallback)
	v.defaultChildType = o.str(OptDefaultChildType)
	v.data = o[OptData]
	v.model = o[OptModel]
	v.collection = o[OptCollection]

	if keys, ok := o[OptForward].([]string); ok {
		v.forwardKeys = keys
	}
	if handlers, ok := o[OptHandlers].(map[string]interface{}); ok {
		v.handlerDecls = handlers
	}
}

// ID returns the process-unique view id.
func (v *View) ID() string { return v.id }

// Key returns the key this view is attached under, or "" for a root.
func (v *View) Key() string { return v.key }

// Path returns the hierarchical path: the parent's path + "/" + key,
// recomputed on every (re)attachment. A root's path is "".
func (v *View) Path() string { return v.path }

// Parent returns the owning view, or nil for a root.
func (v *View) Parent() *View { return v.parent }

// Element returns the bound host-document element, or nil while unbound.
func (v *View) Element() *html.Node { return v.element }

// IsComponent reports whether this view substitutes a single root element
// wholesale on render.
func (v *View) IsComponent() bool { return v.isComponent }

// IsRemoved reports whether the view has been terminally removed.
func (v *View) IsRemoved() bool { return v.removed }

// Model returns the bound model, if any.
func (v *View) Model() interface{} { return v.model }

// Collection returns the bound collection, if any.
func (v *View) Collection() interface{} { return v.collection }

// RawOptions returns the raw options the view was constructed with.
func (v *View) RawOptions() Options { return v.options }

// On registers an event handler; part of events.Observable.
func (v *View) On(event string, fn events.Handler) *events.Subscription {
	return v.emitter.On(event, fn)
}

// Once registers a one-shot event handler.
func (v *View) Once(event string, fn events.Handler) *events.Subscription {
	return v.emitter.Once(event, fn)
}

// Off removes an event subscription; part of events.Observable.
func (v *View) Off(sub *events.Subscription) {
	v.emitter.Off(sub)
}

// Emit fires an event to this view's subscribers.
func (v *View) Emit(event string, args ...interface{}) {
	v.emitter.Emit(event, args...)
}

// ListenTo subscribes to another observable and records the subscription
// for removal-time cleanup.
func (v *View) ListenTo(source events.Observable, event string, fn events.Handler) *events.Subscription {
	return v.listener.ListenTo(source, event, fn)
}

// RegisterMethod names a handler so interaction declarations can refer to
// it by name. A declared name with no registered method is reported and
// skipped at bind time.
func (v *View) RegisterMethod(name string, fn HandlerFunc) {
	if v.methods == nil {
		v.methods = make(map[string]HandlerFunc)
	}
	v.methods[name] = fn
}

// SetChild attaches child under key. Selector priority: the explicit
// argument, then the declared spec for the key, then the child's own
// already-set selector. An existing child under key is cleared (fully
// removed) first; an unresolved pending assignment for key is superseded.
// When the owner is live the child binds its element immediately,
// otherwise binding waits for the owner's next render commit.
func (v *View) SetChild(key string, child *View, selector ...string) {
	if v.removed || child == nil {
		return
	}
	v.supersedePending(key)
	if _, ok := v.children[key]; ok {
		v.clearChildNode(key)
	}

	// Reassignment detaches from any previous parent first.
	if child.parent != nil && child.parent != v {
		child.parent.detachChild(child)
	}

	child.parent = v
	child.key = key
	v.children[key] = child
	child.inheritDeps(v)
	child.recomputePaths()

	switch {
	case len(selector) > 0 && selector[0] != "":
		child.selector = selector[0]
	case child.selector == "" && child.fullSelector == "":
		if spec, ok := v.declaredSpecs[key]; ok {
			if spec.FullSelector != "" {
				child.fullSelector = spec.FullSelector
			} else if spec.Selector != "" {
				child.selector = spec.Selector
			}
		}
	}

	if v.isLive() {
		child.bind()
	} else {
		child.bindInAdvance()
	}

	v.evaluateReadiness()
}

// GetChild returns the child attached under key, or nil.
func (v *View) GetChild(key string) *View {
	return v.children[key]
}

// HasChild reports whether key has an attached child.
func (v *View) HasChild(key string) bool {
	_, ok := v.children[key]
	return ok
}

// KeyFor returns the key child is attached under, or "".
func (v *View) KeyFor(child *View) string {
	for k, c := range v.children {
		if c == child {
			return k
		}
	}
	return ""
}

// ChildKeys returns the attached child keys in deterministic order.
func (v *View) ChildKeys() []string {
	keys := make([]string, 0, len(v.children))
	for k := range v.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ClearChild detaches and fully removes the child under key. A pending
// assignment for key is superseded so its eventual result is discarded.
func (v *View) ClearChild(key string) {
	v.supersedePending(key)
	v.clearChildNode(key)
}

func (v *View) clearChildNode(key string) {
	child, ok := v.children[key]
	if !ok {
		return
	}
	delete(v.children, key)
	child.parent = nil
	child.key = ""
	child.Remove()
}

// detachChild unlinks child without removing it; used when a view is
// reassigned to a new parent.
func (v *View) detachChild(child *View) {
	for k, c := range v.children {
		if c == child {
			delete(v.children, k)
			break
		}
	}
	child.parent = nil
	child.key = ""
}

func (v *View) inheritDeps(parent *View) {
	if v.deps == nil {
		v.deps = parent.deps
	}
}

// recomputePaths rebuilds the path for this view and its whole subtree.
func (v *View) recomputePaths() {
	if v.parent != nil {
		v.path = v.parent.path + "/" + v.key
	}
	for _, c := range v.children {
		c.recomputePaths()
	}
}

// isLive reports whether the view is attached to the host display with a
// committed render.
func (v *View) isLive() bool {
	return v.element != nil && v.rendered
}

// root returns the tree root.
func (v *View) root() *View {
	r := v
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (v *View) reportf(op string, severity verrors.Severity, format string, args ...interface{}) {
	if v.deps == nil {
		return
	}
	v.deps.Errors.Add(verrors.LifecycleError{
		ViewID:   v.id,
		Path:     v.path,
		Op:       op,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
	})
}
