// Package factory implements the view factory collaborator: a registry of
// named view constructors. Child declarations resolve type names through
// it during nested-view loading.
package factory

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/cases"

	verrors "github.com/conneroisu/viewtree/internal/errors"
	"github.com/conneroisu/viewtree/internal/view"
)

// Constructor builds a view from raw options. The registry initializes the
// result before handing it out.
type Constructor func(options view.Options) *view.View

// EventType represents the type of registry event.
type EventType int

const (
	EventTypeRegistered EventType = iota
	EventTypeUnregistered
)

// Event represents a change in the constructor registry.
type Event struct {
	Type      EventType
	TypeName  string
	Timestamp time.Time
}

// Registry manages registered view constructors. It implements
// view.Factory. Type names are case-folded, so "HeaderBar" and "headerbar"
// resolve identically.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	defaultType  string
	deps         *view.Deps
	watchers     []chan Event
	folder       cases.Caser
}

// NewRegistry creates an empty constructor registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		folder:       cases.Fold(),
	}
}

// SetDeps wires the collaborator set handed to every view the registry
// creates. Called once the Deps value (which carries this registry as its
// Factory) has been assembled.
func (r *Registry) SetDeps(deps *view.Deps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = deps
}

// SetDefaultType names the constructor used when a declaration carries no
// type name.
func (r *Registry) SetDefaultType(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultType = r.folder.String(name)
}

// Register adds or replaces a constructor under name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	r.constructors[r.folder.String(name)] = ctor
	watchers := append([]chan Event(nil), r.watchers...)
	r.mu.Unlock()

	notify(watchers, Event{Type: EventTypeRegistered, TypeName: name, Timestamp: time.Now()})
}

// Unregister removes a constructor. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	key := r.folder.String(name)
	r.mu.Lock()
	_, exists := r.constructors[key]
	delete(r.constructors, key)
	watchers := append([]chan Event(nil), r.watchers...)
	r.mu.Unlock()

	if exists {
		notify(watchers, Event{Type: EventTypeUnregistered, TypeName: name, Timestamp: time.Now()})
	}
}

// Has reports whether name resolves to a registered constructor.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[r.folder.String(name)]
	return ok
}

// TypeNames returns the registered type names, unordered.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered constructors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.constructors)
}

// Watch returns a channel that receives registry events.
func (r *Registry) Watch() <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Event, 16)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *Registry) UnWatch(ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.watchers {
		if w == ch {
			close(w)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			return
		}
	}
}

func notify(watchers []chan Event, ev Event) {
	for _, w := range watchers {
		select {
		case w <- ev:
		default:
			// Skip if channel is full.
		}
	}
}

// Create implements view.Factory: it instantiates the named type (or the
// default type for an empty name), initializes it with the wired deps, and
// invokes onDone with the result. An unresolvable type name is fatal.
func (r *Registry) Create(typeName string, options view.Options, onDone func(*view.View)) error {
	r.mu.RLock()
	key := r.folder.String(typeName)
	if key == "" {
		key = r.defaultType
	}
	ctor, ok := r.constructors[key]
	deps := r.deps
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", verrors.ErrUnknownType, typeName)
	}

	v := ctor(options)
	if v == nil {
		return fmt.Errorf("constructor for %q returned no view", typeName)
	}
	if deps != nil {
		if err := v.Init(deps); err != nil {
			return fmt.Errorf("initializing %q: %w", typeName, err)
		}
	}
	if onDone != nil {
		onDone(v)
	}
	return nil
}

// Generic is the plain view constructor: it builds an undifferentiated
// view straight from its options. Registries usually install it as the
// default type.
func Generic(options view.Options) *view.View {
	return view.New(options)
}
