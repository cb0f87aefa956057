// Package errors defines the error values and the collector used by the
// view engine. Fatal conditions (malformed layout output, unresolvable
// type names) surface as returned errors; non-fatal lifecycle conditions
// (no element resolvable after render, declared handler with no method)
// are recorded on a collector and logged, and the render proceeds.
package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors for fatal engine conditions.
var (
	// ErrBadLayout reports a layouter that did not return a list of
	// nested view declarations.
	ErrBadLayout = errors.New("layouter did not return a list of nested views")

	// ErrUnknownType reports a child type name the factory cannot resolve.
	ErrUnknownType = errors.New("unknown view type")

	// ErrViewRemoved reports use of a view after its removal.
	ErrViewRemoved = errors.New("view has been removed")
)

// Severity classifies a lifecycle error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// LifecycleError records a non-fatal condition observed during a view's
// lifecycle, attributed to the view by id and path.
type LifecycleError struct {
	ViewID    string
	Path      string
	Op        string // "render", "bind", "handlers", ...
	Message   string
	Severity  Severity
	Timestamp time.Time
}

// Error implements the error interface.
func (le *LifecycleError) Error() string {
	return fmt.Sprintf("%s %s [%s]: %s: %s", le.ViewID, le.Path, le.Op, le.Severity, le.Message)
}

// Collector accumulates lifecycle errors across a view tree. Safe for
// concurrent use.
type Collector struct {
	mu      sync.RWMutex
	entries []LifecycleError
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a lifecycle error, stamping it with the current time.
func (c *Collector) Add(e LifecycleError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Timestamp = time.Now()
	c.entries = append(c.entries, e)
}

// All returns a copy of every recorded error.
func (c *Collector) All() []LifecycleError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LifecycleError, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByView returns the recorded errors attributed to the given view id.
func (c *Collector) ByView(viewID string) []LifecycleError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []LifecycleError
	for _, e := range c.entries {
		if e.ViewID == viewID {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any entry of SeverityError has been recorded.
func (c *Collector) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of recorded entries.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all recorded entries.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
}
