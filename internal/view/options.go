package view

import (
	"github.com/conneroisu/viewtree/internal/dom"
	"github.com/conneroisu/viewtree/internal/errors"
	"github.com/conneroisu/viewtree/internal/logging"
)

// Options is the raw configuration bag a view is constructed with.
// Recognized keys are the Opt* constants; unrecognized keys are kept and
// may be forwarded to children via the OptForward allow-list.
type Options map[string]interface{}

// Recognized option keys.
const (
	// OptSelector is a selector relative to the parent's resolved one.
	OptSelector = "selector"
	// OptFullSelector is an absolute selector into the host document.
	OptFullSelector = "fullSelector"
	// OptForward lists option keys auto-forwarded to factory-built
	// children ([]string).
	OptForward = "forward"
	// OptData is the view's template data: a value or a func() interface{}.
	OptData = "data"
	// OptTemplate names the template to resolve through the templator.
	OptTemplate = "template"
	// OptTemplateContent is literal template source set directly on the view.
	OptTemplateContent = "templateContent"
	// OptViews maps child keys to explicit child declarations
	// (map[string]interface{} of ChildDecl, Options, *View, string, or bool).
	OptViews = "views"
	// OptLayout is the opaque layout declaration handed to the Layouter.
	OptLayout = "layout"
	// OptNotToRender marks the view as excluded from auto-render.
	OptNotToRender = "notToRender"
	// OptComponent marks a component view: its root is exactly one
	// element, substituted wholesale on render.
	OptComponent = "component"
	// OptModel is the bound model, treated as opaque.
	OptModel = "model"
	// OptCollection is the bound collection, treated as opaque.
	OptCollection = "collection"
	// OptHandlers maps "event selector" declarations to handler names or
	// HandlerFunc values.
	OptHandlers = "handlers"
	// OptAttachBeforeCallback attaches a created child to the child map
	// before the caller's completion callback runs.
	OptAttachBeforeCallback = "attachBeforeCallback"
	// OptDefaultChildType is the factory type used for layout slots that
	// declare neither a view nor a template.
	OptDefaultChildType = "defaultChildType"
)

// clone returns a shallow copy of o.
func (o Options) clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func (o Options) str(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

func (o Options) boolean(key string) bool {
	v, _ := o[key].(bool)
	return v
}

// HandlerFunc is a delegated interaction handler bound to a view's live
// element.
type HandlerFunc func(v *View, args ...interface{})

// Hooks are the overridable lifecycle extension points. All fields are
// optional. Prepare runs before template data is composed and may return a
// deferred the pipeline waits on; ComposeData may mutate the composed data
// synchronously at the last moment.
type Hooks struct {
	Prepare     func(v *View) interface{} // nil, or *async.Deferred to await
	ComposeData func(v *View, data map[string]interface{})
	AfterRender func(v *View)
	OnRemove    func(v *View)
	OnReady     func(v *View)
}

// Deps wires the external collaborators and ambient services a view tree
// uses. One Deps value is shared by every view in a tree; children inherit
// it on attachment.
type Deps struct {
	Templator Templator
	Renderer  Renderer
	Layouter  Layouter
	Factory   Factory

	// Document is the host display surface. May be nil, in which case
	// views render unbound and element resolution is reported non-fatally.
	Document *dom.Document

	// Precompiled is an optional template cache consulted by name before
	// the templator is asked.
	Precompiled map[string]Template

	Logger logging.Logger
	Errors *errors.Collector
}

func (d *Deps) normalized() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.Logger == nil {
		out.Logger = logging.NewNopLogger()
	}
	if out.Errors == nil {
		out.Errors = errors.NewCollector()
	}
	return out
}
