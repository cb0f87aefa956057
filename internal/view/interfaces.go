package view

// Template is an opaque compiled template form. The engine never inspects
// it; it only passes it between the Templator and the Renderer.
type Template interface{}

// Templator loads and compiles templates. GetTemplate may complete
// synchronously or later; onDone runs exactly once either way.
type Templator interface {
	GetTemplate(name string, layoutOptions Options, onDone func(Template))
	CompileTemplate(source string) (Template, error)
	Precompilable() bool
}

// Renderer turns a compiled template and composed data into markup.
type Renderer interface {
	Render(tpl Template, data map[string]interface{}) (string, error)
}

// Layouter resolves a layout declaration into the ordered list of nested
// view declarations it implies. A nil slice with a nil error means the
// layout declares no children; an error is fatal to initialization.
type Layouter interface {
	FindNestedViews(layout interface{}) ([]ChildDecl, error)
}

// Factory instantiates views by type name. onDone runs once with the
// created view after its initialization has been started. An unresolvable
// type name is fatal.
type Factory interface {
	Create(typeName string, options Options, onDone func(*View)) error
}

// ChildDecl declares a prospective nested view, as produced by a Layouter
// or by an explicit per-key declaration on the owning view.
//
// The View field selects how the child resolves:
//   - false: the slot is skipped and counts as immediately loaded
//   - true: skipped unless Template names a template, in which case the
//     child is built through the factory with a template-only option set
//   - *View: an already-constructed instance, attached via the assignment
//     path once its own initialization completes
//   - string: a type name resolved through the factory
//   - nil: Template (or the owner's default child type) decides, as for
//     true
type ChildDecl struct {
	Name         string
	View         interface{}
	Template     string
	Selector     string // relative to the parent's resolved selector
	FullSelector string
	Options      Options
	NotToRender  bool
}

// merge overlays an explicit declaration onto a layout-derived one for the
// same key. Fields the explicit declaration sets win; unset fields keep the
// layout's value.
func (d ChildDecl) merge(explicit ChildDecl) ChildDecl {
	out := d
	if explicit.View != nil {
		out.View = explicit.View
	}
	if explicit.Template != "" {
		out.Template = explicit.Template
	}
	if explicit.Selector != "" {
		out.Selector = explicit.Selector
	}
	if explicit.FullSelector != "" {
		out.FullSelector = explicit.FullSelector
	}
	if explicit.NotToRender {
		out.NotToRender = true
	}
	if len(explicit.Options) > 0 {
		if out.Options == nil {
			out.Options = Options{}
		}
		for k, v := range explicit.Options {
			out.Options[k] = v
		}
	}
	return out
}
