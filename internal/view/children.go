package view

import (
	"fmt"
	"sort"

	verrors "github.com/conneroisu/viewtree/internal/errors"
)

// pendingAssignment tracks one in-flight child construction per key. A
// later clear or reassignment of the key flags it superseded; the eventual
// result is then discarded instead of attached.
type pendingAssignment struct {
	key        string
	superseded bool
}

func (v *View) supersedePending(key string) {
	if p, ok := v.pending[key]; ok {
		p.superseded = true
		delete(v.pending, key)
	}
}

func (v *View) trackPending(key string) *pendingAssignment {
	v.supersedePending(key)
	p := &pendingAssignment{key: key}
	v.pending[key] = p
	return p
}

func (v *View) settlePending(p *pendingAssignment) {
	if cur, ok := v.pending[p.key]; ok && cur == p {
		delete(v.pending, p.key)
	}
}

// loadChildren merges layout-derived and explicitly-declared child specs
// into a de-duplicated ordered list, records each resolved spec for later
// selector lookup, and fans out their resolution. Loader completion flips
// the layout-loaded readiness input and may be synchronous when there is
// nothing to resolve.
func (v *View) loadChildren() error {
	var decls []ChildDecl
	if layout, ok := v.options[OptLayout]; ok && layout != nil {
		if v.deps.Layouter == nil {
			return fmt.Errorf("%w: layout declared but no layouter wired", verrors.ErrBadLayout)
		}
		found, err := v.deps.Layouter.FindNestedViews(layout)
		if err != nil {
			return fmt.Errorf("%w: %v", verrors.ErrBadLayout, err)
		}
		decls = found
	}

	explicit := v.explicitDecls()

	// Layout order first; explicit declarations override per key;
	// explicit-only keys are appended in stable order.
	merged := make([]ChildDecl, 0, len(decls)+len(explicit))
	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		if d.Name == "" || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		if ex, ok := explicit[d.Name]; ok {
			d = d.merge(ex)
		}
		merged = append(merged, d)
	}
	extra := make([]string, 0, len(explicit))
	for name := range explicit {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		merged = append(merged, explicit[name])
	}

	v.loaderTotal = len(merged)
	for i := range merged {
		spec := merged[i]
		v.declaredSpecs[spec.Name] = &spec
		v.specOrder = append(v.specOrder, spec.Name)
	}

	if v.loaderTotal == 0 {
		v.layoutLoaded = true
		return nil
	}
	for _, name := range v.specOrder {
		if err := v.resolveSpec(v.declaredSpecs[name]); err != nil {
			return err
		}
	}
	return nil
}

// explicitDecls normalizes the OptViews map into ChildDecls.
func (v *View) explicitDecls() map[string]ChildDecl {
	out := make(map[string]ChildDecl)
	raw, ok := v.options[OptViews].(map[string]interface{})
	if !ok {
		return out
	}
	for name, val := range raw {
		out[name] = declFromValue(name, val)
	}
	return out
}

func declFromValue(name string, val interface{}) ChildDecl {
	switch d := val.(type) {
	case ChildDecl:
		d.Name = name
		return d
	case *ChildDecl:
		out := *d
		out.Name = name
		return out
	case *View:
		return ChildDecl{Name: name, View: d}
	case string:
		return ChildDecl{Name: name, View: d}
	case bool:
		return ChildDecl{Name: name, View: d}
	case map[string]interface{}:
		decl := ChildDecl{Name: name, View: d["view"]}
		if s, ok := d["template"].(string); ok {
			decl.Template = s
		}
		if s, ok := d["selector"].(string); ok {
			decl.Selector = s
		}
		if s, ok := d["fullSelector"].(string); ok {
			decl.FullSelector = s
		}
		if b, ok := d["notToRender"].(bool); ok {
			decl.NotToRender = b
		}
		if o, ok := d["options"].(Options); ok {
			decl.Options = o
		} else if o, ok := d["options"].(map[string]interface{}); ok {
			decl.Options = Options(o)
		}
		return decl
	default:
		return ChildDecl{Name: name}
	}
}

// resolveSpec resolves one child spec. Skips count as immediately loaded;
// instances attach once their own initialization completes; type names and
// template-only declarations go through the factory.
func (v *View) resolveSpec(spec *ChildDecl) error {
	switch view := spec.View.(type) {
	case bool:
		if view && spec.Template != "" {
			return v.createFromSpec(spec, v.defaultChildType)
		}
		v.childSpecResolved()
		return nil
	case *View:
		return v.assignInstance(spec, view)
	case string:
		return v.createFromSpec(spec, view)
	case nil:
		if spec.Template != "" || v.defaultChildType != "" {
			return v.createFromSpec(spec, v.defaultChildType)
		}
		v.childSpecResolved()
		return nil
	default:
		v.reportf("load", verrors.SeverityWarning,
			"child %q declares unsupported view value %T; skipped", spec.Name, spec.View)
		v.childSpecResolved()
		return nil
	}
}

func (v *View) assignInstance(spec *ChildDecl, instance *View) error {
	if !instance.initialized && !instance.removed {
		if err := instance.Init(v.deps); err != nil {
			return err
		}
	}
	p := v.trackPending(spec.Name)
	instance.initDone.Then(func(interface{}) {
		v.settlePending(p)
		if p.superseded || v.removed {
			if !instance.removed {
				instance.Remove()
			}
		} else {
			v.SetChild(spec.Name, instance)
		}
		v.childSpecResolved()
	})
	return nil
}

func (v *View) createFromSpec(spec *ChildDecl, typeName string) error {
	opts := v.childOptions(spec)
	p := v.trackPending(spec.Name)
	err := v.deps.Factory.Create(typeName, opts, func(child *View) {
		v.completeAssignment(p, spec.Name, child, nil)
		v.childSpecResolved()
	})
	if err != nil {
		v.settlePending(p)
		return fmt.Errorf("creating child %q: %w", spec.Name, err)
	}
	return nil
}

// childOptions merges the option set handed to the factory for a declared
// child: the spec's own options, its selector-relevant fields, the
// allow-listed pass-through keys, and the owner's bound model and
// collection when present.
func (v *View) childOptions(spec *ChildDecl) Options {
	opts := Options{}
	for k, val := range spec.Options {
		opts[k] = val
	}
	if spec.Template != "" && opts.str(OptTemplate) == "" {
		opts[OptTemplate] = spec.Template
	}
	if spec.Selector != "" && opts.str(OptSelector) == "" {
		opts[OptSelector] = spec.Selector
	}
	if spec.FullSelector != "" && opts.str(OptFullSelector) == "" {
		opts[OptFullSelector] = spec.FullSelector
	}
	if spec.NotToRender {
		opts[OptNotToRender] = true
	}
	for _, key := range v.forwardKeys {
		if _, present := opts[key]; !present {
			if val, ok := v.options[key]; ok {
				opts[key] = val
			}
		}
	}
	if v.model != nil {
		if _, present := opts[OptModel]; !present {
			opts[OptModel] = v.model
		}
	}
	if v.collection != nil {
		if _, present := opts[OptCollection]; !present {
			opts[OptCollection] = v.collection
		}
	}
	return opts
}

// completeAssignment finishes a pending child construction: superseded
// results are discarded (removed, never attached); otherwise the child is
// attached before or after the caller's completion callback per the
// attach-before-callback option, defaulting to attach-first only once the
// owner has itself rendered.
func (v *View) completeAssignment(p *pendingAssignment, key string, child *View, onDone func(*View)) {
	v.settlePending(p)
	if p.superseded || v.removed {
		if child != nil && !child.removed {
			child.Remove()
		}
		return
	}
	if child == nil {
		return
	}
	attachFirst := v.attachBeforeCallback || v.rendered
	if attachFirst {
		v.SetChild(key, child)
	}
	if onDone != nil {
		onDone(child)
	}
	if !attachFirst {
		v.SetChild(key, child)
	}
}

// CreateChild builds a child through the factory and assigns it under key.
// The returned error is fatal (unresolvable type name). onDone, when
// non-nil, runs once the construction completes; its ordering relative to
// attachment follows the attach-before-callback option.
func (v *View) CreateChild(key, typeName string, opts Options, onDone func(*View)) error {
	if v.removed {
		return verrors.ErrViewRemoved
	}
	if opts == nil {
		opts = Options{}
	}
	p := v.trackPending(key)
	err := v.deps.Factory.Create(typeName, opts, func(child *View) {
		v.completeAssignment(p, key, child, onDone)
	})
	if err != nil {
		v.settlePending(p)
		return fmt.Errorf("creating child %q: %w", key, err)
	}
	return nil
}

// childSpecResolved is the loader's fan-in: once every initiated spec has
// resolved, the layout-loaded readiness input flips.
func (v *View) childSpecResolved() {
	v.loaderResolved++
	if !v.layoutLoaded && v.loaderResolved >= v.loaderTotal {
		v.layoutLoaded = true
		v.evaluateReadiness()
	}
}
