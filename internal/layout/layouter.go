// Package layout implements the layouter collaborator: it resolves layout
// declarations into the ordered nested-view declarations they imply.
// Layouts are YAML documents, loaded by name from a directory or handed in
// pre-parsed.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/viewtree/internal/view"
)

// decl is the YAML shape of one nested-view declaration.
type decl struct {
	Name         string                 `yaml:"name"`
	View         interface{}            `yaml:"view"`
	Template     string                 `yaml:"template"`
	Selector     string                 `yaml:"selector"`
	FullSelector string                 `yaml:"fullSelector"`
	Options      map[string]interface{} `yaml:"options"`
	NotToRender  bool                   `yaml:"notToRender"`
}

// Document is a parsed layout file.
type Document struct {
	Views []decl `yaml:"views"`
}

// Layouter resolves layout declarations. It implements view.Layouter.
//
// Accepted declaration forms:
//   - string: a layout name, loaded from "<dir>/<name>.yml" (or .yaml) and
//     cached;
//   - []view.ChildDecl: passed through;
//   - []interface{}: a pre-parsed YAML list of declaration mappings.
//
// Anything else is malformed and fatal to the caller's initialization.
type Layouter struct {
	mu    sync.RWMutex
	dir   string
	cache map[string][]view.ChildDecl
}

// NewLayouter creates a layouter loading named layouts from dir.
func NewLayouter(dir string) *Layouter {
	return &Layouter{
		dir:   dir,
		cache: make(map[string][]view.ChildDecl),
	}
}

// FindNestedViews resolves a layout declaration to its ordered list of
// nested-view declarations.
func (l *Layouter) FindNestedViews(layoutDecl interface{}) ([]view.ChildDecl, error) {
	switch lay := layoutDecl.(type) {
	case string:
		return l.load(lay)
	case []view.ChildDecl:
		return lay, nil
	case []interface{}:
		return fromList(lay)
	default:
		return nil, fmt.Errorf("layout declaration %T is not a name or a list", layoutDecl)
	}
}

// Invalidate drops the cached resolution for a named layout.
func (l *Layouter) Invalidate(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, name)
}

func (l *Layouter) load(name string) ([]view.ChildDecl, error) {
	l.mu.RLock()
	cached, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing layout %q: %w", name, err)
	}
	if doc.Views == nil {
		// A bare list without the "views" key is also accepted.
		var bare []decl
		if err := yaml.Unmarshal(data, &bare); err != nil || bare == nil {
			return nil, fmt.Errorf("layout %q declares no views", name)
		}
		doc.Views = bare
	}

	decls := make([]view.ChildDecl, 0, len(doc.Views))
	for _, d := range doc.Views {
		if d.Name == "" {
			return nil, fmt.Errorf("layout %q has a nested view with no name", name)
		}
		decls = append(decls, convert(d))
	}

	l.mu.Lock()
	l.cache[name] = decls
	l.mu.Unlock()
	return decls, nil
}

func (l *Layouter) read(name string) ([]byte, error) {
	for _, candidate := range []string{name + ".yml", name + ".yaml", name} {
		data, err := os.ReadFile(filepath.Join(l.dir, filepath.Clean(candidate)))
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("no layout file for %q under %s", name, l.dir)
}

func fromList(items []interface{}) ([]view.ChildDecl, error) {
	decls := make([]view.ChildDecl, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("layout entry %d is %T, want a mapping", i, item)
		}
		var d decl
		raw, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("layout entry %d: %w", i, err)
		}
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("layout entry %d: %w", i, err)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("layout entry %d has no name", i)
		}
		decls = append(decls, convert(d))
	}
	return decls, nil
}

func convert(d decl) view.ChildDecl {
	out := view.ChildDecl{
		Name:         d.Name,
		View:         d.View,
		Template:     d.Template,
		Selector:     d.Selector,
		FullSelector: d.FullSelector,
		NotToRender:  d.NotToRender,
	}
	if len(d.Options) > 0 {
		out.Options = view.Options(d.Options)
	}
	return out
}
