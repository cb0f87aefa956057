// Package templates implements the templator and renderer collaborators on
// text/template: a compiling store with a disk-backed cache, plus an
// adapter that lets precompiled templ components stand in as templates.
package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/a-h/templ"

	"github.com/conneroisu/viewtree/internal/logging"
	"github.com/conneroisu/viewtree/internal/view"
)

// Store loads, compiles and caches named templates from a directory and
// renders them against composed view data. It implements view.Templator
// and view.Renderer.
//
// Lookup for name "sidebar" tries "sidebar.html" then "sidebar.tmpl" then
// the name verbatim, relative to the store directory.
type Store struct {
	mu     sync.RWMutex
	dir    string
	cache  map[string]*template.Template
	logger logging.Logger
}

// NewStore creates a template store rooted at dir.
func NewStore(dir string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		dir:    dir,
		cache:  make(map[string]*template.Template),
		logger: logger.WithComponent("templates"),
	}
}

// GetTemplate resolves name to a compiled template and hands it to onDone,
// which always runs exactly once. A name that cannot be resolved yields a
// nil template; the engine treats that as "render child markers only".
// When name is empty the layout options are consulted for a template key.
func (s *Store) GetTemplate(name string, layoutOptions view.Options, onDone func(view.Template)) {
	if name == "" {
		if layoutOptions != nil {
			if n, ok := layoutOptions[view.OptTemplate].(string); ok {
				name = n
			}
		}
	}
	if name == "" {
		onDone(nil)
		return
	}

	s.mu.RLock()
	tpl, hit := s.cache[name]
	s.mu.RUnlock()
	if hit {
		onDone(tpl)
		return
	}

	source, err := s.read(name)
	if err != nil {
		s.logger.Warn(context.Background(), err, "template not found", "name", name)
		onDone(nil)
		return
	}
	compiled, err := template.New(name).Parse(source)
	if err != nil {
		s.logger.Warn(context.Background(), err, "template failed to compile", "name", name)
		onDone(nil)
		return
	}

	s.mu.Lock()
	s.cache[name] = compiled
	s.mu.Unlock()
	onDone(compiled)
}

func (s *Store) read(name string) (string, error) {
	for _, candidate := range []string{name + ".html", name + ".tmpl", name} {
		data, err := os.ReadFile(filepath.Join(s.dir, filepath.Clean(candidate)))
		if err == nil {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("no template file for %q under %s", name, s.dir)
}

// CompileTemplate compiles literal template source.
func (s *Store) CompileTemplate(source string) (view.Template, error) {
	tpl, err := template.New("inline").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("compiling template: %w", err)
	}
	return tpl, nil
}

// Precompilable reports that compiled forms may be cached on views.
func (s *Store) Precompilable() bool { return true }

// Invalidate drops the cached compilation for name, forcing a reload on
// next resolution. Used by the file watcher.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, name)
}

// InvalidateAll clears the whole cache.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*template.Template)
}

// Dir returns the store's template directory.
func (s *Store) Dir() string { return s.dir }

// Render executes a compiled template against composed data and returns
// the produced markup. Supported template forms: *text/template.Template,
// templ.Component, and raw markup strings.
func (s *Store) Render(tpl view.Template, data map[string]interface{}) (string, error) {
	switch t := tpl.(type) {
	case *template.Template:
		var sb strings.Builder
		if err := t.Execute(&sb, data); err != nil {
			return "", fmt.Errorf("executing template %q: %w", t.Name(), err)
		}
		return sb.String(), nil
	case templ.Component:
		return renderComponent(t)
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported template form %T", tpl)
	}
}
