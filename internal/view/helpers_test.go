package view

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/viewtree/internal/dom"
	"github.com/conneroisu/viewtree/internal/errors"
	"github.com/conneroisu/viewtree/internal/logging"
)

// stubTemplator serves templates from an in-memory map. When async, the
// onDone callbacks are captured and only run on flush, modeling a
// templator that resolves later.
type stubTemplator struct {
	templates map[string]string
	async     bool
	pending   []func()
	calls     int
}

func (s *stubTemplator) GetTemplate(name string, _ Options, onDone func(Template)) {
	s.calls++
	fire := func() {
		if tpl, ok := s.templates[name]; ok {
			onDone(tpl)
		} else {
			onDone(nil)
		}
	}
	if s.async {
		s.pending = append(s.pending, fire)
		return
	}
	fire()
}

func (s *stubTemplator) CompileTemplate(source string) (Template, error) {
	return source, nil
}

func (s *stubTemplator) Precompilable() bool { return true }

func (s *stubTemplator) flush() {
	pending := s.pending
	s.pending = nil
	for _, fire := range pending {
		fire()
	}
}

// stubRenderer substitutes {{key}} tokens in a string template with the
// composed data values.
type stubRenderer struct {
	lastData map[string]interface{}
}

func (r *stubRenderer) Render(tpl Template, data map[string]interface{}) (string, error) {
	r.lastData = data
	s, _ := tpl.(string)
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprint(v))
	}
	return s, nil
}

// stubLayouter returns a fixed declaration list or a fixed error.
type stubLayouter struct {
	decls []ChildDecl
	err   error
}

func (l *stubLayouter) FindNestedViews(layout interface{}) ([]ChildDecl, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.decls, nil
}

// stubFactory constructs plain views. When async, completions are captured
// and only run on flush, modeling in-flight child construction.
type stubFactory struct {
	deps    *Deps
	async   bool
	pending []func()
	created   []string // type names, in creation order
	instances []*View  // constructed views, in completion order
	fail      map[string]bool
}

func (f *stubFactory) Create(typeName string, options Options, onDone func(*View)) error {
	if f.fail[typeName] {
		return fmt.Errorf("unknown view type %q", typeName)
	}
	f.created = append(f.created, typeName)
	fire := func() {
		v := New(options)
		if f.deps != nil {
			_ = v.Init(f.deps)
		}
		f.instances = append(f.instances, v)
		onDone(v)
	}
	if f.async {
		f.pending = append(f.pending, fire)
		return nil
	}
	fire()
	return nil
}

func (f *stubFactory) flush() {
	pending := f.pending
	f.pending = nil
	for _, fire := range pending {
		fire()
	}
}

// testDeps wires stub collaborators around an optional host document.
func testDeps(doc *dom.Document) (*Deps, *stubTemplator, *stubRenderer, *stubFactory) {
	templator := &stubTemplator{templates: map[string]string{}}
	renderer := &stubRenderer{}
	factory := &stubFactory{}
	deps := &Deps{
		Templator: templator,
		Renderer:  renderer,
		Factory:   factory,
		Document:  doc,
		Logger:    logging.NewNopLogger(),
		Errors:    errors.NewCollector(),
	}
	factory.deps = deps
	return deps, templator, renderer, factory
}

func testDoc() *dom.Document {
	return dom.MustParse(`<html><head></head><body></body></html>`)
}

// docHTML serializes the document, failing loudly on error.
func docHTML(doc *dom.Document) string {
	markup, err := doc.String()
	if err != nil {
		panic(err)
	}
	return markup
}

func innerHTML(n *html.Node) string {
	markup, err := dom.InnerHTML(n)
	if err != nil {
		panic(err)
	}
	return markup
}

func outerHTML(n *html.Node) string {
	markup, err := dom.OuterHTML(n)
	if err != nil {
		panic(err)
	}
	return markup
}

// newRoot builds an initialized root bound to the document body.
func newRoot(opts Options, doc *dom.Document) (*View, *Deps, *stubTemplator, *stubRenderer, *stubFactory) {
	deps, templator, renderer, factory := testDeps(doc)
	if opts == nil {
		opts = Options{}
	}
	if _, ok := opts[OptFullSelector]; !ok {
		opts[OptFullSelector] = "body"
	}
	root := New(opts)
	if err := root.Init(deps); err != nil {
		panic(err)
	}
	return root, deps, templator, renderer, factory
}
