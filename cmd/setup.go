package cmd

import (
	"fmt"
	"os"

	"github.com/conneroisu/viewtree/internal/config"
	"github.com/conneroisu/viewtree/internal/dom"
	"github.com/conneroisu/viewtree/internal/errors"
	"github.com/conneroisu/viewtree/internal/factory"
	"github.com/conneroisu/viewtree/internal/layout"
	"github.com/conneroisu/viewtree/internal/logging"
	"github.com/conneroisu/viewtree/internal/templates"
	"github.com/conneroisu/viewtree/internal/view"
)

const defaultShell = `<!DOCTYPE html><html><head><title>viewtree</title></head><body></body></html>`

// engine bundles the assembled collaborator set for the commands.
type engine struct {
	cfg      *config.Config
	logger   *logging.TreeLogger
	registry *factory.Registry
	store    *templates.Store
	layouter *layout.Layouter
	deps     *view.Deps
	document *dom.Document
}

// buildEngine loads configuration and wires the default collaborators: the
// template store, the YAML layouter, the constructor registry and the host
// document.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewLogger(logCfg)

	store := templates.NewStore(cfg.Paths.Templates, logger)
	layouter := layout.NewLayouter(cfg.Paths.Layouts)

	registry := factory.NewRegistry()
	registry.Register("view", factory.Generic)
	registry.SetDefaultType("view")

	document, err := loadDocument(cfg)
	if err != nil {
		return nil, err
	}

	deps := &view.Deps{
		Templator: store,
		Renderer:  store,
		Layouter:  layouter,
		Factory:   registry,
		Document:  document,
		Logger:    logger,
		Errors:    errors.NewCollector(),
	}
	registry.SetDeps(deps)

	return &engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		layouter: layouter,
		deps:     deps,
		document: document,
	}, nil
}

func loadDocument(cfg *config.Config) (*dom.Document, error) {
	if cfg.Preview.Document == "" {
		return dom.Parse(defaultShell)
	}
	data, err := os.ReadFile(cfg.Preview.Document)
	if err != nil {
		return nil, fmt.Errorf("loading host document: %w", err)
	}
	return dom.Parse(string(data))
}

// rootView builds and initializes the root view from the preview section.
func (e *engine) rootView() (*view.View, error) {
	opts := view.Options{
		view.OptFullSelector: e.cfg.Preview.Selector,
	}
	if e.cfg.Preview.Template != "" {
		opts[view.OptTemplate] = e.cfg.Preview.Template
	}
	if e.cfg.Preview.Layout != "" {
		opts[view.OptLayout] = e.cfg.Preview.Layout
	}
	root := view.New(opts)
	if err := root.Init(e.deps); err != nil {
		return nil, fmt.Errorf("initializing root view: %w", err)
	}
	return root, nil
}
