package templates

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates store entries when their backing files change and
// reports the affected template names.
type Watcher struct {
	store    *Store
	notifier *fsnotify.Watcher
	onChange func(name string)
	done     chan struct{}
}

// NewWatcher watches the store's directory. onChange, when non-nil, runs
// for every changed template after its cache entry has been dropped.
func NewWatcher(store *Store, onChange func(name string)) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := notifier.Add(store.Dir()); err != nil {
		notifier.Close()
		return nil, err
	}
	w := &Watcher{
		store:    store,
		notifier: notifier,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := templateName(event.Name)
			w.store.Invalidate(name)
			if w.onChange != nil {
				w.onChange(name)
			}
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn(context.Background(), err, "template watcher error")
		}
	}
}

// templateName maps a changed file path back to the name views resolve it
// by: the base name without its extension.
func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.notifier.Close()
}
