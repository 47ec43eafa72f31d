// Package watch re-runs a callback when site bundles in a directory change.
package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a directory tree for changed site bundles.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	path      string
	ext       string
	logger    *slog.Logger
	callback  func(path string)
	mu        sync.Mutex
	pending   map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtension sets the file extension that counts as a site bundle.
func WithExtension(ext string) Option {
	return func(w *Watcher) {
		if ext != "" {
			w.ext = strings.ToLower(ext)
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for path. Only files with the bundle
// extension (".json" by default) are reported.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debounce:  DefaultDebounce,
		path:      path,
		ext:       ".json",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SetCallback sets the function to call when a bundle changes.
func (w *Watcher) SetCallback(cb func(path string)) {
	w.callback = cb
}

// Start watches until ctx is done. Hidden directories are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.Walk(w.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != w.path && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handleEvent records writes and creates of bundle files.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if strings.ToLower(filepath.Ext(event.Name)) != w.ext {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending reports files that have been quiet for the debounce period.
func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if w.callback == nil {
		return
	}
	for _, path := range ready {
		go w.callback(path)
	}
}

// Pending returns the number of changes waiting out the debounce period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
