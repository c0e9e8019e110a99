// Package watcher observes a project root for file changes, debounces the
// raw notifications, and publishes FileChangesDetected events. A registered
// sync function turns each batch into an incremental index pass.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/events"
)

// DefaultDebounce batches rapid editor save bursts into one event.
const DefaultDebounce = 500 * time.Millisecond

// SyncFunc is invoked after each debounced batch. It returns the number of
// files the sync pass changed.
type SyncFunc func(ctx context.Context) (int, error)

// Options configures the watcher.
type Options struct {
	RootDir  string
	Debounce time.Duration
	// Exclude lists directory names whose subtrees are not watched.
	Exclude []string
	// Sync, when set, runs after each batch and its result is published as
	// SyncCompleted.
	Sync SyncFunc
}

// Watcher debounces fsnotify events for one root.
type Watcher struct {
	opts      Options
	publisher events.Publisher
	notify    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]fsnotify.Op

	done chan struct{}
	once sync.Once
}

// New creates a watcher over the root and its subdirectories.
func New(opts Options, publisher events.Publisher) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.CodeFileRead, err)
	}

	w := &Watcher{
		opts:      opts,
		publisher: publisher,
		notify:    notify,
		pending:   make(map[string]fsnotify.Op),
		done:      make(chan struct{}),
	}

	if err := w.addRecursive(opts.RootDir); err != nil {
		_ = notify.Close()
		return nil, err
	}
	return w, nil
}

// Run processes notifications until the context is canceled or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			if w.excluded(event.Name) {
				continue
			}
			// New directories join the watch set.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
					continue
				}
			}

			w.mu.Lock()
			w.pending[event.Name] |= event.Op
			w.mu.Unlock()

			timer.Reset(w.opts.Debounce)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.notify.Close()
}

// flush publishes the pending batch and runs the sync function.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	change := events.FileChangesDetected{RootPath: w.opts.RootDir}
	for path, op := range pending {
		rel, err := filepath.Rel(w.opts.RootDir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		switch {
		case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
			change.Removed = append(change.Removed, rel)
		case op.Has(fsnotify.Create):
			change.Added = append(change.Added, rel)
		default:
			change.Modified = append(change.Modified, rel)
		}
	}

	w.publish(ctx, events.Event{
		Kind:                events.KindFileChangesDetected,
		FileChangesDetected: &change,
	})

	if w.opts.Sync == nil {
		return
	}
	filesChanged, err := w.opts.Sync(ctx)
	if err != nil {
		slog.Warn("watcher_sync_failed", slog.String("error", err.Error()))
		return
	}
	w.publish(ctx, events.Event{
		Kind:          events.KindSyncCompleted,
		SyncCompleted: &events.SyncCompleted{Path: w.opts.RootDir, FilesChanged: filesChanged},
	})
}

// addRecursive watches a directory and its subdirectories.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(path) && path != root {
			return filepath.SkipDir
		}
		if err := w.notify.Add(path); err != nil {
			slog.Warn("watcher_add_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

// excluded reports whether any segment below the root names an excluded or
// hidden directory.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.opts.RootDir, path)
	if err != nil {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, name := range w.opts.Exclude {
			if segment == name {
				return true
			}
		}
		if len(segment) > 1 && segment[0] == '.' && segment != ".." {
			return true
		}
	}
	return false
}

func (w *Watcher) publish(ctx context.Context, event events.Event) {
	if err := w.publisher.Publish(ctx, event); err != nil {
		slog.Warn("watcher_event_publish_failed", slog.String("error", err.Error()))
	}
}
