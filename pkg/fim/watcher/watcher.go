// Package watcher provides an optional fsnotify-based trigger that wakes
// the monitor loop ahead of its polling interval when something under the
// root changes. Polling remains the correctness mechanism; the trigger is
// purely a latency optimization feeding the same diff engine.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
)

// debounce collapses bursts of filesystem events into one trigger.
const debounce = 250 * time.Millisecond

// Trigger watches a directory tree and signals on C when it changes.
type Trigger struct {
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.Mutex
	closed  bool

	// C receives at most one pending signal per change burst.
	C chan struct{}
}

// New creates a Trigger watching root and all its subdirectories.
// Symlinked directories are not followed to avoid loops.
func New(root string) (*Trigger, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Trigger{
		watcher: fsw,
		paths:   make(map[string]bool),
		C:       make(chan struct{}, 1),
	}

	if err := t.watchTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return t, nil
}

// watchTree adds watches for root and every directory under it.
func (t *Trigger) watchTree(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return t.addWatch(path)
		}
		return nil
	})
}

// addWatch adds a single directory to the watch list.
func (t *Trigger) addWatch(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.paths[path] {
		return nil
	}

	if err := t.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return nil
	}

	t.paths[path] = true
	return nil
}

// Run consumes filesystem events until the context is cancelled, coalescing
// them into signals on C.
func (t *Trigger) Run(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case <-fire:
			select {
			case t.C <- struct{}{}:
			default:
				// A trigger is already pending.
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent keeps the directory watch set current.
func (t *Trigger) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Lstat(event.Name)
		if err != nil || info.Mode()&fs.ModeSymlink != 0 {
			return
		}
		if info.IsDir() {
			// Watch the new directory and anything created inside it
			// before the watch landed.
			_ = t.watchTree(event.Name)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		t.mu.Lock()
		for path := range t.paths {
			if path == event.Name || isSubPath(path, event.Name) {
				_ = t.watcher.Remove(path)
				delete(t.paths, path)
			}
		}
		t.mu.Unlock()
	}
}

// Close stops the trigger and releases resources.
func (t *Trigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.paths = make(map[string]bool)
	return t.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
