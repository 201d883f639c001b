package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a settings file when it changes on disk and hands the
// fresh value to a callback. Editors often replace files via rename, so the
// parent directory is watched rather than the file itself, and events are
// debounced before reloading.
type Watcher struct {
	path     string
	onChange func(*Settings)
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending bool
	lastEvt time.Time
}

// NewWatcher creates a watcher for the settings file at path. onChange is
// called with the reloaded settings after each successful reload; reload
// errors leave the previous settings in effect.
func NewWatcher(path string, onChange func(*Settings)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		watcher:  fsw,
	}, nil
}

// Watch starts observing the settings file until Close is called.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go w.processEvents(ctx)
	go w.processPending(ctx)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEvt = time.Now()
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			due := w.pending && time.Since(w.lastEvt) >= w.debounce
			if due {
				w.pending = false
			}
			w.mu.Unlock()

			if !due {
				continue
			}
			if s, err := Load(w.path); err == nil {
				w.onChange(s)
			}
		}
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	return w.watcher.Close()
}
