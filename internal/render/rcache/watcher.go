package rcache

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/termart/internal/applog"
)

// Watcher invalidates file-backed cache entries when the file changes
// on disk.
type Watcher struct {
	mu         sync.Mutex
	fw         *fsnotify.Watcher
	paths      map[string]map[string]struct{} // path -> fingerprints
	invalidate func(fp string)
	log        *applog.Logger
	done       chan struct{}
}

// NewWatcher creates a watcher that calls invalidate for every
// fingerprint registered against a changed path.
func NewWatcher(invalidate func(string), log *applog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:         fw,
		paths:      make(map[string]map[string]struct{}),
		invalidate: invalidate,
		log:        log,
		done:       make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Add registers a fingerprint against a file path.
func (w *Watcher) Add(path, fp string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	fps, ok := w.paths[abs]
	if !ok {
		fps = make(map[string]struct{})
		w.paths[abs] = fps
	}
	fps[fp] = struct{}{}
	w.mu.Unlock()

	if !ok {
		if err := w.fw.Add(abs); err != nil {
			w.log.Warn("watch %s: %v", abs, err)
			return err
		}
	}
	return nil
}

// Remove drops a fingerprint registration; the path watch is released
// when no fingerprints remain.
func (w *Watcher) Remove(path, fp string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	fps, ok := w.paths[abs]
	if ok {
		delete(fps, fp)
		if len(fps) == 0 {
			delete(w.paths, abs)
		}
	}
	last := ok && len(fps) == 0
	w.mu.Unlock()

	if last {
		_ = w.fw.Remove(abs)
	}
}

// Reset drops all registrations.
func (w *Watcher) Reset() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	w.paths = make(map[string]map[string]struct{})
	w.mu.Unlock()

	for _, p := range paths {
		_ = w.fw.Remove(p)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			var fps []string
			for fp := range w.paths[ev.Name] {
				fps = append(fps, fp)
			}
			w.mu.Unlock()

			for _, fp := range fps {
				w.log.Debug("file change %s invalidates %s", ev.Name, fp)
				w.invalidate(fp)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error: %v", err)
		}
	}
}
