package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"floodwatch/internal/logger"
)

// DefaultDebounce coalesces the burst of writes an export drop produces.
const DefaultDebounce = 5 * time.Second

// Target is one watched plant directory.
type Target struct {
	PlantID string
	Dir     string
	Pattern string // glob over base names, default *.csv
}

// Watcher rebuilds plant artifacts when new or changed export files land in
// their source directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	byDir    map[string]Target
	debounce time.Duration
	rebuild  func(plantID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher over the given targets. rebuild is invoked once per
// plant after the debounce window closes.
func New(targets []Target, debounce time.Duration, rebuild func(plantID string)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		byDir:    make(map[string]Target, len(targets)),
		debounce: debounce,
		rebuild:  rebuild,
		timers:   make(map[string]*time.Timer),
	}
	for _, target := range targets {
		if err := fsw.Add(target.Dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", target.Dir, err)
		}
		w.byDir[filepath.Clean(target.Dir)] = target
	}
	return w, nil
}

// Run dispatches filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			target, ok := w.byDir[filepath.Clean(filepath.Dir(ev.Name))]
			if !ok {
				continue
			}
			if !matches(target.Pattern, ev.Name) {
				continue
			}
			w.schedule(target.PlantID)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("fs watcher error: %v", err)
		}
	}
}

// schedule arms or extends the per-plant debounce timer.
func (w *Watcher) schedule(plantID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[plantID]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[plantID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, plantID)
		w.mu.Unlock()

		logger.Infof("plant %s: export change settled, rebuilding", plantID)
		w.rebuild(plantID)
	})
}

func matches(pattern, path string) bool {
	if pattern == "" {
		pattern = "*.csv"
	}
	ok, err := filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}
