// Package watcher reports debounced changes to a set of files.
package watcher

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/omniedit/internal/log"
)

// DefaultDebounce coalesces editor save bursts.
const DefaultDebounce = 200 * time.Millisecond

// Config holds watcher configuration options.
type Config struct {
	Paths       []string
	DebounceDur time.Duration
}

// DefaultConfig watches paths with the default debounce.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:       paths,
		DebounceDur: DefaultDebounce,
	}
}

// Watcher monitors files and sends the changed paths once a burst of
// events has settled.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]bool
	debounce  time.Duration
	onChange  chan []string
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a watcher for cfg.Paths. Files need not exist yet, but their
// directories must.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	files := make(map[string]bool, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		files[abs] = true
	}

	return &Watcher{
		fsWatcher: fsw,
		files:     files,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan []string, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directories holding the files. Watching directories
// rather than files survives editors that save by rename.
func (w *Watcher) Start() (<-chan []string, error) {
	dirs := map[string]bool{}
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	log.Debug(log.CatWatcher, "watching files", "files", len(w.files), "dirs", len(dirs))

	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = map[string]bool{}
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)

			// Drop if the previous notification is still unread.
			select {
			case w.onChange <- changed:
				log.Debug(log.CatWatcher, "files changed", "paths", changed)
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}
