// Package watcher reports debounced file changes for live reload.
// Directories are watched rather than the files themselves because
// editors and atomic writers replace files, which would orphan a
// direct watch.
package watcher

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher coalesces bursts of filesystem events per file.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	events   chan string

	mu      sync.Mutex
	watched map[string]map[string]bool // dir -> base names
	pending map[string]bool
	timer   *time.Timer
}

// New builds a watcher. logger may be nil.
func New(logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:       fs,
		logger:   logger,
		debounce: defaultDebounce,
		events:   make(chan string, 8),
		watched:  make(map[string]map[string]bool),
		pending:  make(map[string]bool),
	}, nil
}

// Add registers interest in one file.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	names, ok := w.watched[dir]
	if !ok {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
		names = make(map[string]bool)
		w.watched[dir] = names
	}
	names[base] = true
	return nil
}

// Events delivers debounced paths of changed files.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run pumps filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mark(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "err", err)
		}
	}
}

// mark queues a changed path and (re)starts the debounce timer.
func (w *Watcher) mark(path string) {
	path = filepath.Clean(path)
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	names, ok := w.watched[dir]
	if !ok || !names[base] {
		return
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for _, p := range paths {
		select {
		case w.events <- p:
		default:
			w.logger.Debug("reload event dropped", "path", p)
		}
	}
}
