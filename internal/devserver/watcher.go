// Package devserver watches content files during development and reloads the
// running server when they change.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// ErrNoDir is returned by Run when the watched directory is missing.
var ErrNoDir = errors.New("devserver: content directory not found")

// Watcher reloads once a burst of file events under a directory tree has
// settled.
type Watcher struct {
	dir      string
	debounce time.Duration
	exts     map[string]bool
	reload   func(ctx context.Context) error
	logger   logging.Logger

	mu        sync.Mutex
	pending   time.Time
	reloads   int
	lastError error
}

// Config configures the watcher.
type Config struct {
	Dir string
	// Debounce is how long events must stop before a reload.
	Debounce time.Duration
	// Extensions limits which files count; empty means .json, .md and .txt.
	Extensions []string
	Reload     func(ctx context.Context) error
	Logger     logging.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		Dir:        "content",
		Debounce:   500 * time.Millisecond,
		Extensions: []string{".json", ".md", ".txt"},
	}
}

// New creates a watcher.
func New(config *Config) *Watcher {
	if config == nil {
		config = DefaultConfig()
	}
	exts := config.Extensions
	if len(exts) == 0 {
		exts = DefaultConfig().Extensions
	}
	w := &Watcher{
		dir:      config.Dir,
		debounce: config.Debounce,
		exts:     make(map[string]bool, len(exts)),
		reload:   config.Reload,
		logger:   logging.OrNop(config.Logger),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultConfig().Debounce
	}
	for _, ext := range exts {
		w.exts[ext] = true
	}
	return w
}

// Run watches until ctx ends. Directories created later are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("devserver: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.dir); err != nil {
		return err
	}
	w.logger.Info("watching content", logging.String("dir", w.dir))

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Err(err))

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoDir, root)
	}
	if err != nil {
		return fmt.Errorf("devserver: watch %s: %w", root, err)
	}
	return nil
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn("watch new directory", logging.String("path", event.Name), logging.Err(err))
			}
		}
	}
	if !w.exts[filepath.Ext(event.Name)] {
		return
	}
	w.logger.Debug("content event", logging.String("path", event.Name), logging.String("op", event.Op.String()))
	w.mark(time.Now())
}

// mark records an event at t.
func (w *Watcher) mark(t time.Time) {
	w.mu.Lock()
	w.pending = t
	w.mu.Unlock()
}

// flush reloads if the last event is older than the debounce window. It
// reports whether a reload ran.
func (w *Watcher) flush(ctx context.Context, now time.Time) bool {
	w.mu.Lock()
	if w.pending.IsZero() || now.Sub(w.pending) < w.debounce {
		w.mu.Unlock()
		return false
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	w.logger.Info("content change detected, reloading", logging.String("dir", w.dir))
	var err error
	if w.reload != nil {
		err = w.reload(ctx)
	}
	if err != nil {
		w.logger.Warn("content reload failed", logging.Err(err))
	}

	w.mu.Lock()
	w.reloads++
	w.lastError = err
	w.mu.Unlock()
	return true
}

// Reloads returns how many reloads ran.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// LastError returns the result of the most recent reload.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}
