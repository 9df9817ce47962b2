// Package watch re-runs an action when watched files change.
//
// Files are watched through their parent directories so that editors which
// save by replacing the file are still noticed. Bursts of events are
// debounced into a single trigger.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before triggering.
const DefaultDebounce = 250 * time.Millisecond

// Config holds watcher configuration.
type Config struct {
	// Files to watch. Directories are not watched recursively.
	Files []string
	// Debounce is the quiet period; zero uses DefaultDebounce.
	Debounce time.Duration
	// Logger for watcher events.
	Logger *slog.Logger
}

// Watcher triggers a callback when any watched file changes.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for the configured files.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{files: make(map[string]bool), debounce: debounce, logger: logger}
	seen := make(map[string]bool)
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Run blocks until ctx is done, calling onChange after each debounced burst
// of changes to the watched files. Errors from onChange are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", slog.String("dir", dir))
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("change detected", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			pending[filepath.Clean(event.Name)] = true
			timer.Reset(w.debounce)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			if err := onChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}
