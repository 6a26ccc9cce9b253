package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/neilberkman/ccdash/internal/core/debounce"
)

// DefaultSettle is how long a session file must be quiet before it is
// reported. The CLI appends a line per event while a session is active.
const DefaultSettle = 500 * time.Millisecond

// Watcher reports session files that changed under a directory
type Watcher struct {
	watcher   *fsnotify.Watcher
	watchPath string
	onChange  func(ctx context.Context, paths []string)
	settle    time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
	changed int
	errors  int
}

// NewWatcher creates a watcher for watchPath. onChange receives the changed
// .jsonl files of each settled batch, sorted.
func NewWatcher(watchPath string, onChange func(ctx context.Context, paths []string)) (*Watcher, error) {
	if _, err := os.Stat(watchPath); err != nil {
		return nil, fmt.Errorf("watch path does not exist: %s", watchPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:   watcher,
		watchPath: watchPath,
		onChange:  onChange,
		settle:    DefaultSettle,
		logger:    slog.Default(),
		pending:   make(map[string]bool),
	}, nil
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	w.logger = l
	return w
}

// WithSettle sets the quiet period
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	w.settle = d
	return w
}

// Run watches until ctx is canceled, then closes the underlying watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	if err := w.setupWatches(); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	flush := debounce.New(w.settle, func(struct{}) { w.flush(ctx) })
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			w.handle(event, flush)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Warn("watcher error", "error", err)
			w.mu.Lock()
			w.errors++
			w.mu.Unlock()
		}
	}
}

// setupWatches adds every directory under the watch path
func (w *Watcher) setupWatches() error {
	return filepath.WalkDir(w.watchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.logger.Debug("watching", "path", path)
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event, flush *debounce.Debouncer[struct{}]) {
	// a new project directory appears when the CLI starts in a new folder
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !shouldProcess(event) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = true
	w.mu.Unlock()
	flush.Trigger(struct{}{})
}

// shouldProcess keeps writes and creates of session files
func shouldProcess(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.changed += len(paths)
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(paths)
	w.onChange(ctx, paths)
}

// Changed counts session files reported so far
func (w *Watcher) Changed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}
