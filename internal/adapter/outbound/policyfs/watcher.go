package policyfs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is how long the directory must stay quiet after the
// last filesystem event before a reload runs.
const DefaultQuietPeriod = 300 * time.Millisecond

// Watcher subscribes to filesystem events on the policy directory and drives
// debounced, serialized reloads. Only one reload is in flight at a time; any
// events observed during a reload schedule exactly one follow-up, never a
// queue of them.
type Watcher struct {
	dir    string
	quiet  time.Duration
	reload func() error
	logger *slog.Logger

	mu        sync.Mutex
	reloading bool
	pending   bool
	inflight  sync.WaitGroup
}

// NewWatcher creates a watcher over dir. reload is invoked after each quiet
// period; its error is logged and otherwise swallowed — a failed reload must
// never disturb the published snapshot.
func NewWatcher(dir string, quiet time.Duration, reload func() error, logger *slog.Logger) *Watcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, quiet: quiet, reload: reload, logger: logger}
}

// Run watches the directory until ctx is cancelled. It blocks; run it on its
// own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("policy watcher started", "dir", w.dir, "quiet_period", w.quiet)

	// Single-slot debounce: one timer, re-armed on every relevant event.
	debounce := time.NewTimer(w.quiet)
	if !debounce.Stop() {
		<-debounce.C
	}

	defer w.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			w.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !isPolicyFile(event.Name) {
				continue
			}
			w.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())
			// Re-arm: the reload runs only after quiet time without events.
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(w.quiet)

		case <-debounce.C:
			w.trigger()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// trigger starts a reload, or marks a follow-up when one is already running.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reloading {
		w.pending = true
		return
	}
	w.reloading = true
	w.inflight.Add(1)
	go w.runReload()
}

// runReload executes reloads serially, consuming at most one pending
// follow-up per completed pass.
func (w *Watcher) runReload() {
	defer w.inflight.Done()
	for {
		if err := w.reload(); err != nil {
			w.logger.Error("policy reload failed, previous snapshot retained", "error", err)
		}

		w.mu.Lock()
		if w.pending {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.reloading = false
		w.mu.Unlock()
		return
	}
}

// isPolicyFile reports whether the event path looks like a policy file.
func isPolicyFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
