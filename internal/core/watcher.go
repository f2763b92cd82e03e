package core

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"boilw/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc validates and applies a changed knowledge file. Returning an
// error leaves the previous rule base in place.
type ReloadFunc func(ctx context.Context, path string) error

// KnowledgeWatcher watches knowledge directories for *.yaml changes and
// triggers a reload after the edits settle. It watches workspace-relative
// paths so it works wherever boilw is running.
type KnowledgeWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	reload      ReloadFunc
	dirs        []string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	FilesCreated    int
	FilesModified   int
	FilesDeleted    int
	ReloadsTried    int
	ReloadsFailed   int
	Errors          int
	LastEventTime   time.Time
	LastEventPath   string
	LastEventType   string
}

// NewKnowledgeWatcher creates a watcher over the given knowledge directories.
func NewKnowledgeWatcher(dirs []string, debounce time.Duration, reload ReloadFunc) (*KnowledgeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond // Debounce rapid saves
	}

	return &KnowledgeWatcher{
		watcher:     watcher,
		reload:      reload,
		dirs:        append([]string(nil), dirs...),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *KnowledgeWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			// Directory may not exist yet, keep going with the rest.
			logging.Get(logging.CategoryWatch).Warn("watch failed for %s: %v", dir, err)
			continue
		}
		logging.Watch("watching directory: %s", dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *KnowledgeWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// run is the main event loop.
func (w *KnowledgeWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
			return

		case <-w.stopCh:
			logging.Watch("stop signal received")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				logging.Watch("event channel closed")
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				logging.Watch("error channel closed")
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

// handleEvent records a single filesystem event for debounced processing.
func (w *KnowledgeWatcher) handleEvent(event fsnotify.Event) {
	if !isKnowledgeFile(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // Ignore chmod, etc.
	}

	logging.WatchDebug("%s event for %s", eventType, event.Name)

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType

	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	case "delete", "rename":
		w.stats.FilesDeleted++
	}

	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents reloads files whose edits have settled.
func (w *KnowledgeWatcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	toProcess := make([]string, 0)

	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toProcess {
		w.reloadFile(ctx, path)
	}
}

// reloadFile applies one settled change through the reload callback.
func (w *KnowledgeWatcher) reloadFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.WatchDebug("file removed, skipping reload: %s", path)
		return
	}

	w.mu.Lock()
	w.stats.ReloadsTried++
	w.mu.Unlock()

	logging.Watch("reloading knowledge file: %s", path)
	if err := w.reload(ctx, path); err != nil {
		logging.Get(logging.CategoryWatch).Warn("reload rejected for %s: %v", path, err)
		w.mu.Lock()
		w.stats.ReloadsFailed++
		w.mu.Unlock()
	}
}

// isKnowledgeFile reports whether a path looks like a knowledge base file.
func isKnowledgeFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// GetStats returns the current watcher statistics.
func (w *KnowledgeWatcher) GetStats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true if the watcher is currently running.
func (w *KnowledgeWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
