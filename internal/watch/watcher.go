// Package watch mirrors a file on disk into the editor buffer so an
// external editor can drive the session.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gopad/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 300 * time.Millisecond

// FileWatcher watches one file and feeds its content to a sink after each
// settled change. The parent directory is watched so atomic rename-saves
// are seen.
type FileWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	path        string
	dir         string
	sink        func(text string)
	lastEvent   time.Time
	pending     bool
	lastApplied string
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Applied       int
	Unchanged     int
	Errors        int
	LastEventTime time.Time
	LastEventType string
}

// New creates a watcher for path. sink receives the file content.
func New(path string, sink func(text string)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:     watcher,
		path:        abs,
		dir:         filepath.Dir(abs),
		sink:        sink,
		debounceDur: DefaultDebounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.mu.Lock()
	fw.debounceDur = d
	fw.mu.Unlock()
}

// Path returns the watched file.
func (fw *FileWatcher) Path() string { return fw.path }

// Start begins watching. If the file exists its content is delivered once
// right away. Non-blocking.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	if err := fw.watcher.Add(fw.dir); err != nil {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		return fmt.Errorf("watch %s: %w", fw.dir, err)
	}
	logging.Watch("watching %s", fw.path)

	fw.apply()

	go fw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		fw.watcher.Close()
		return
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stopCh)
	<-fw.doneCh

	if err := fw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("stopped watching %s", fw.path)
}

// Stats returns a snapshot of the counters.
func (fw *FileWatcher) Stats() Stats {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.stats
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()

		case <-ticker.C:
			fw.processSettled()
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fw.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	default:
		// Removal and renames away are followed by a create when an editor
		// saves atomically; chmod carries no content.
		return
	}

	logging.WatchDebug("%s event for %s", eventType, event.Name)

	fw.mu.Lock()
	fw.stats.Events++
	fw.stats.LastEventTime = time.Now()
	fw.stats.LastEventType = eventType
	fw.lastEvent = time.Now()
	fw.pending = true
	fw.mu.Unlock()
}

func (fw *FileWatcher) processSettled() {
	fw.mu.Lock()
	ready := fw.pending && time.Since(fw.lastEvent) >= fw.debounceDur
	if ready {
		fw.pending = false
	}
	fw.mu.Unlock()

	if ready {
		fw.apply()
	}
}

// apply reads the file and hands it to the sink if it changed.
func (fw *FileWatcher) apply() {
	content, err := os.ReadFile(fw.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.WatchDebug("file missing, skipping: %s", fw.path)
			return
		}
		logging.Get(logging.CategoryWatch).Error("failed to read %s: %v", fw.path, err)
		fw.mu.Lock()
		fw.stats.Errors++
		fw.mu.Unlock()
		return
	}

	text := string(content)
	fw.mu.Lock()
	if text == fw.lastApplied && fw.stats.Applied > 0 {
		fw.stats.Unchanged++
		fw.mu.Unlock()
		return
	}
	fw.lastApplied = text
	fw.stats.Applied++
	fw.mu.Unlock()

	logging.Watch("applying %d bytes from %s", len(text), filepath.Base(fw.path))
	fw.sink(text)
}
