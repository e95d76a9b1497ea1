// Package watch monitors source directories for writes and feeds changed
// files into the detection pipeline.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"roboswarm/internal/logging"
	"roboswarm/internal/stream"
)

// Watcher watches configured roots with fsnotify. Events are not fed
// immediately: each path's last event time is recorded, and the file is read
// and forwarded only after the path has been quiet for the settle window. A
// rapid save burst therefore produces one feed carrying the final content.
type Watcher struct {
	mu         sync.RWMutex
	watcher    *fsnotify.Watcher
	processor  *stream.Processor
	roots      []string
	extensions map[string]bool
	pending    map[string]time.Time // path -> last event, drained on settle
	settleDur  time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	running    bool

	stats Stats
}

// Stats tracks watcher activity for debugging.
type Stats struct {
	FilesSeen     int // settle cycles started
	EventsFed     int
	Debounced     int // follow-up events coalesced into a pending cycle
	ReadFailures  int
	LastEventPath string
	LastEventTime time.Time
}

// New creates a watcher over roots. Only files whose extension appears in
// extensions are forwarded; an empty list forwards everything.
func New(processor *stream.Processor, roots, extensions []string, settle time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}

	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[e] = true
	}

	return &Watcher{
		watcher:    fsw,
		processor:  processor,
		roots:      roots,
		extensions: extSet,
		pending:    make(map[string]time.Time),
		settleDur:  settle,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins watching every root and its subdirectories. Non-blocking; the
// event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			logging.Get(logging.CategoryWatch).Warn("watcher: cannot watch %s: %v", root, err)
		}
	}

	go w.run(ctx)
	return nil
}

// addTree adds root and every subdirectory to the fsnotify watch list,
// skipping hidden directories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WatchDebug("watcher: add %s failed: %v", path, err)
			return nil
		}
		return nil
	})
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

// run is the fsnotify event loop plus the settle ticker that drains pending
// paths.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.settleDur / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logging.Watch("watcher: started over %d roots", len(w.roots))
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processSettled()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Warn("watcher: %v", err)
		}
	}
}

// handleEvent filters one fsnotify event and records it in the pending map.
// Every further event for the same path pushes its settle point forward, so
// the file is read only after the burst ends.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// A created directory joins the watch list.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = w.addTree(ev.Name)
		}
		return
	}

	if len(w.extensions) > 0 && !w.extensions[filepath.Ext(ev.Name)] {
		return
	}

	now := time.Now()
	w.mu.Lock()
	if _, queued := w.pending[ev.Name]; queued {
		w.stats.Debounced++
	} else {
		w.stats.FilesSeen++
	}
	w.pending[ev.Name] = now
	w.stats.LastEventPath = ev.Name
	w.stats.LastEventTime = now
	w.mu.Unlock()
}

// processSettled feeds every pending path whose last event is older than the
// settle window and removes it from the map.
func (w *Watcher) processSettled() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settleDur {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.feed(path)
	}
}

// feed reads a settled file and hands its content to the stream processor.
func (w *Watcher) feed(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.mu.Lock()
		w.stats.ReadFailures++
		w.mu.Unlock()
		logging.WatchDebug("watcher: read %s failed: %v", path, err)
		return
	}

	w.processor.ProcessEvent(stream.Event{
		Type:   "file_changed",
		Source: path,
		Payload: map[string]interface{}{
			"content": string(data),
		},
	})

	w.mu.Lock()
	w.stats.EventsFed++
	w.mu.Unlock()

	logging.WatchDebug("watcher: fed %s (%d bytes)", path, len(data))
}

// GetStats returns a copy of the watcher counters.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// pendingCount reports how many paths are waiting to settle.
func (w *Watcher) pendingCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.pending)
}
