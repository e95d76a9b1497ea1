package stream

import (
	"hash/fnv"
	"sync"
	"time"
)

// DefaultDedupWindow is how long a repeat of the same signal is suppressed.
const DefaultDedupWindow = 5 * time.Second

// Deduplicator suppresses repeat signals by (type, content, context) hash
// inside a time window. Entries older than the window are pruned on a
// periodic sweep; a repeat matching a live entry is dropped, a repeat after
// the window re-registers and passes through.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[uint64]time.Time
	window  time.Duration

	suppressed int64
	admitted   int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDeduplicator creates a deduplicator and starts its sweep loop.
// A non-positive window gets the default.
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d := &Deduplicator{
		entries: make(map[uint64]time.Time),
		window:  window,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go d.sweepLoop()
	return d
}

// dedupKey hashes the identifying triple.
func dedupKey(sigType, content, context string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(sigType))
	h.Write([]byte{0})
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(context))
	return h.Sum64()
}

// Admit reports whether a signal identified by (sigType, content, context)
// should propagate. The first occurrence inside a window is admitted and
// registered; repeats inside the window are suppressed.
func (d *Deduplicator) Admit(sigType, content, context string) bool {
	key := dedupKey(sigType, content, context)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if seen, ok := d.entries[key]; ok && now.Sub(seen) < d.window {
		d.suppressed++
		return false
	}
	d.entries[key] = now
	d.admitted++
	return true
}

// sweepLoop prunes expired entries once per window.
func (d *Deduplicator) sweepLoop() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.window)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

// sweep removes entries older than the window.
func (d *Deduplicator) sweep() {
	cutoff := time.Now().Add(-d.window)
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, seen := range d.entries {
		if seen.Before(cutoff) {
			delete(d.entries, k)
		}
	}
}

// Stop ends the sweep loop.
func (d *Deduplicator) Stop() {
	select {
	case <-d.stopCh:
		return // already stopped
	default:
	}
	close(d.stopCh)
	<-d.doneCh
}

// DedupStats is a snapshot of deduplicator counters.
type DedupStats struct {
	LiveEntries int
	Admitted    int64
	Suppressed  int64
}

// Stats returns current counters.
func (d *Deduplicator) Stats() DedupStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DedupStats{
		LiveEntries: len(d.entries),
		Admitted:    d.admitted,
		Suppressed:  d.suppressed,
	}
}
