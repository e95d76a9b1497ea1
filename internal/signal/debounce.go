package signal

import (
	"sync"
	"time"
)

// DefaultDebounceDelay is the coalescing window for per-path reprocessing.
const DefaultDebounceDelay = 50 * time.Millisecond

// Debouncer is a registry of per-key cancellable delayed tasks. Scheduling a
// key that already has a pending task cancels and replaces it (cancel on
// reschedule); other keys are unaffected. Many keys can be pending at once.
type Debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	closed bool
}

// NewDebouncer creates a debouncer with the given delay. Zero gets the default.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{
		timers: make(map[string]*time.Timer),
		delay:  delay,
	}
}

// Schedule arranges for fn to run after the debounce delay, replacing any
// pending task for the same key. fn runs on a timer goroutine.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending task for key, if any. Returns true if one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(d.timers, key)
	return true
}

// Pending returns the number of keys with a scheduled task.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Close cancels every pending task and rejects further scheduling.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
	}
}
