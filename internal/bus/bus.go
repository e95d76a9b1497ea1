// Package bus is a broadcast channel event bus. Subscribers get independent
// buffered channels; publishing never blocks, a subscriber that falls behind
// drops the oldest pending record and the drop is counted.
package bus

import (
	"sync"
	"time"

	"roboswarm/internal/logging"
	"roboswarm/internal/signal"
)

// RecordTypeSignalDetected is the type of records produced by the stream
// processor when a batch of signals survives deduplication.
const RecordTypeSignalDetected = "signal_detected"

// RecordData carries the detection payload of a record.
type RecordData struct {
	Signals     []signal.Signal `json:"signals"`
	SignalCount int             `json:"signal_count"`
}

// RecordMetadata carries processing metadata of a record.
type RecordMetadata struct {
	Priority  string  `json:"priority"`
	LatencyMs float64 `json:"latency_ms"`
}

// Record is a normalized downstream event.
type Record struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      RecordData     `json:"data"`
	Metadata  RecordMetadata `json:"metadata"`
}

// Bus fans records out to subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    []chan Record
	bufSize int
	dropped int64
	closed  bool
}

// New creates a bus whose subscriber channels buffer bufSize records.
// Zero or negative gets a default of 64.
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{bufSize: bufSize}
}

// Subscribe returns a new receive channel. The channel is closed when the bus
// closes.
func (b *Bus) Subscribe() <-chan Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Record, b.bufSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers rec to every subscriber without blocking. If a subscriber's
// buffer is full, its oldest pending record is dropped to make room.
func (b *Bus) Publish(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			select {
			case <-ch:
				b.dropped++
			default:
			}
			select {
			case ch <- rec:
			default:
				b.dropped++
			}
		}
	}
	if b.dropped > 0 && b.dropped%100 == 0 {
		logging.Get(logging.CategoryBus).Warn("bus: %d records dropped to slow subscribers", b.dropped)
	}
}

// Dropped returns how many records were dropped to slow subscribers.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
