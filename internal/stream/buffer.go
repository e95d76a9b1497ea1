package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"roboswarm/internal/bus"
	"roboswarm/internal/logging"
	"roboswarm/internal/signal"
)

// =============================================================================
// EVENT BUFFER / FLUSHER
// =============================================================================
//
// The Processor accumulates typed events in memory and flushes them on three
// triggers: buffer full, critical-priority arrival, or the periodic timer.
// Only one flush runs at a time (busy flag); events arriving mid-flush
// accumulate for the next cycle, so ingestion never blocks and no event is
// processed twice. Inside a flush, events are processed in chunks with all
// chunk members running in parallel and the flush waiting for the whole chunk
// before starting the next - bounded fan-out, not unbounded.

// Processor defaults.
const (
	DefaultMaxBufferSize  = 1000
	DefaultFlushInterval  = 100 * time.Millisecond
	DefaultMaxConcurrency = 10
)

// ProcessorConfig configures the stream processor. Zero values get defaults.
type ProcessorConfig struct {
	MaxBufferSize  int           // flush when the buffer reaches this size
	FlushInterval  time.Duration // periodic flush cadence
	MaxConcurrency int           // chunk size for parallel processing
	DedupWindow    time.Duration // repeat-signal suppression window
}

// Processor is the buffered event pipeline adapter over the detection engine.
type Processor struct {
	cfg    ProcessorConfig
	engine *signal.Engine
	dedup  *Deduplicator
	bus    *bus.Bus

	mu  sync.Mutex
	buf []*Event

	flushing atomic.Bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	metrics *metrics
}

// NewProcessor creates a processor and starts its periodic flush loop.
func NewProcessor(cfg ProcessorConfig, engine *signal.Engine, eventBus *bus.Bus) *Processor {
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultMaxBufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}

	p := &Processor{
		cfg:     cfg,
		engine:  engine,
		dedup:   NewDeduplicator(cfg.DedupWindow),
		bus:     eventBus,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		metrics: newMetrics(),
	}
	go p.run()

	logging.Stream("processor: started (buffer=%d, interval=%v, concurrency=%d, dedup=%v)",
		cfg.MaxBufferSize, cfg.FlushInterval, cfg.MaxConcurrency, cfg.DedupWindow)
	return p
}

// ProcessEvent ingests an event, fire-and-forget. The event is normalized
// (generated ID, now timestamp, medium priority) and buffered; completion is
// observable through the bus. A full buffer or a critical-priority event
// triggers an immediate flush on a separate goroutine.
func (p *Processor) ProcessEvent(ev Event) {
	e := normalize(ev)

	p.mu.Lock()
	p.buf = append(p.buf, e)
	full := len(p.buf) >= p.cfg.MaxBufferSize
	p.mu.Unlock()

	if full || e.Priority == PriorityCritical {
		go p.flush()
	}
}

// run drives the periodic flush timer.
func (p *Processor) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

// flush drains up to MaxBufferSize buffered events through the detection and
// dedup path. Guarded by the busy flag: a flush already in progress makes
// this call a no-op, and arrivals during the flush wait for the next cycle.
func (p *Processor) flush() {
	if !p.flushing.CompareAndSwap(false, true) {
		return
	}
	defer p.flushing.Store(false)

	p.mu.Lock()
	n := len(p.buf)
	if n == 0 {
		p.mu.Unlock()
		return
	}
	if n > p.cfg.MaxBufferSize {
		n = p.cfg.MaxBufferSize
	}
	batch := p.buf[:n:n]
	p.buf = p.buf[n:]
	p.mu.Unlock()

	logging.StreamDebug("flush: %d events", len(batch))

	for start := 0; start < len(batch); start += p.cfg.MaxConcurrency {
		end := start + p.cfg.MaxConcurrency
		if end > len(batch) {
			end = len(batch)
		}
		var g errgroup.Group
		for _, ev := range batch[start:end] {
			ev := ev
			g.Go(func() error {
				// A member failure is isolated: logged and counted, never
				// propagated to siblings or the flush.
				defer func() {
					if r := recover(); r != nil {
						p.metrics.recordFailure()
						logging.Get(logging.CategoryStream).Error("flush: event %s failed: %v", ev.ID, r)
					}
				}()
				p.processOne(ev)
				return nil
			})
		}
		g.Wait() // whole chunk completes before the next starts
	}

	p.metrics.recordFlush(len(batch))
}

// processOne detects signals in the event's serialized content, filters them
// through the dedup window, and publishes a normalized record downstream.
func (p *Processor) processOne(ev *Event) {
	content := ev.serialize()
	source := ev.Source
	if source == "" {
		source = "stream:" + ev.Type
	}

	detected := p.engine.Detect(source, content)

	var admitted []signal.Signal
	for _, sig := range detected {
		if p.dedup.Admit(sig.Type, content, sig.Context) {
			admitted = append(admitted, sig)
		}
	}

	now := time.Now()
	ev.ProcessedAt = &now
	ev.LatencyMs = float64(now.Sub(ev.Timestamp).Microseconds()) / 1000.0
	p.metrics.recordProcessed(ev.LatencyMs)

	if len(admitted) == 0 {
		return
	}

	p.bus.Publish(bus.Record{
		ID:        ev.ID,
		Type:      bus.RecordTypeSignalDetected,
		Timestamp: now,
		Source:    source,
		Data: bus.RecordData{
			Signals:     admitted,
			SignalCount: len(admitted),
		},
		Metadata: bus.RecordMetadata{
			Priority:  string(ev.Priority),
			LatencyMs: ev.LatencyMs,
		},
	})
}

// BufferLen returns the number of buffered, not-yet-flushed events.
func (p *Processor) BufferLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Metrics returns a snapshot of pipeline counters.
func (p *Processor) Metrics() PipelineMetrics {
	return p.metrics.snapshot()
}

// DedupStats returns the deduplicator counters.
func (p *Processor) DedupStats() DedupStats {
	return p.dedup.Stats()
}

// Stop cancels the flush timer, drains whatever remains buffered, then stops
// the deduplicator sweep. The final flush may lose the busy flag to a flush
// still in progress, so draining retries until the buffer is empty and no
// flush is in flight.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.doneCh
		for {
			p.flush()
			if p.BufferLen() == 0 && !p.flushing.Load() {
				break
			}
			time.Sleep(time.Millisecond)
		}
		p.dedup.Stop()
		logging.Stream("processor: stopped")
	})
}
