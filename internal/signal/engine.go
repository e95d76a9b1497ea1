package signal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"roboswarm/internal/logging"
)

// =============================================================================
// SIGNAL DETECTION ENGINE
// =============================================================================
//
// The engine composes the pattern catalog, the result cache and the debounce
// registry. Detect runs synchronously on the calling path and returns
// immediately; on a cache miss it also schedules a per-path debounced
// reprocessing task that re-derives signals and notifies subscribers. That
// debounced path is the canonical, coalesced notification channel, decoupled
// from the synchronous return value.

// contextWindow is how many bytes of surrounding text are attached to each
// signal on either side of the marker.
const contextWindow = 40

// latencyAlpha is the smoothing factor of the rolling latency average.
const latencyAlpha = 0.1

// Subscriber receives the debounced, coalesced detection result for a path.
type Subscriber func(path string, signals []Signal)

// EngineConfig configures the detection engine. Zero values get defaults.
type EngineConfig struct {
	CacheTTL      time.Duration
	CacheMaxSize  int
	DebounceDelay time.Duration
}

// Engine is the signal detection engine. Its cache, debounce registry and
// metrics are owned by the engine and guarded internally; construct one and
// pass it by reference to all call sites.
type Engine struct {
	catalog  *Catalog
	cache    *Cache
	debounce *Debouncer

	mu          sync.Mutex
	subscribers []Subscriber

	// Metrics, guarded by metricsMu.
	metricsMu     sync.Mutex
	emaLatencyMs  float64
	totalScans    int64
	windowStart   time.Time
	windowSignals int64
	signalsPerSec int64
}

// NewEngine creates a detection engine with a fresh builtin catalog.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		catalog:  NewCatalog(),
		cache:    NewCache(cfg.CacheTTL, cfg.CacheMaxSize),
		debounce: NewDebouncer(cfg.DebounceDelay),
	}
}

// Catalog exposes the engine's pattern catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// CacheStats exposes the result cache counters.
func (e *Engine) CacheStats() CacheStats { return e.cache.Stats() }

// Subscribe registers a callback for debounced detection notifications.
func (e *Engine) Subscribe(fn Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// AddPattern validates and registers a custom pattern on the catalog.
func (e *Engine) AddPattern(def PatternDef) error {
	return e.catalog.AddPattern(def)
}

// Detect scans content for signal markers. Empty content returns nil without
// error. A cache hit returns the prior result immediately; a miss scans every
// enabled pattern synchronously, stores the result, and schedules the
// debounced reprocessing task for path. Internal match failures are recovered
// and logged; the caller gets whatever was produced before the failure.
func (e *Engine) Detect(path, content string) []Signal {
	if content == "" {
		return nil
	}
	start := time.Now()

	key := CacheKey(path, content)
	if cached, ok := e.cache.Get(key); ok {
		e.recordScan(start, len(cached))
		return cached
	}

	signals := e.scan(path, content)
	e.cache.Set(key, signals)

	e.debounce.Schedule(path, func() {
		coalesced := e.scan(path, content)
		e.notify(path, coalesced)
	})

	e.recordScan(start, len(signals))
	logging.DetectDebug("detect: path=%s signals=%d", path, len(signals))
	return signals
}

// scan runs every enabled pattern plus the catch-all marker regex over
// content, suppressing within-scan duplicates at the same (type, line, column)
// in favor of the highest-priority instance.
func (e *Engine) scan(path, content string) (out []Signal) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryDetect).Error("scan: recovered from match failure on %s: %v", path, r)
		}
	}()

	type scanKey struct {
		code string
		line int
		col  int
	}
	best := make(map[scanKey]*Signal)
	var order []scanKey

	lines := newLineIndex(content)
	now := time.Now()

	record := func(code string, startOff, endOff, priority int) {
		line, col := lines.locate(startOff)
		k := scanKey{code: code, line: line, col: col}
		if existing, ok := best[k]; ok {
			if priority > existing.Priority {
				existing.Priority = priority
			}
			return
		}
		lo := startOff - contextWindow
		if lo < 0 {
			lo = 0
		}
		hi := endOff + contextWindow
		if hi > len(content) {
			hi = len(content)
		}
		best[k] = &Signal{
			ID:        uuid.NewString(),
			Type:      code,
			Priority:  priority,
			Source:    path,
			Timestamp: now,
			Position:  Position{Line: line, Column: col},
			RawText:   content[startOff:endOff],
			Context:   content[lo:hi],
		}
		order = append(order, k)
	}

	// Catalog patterns first: each carries its registered priority.
	for _, p := range e.catalog.Enabled() {
		for _, m := range p.Regex.FindAllStringIndex(content, -1) {
			record(p.Code, m[0], m[1], p.Priority)
		}
	}

	// Catch-all marker scan: any bracketed 2-letter code, priority from the
	// catalog table or DefaultPriority when unknown.
	for _, m := range markerRegex.FindAllStringSubmatchIndex(content, -1) {
		code := content[m[2]:m[3]]
		record(code, m[0], m[1], e.catalog.PriorityFor(code))
	}

	for _, k := range order {
		out = append(out, *best[k])
	}
	return out
}

// notify delivers a coalesced detection to every subscriber.
func (e *Engine) notify(path string, signals []Signal) {
	e.mu.Lock()
	subs := make([]Subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(path, signals)
	}
}

// recordScan updates the rolling latency average and the per-second
// signals-processed counter.
func (e *Engine) recordScan(start time.Time, signalCount int) {
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	if e.totalScans == 0 {
		e.emaLatencyMs = elapsedMs
	} else {
		e.emaLatencyMs = e.emaLatencyMs*(1-latencyAlpha) + elapsedMs*latencyAlpha
	}
	e.totalScans++

	now := time.Now()
	if e.windowStart.IsZero() {
		e.windowStart = now
	}
	if now.Sub(e.windowStart) >= time.Second {
		e.signalsPerSec = e.windowSignals
		e.windowSignals = 0
		e.windowStart = now
	}
	e.windowSignals += int64(signalCount)
}

// EngineMetrics is a snapshot of detection metrics.
type EngineMetrics struct {
	AvgLatencyMs     float64 // exponential moving average, alpha=0.1
	TotalScans       int64
	SignalsPerSecond int64 // completed last-second window
	Cache            CacheStats
	PendingDebounce  int
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() EngineMetrics {
	e.metricsMu.Lock()
	m := EngineMetrics{
		AvgLatencyMs:     e.emaLatencyMs,
		TotalScans:       e.totalScans,
		SignalsPerSecond: e.signalsPerSec,
	}
	e.metricsMu.Unlock()
	m.Cache = e.cache.Stats()
	m.PendingDebounce = e.debounce.Pending()
	return m
}

// Close cancels all pending debounce tasks. Detect remains callable but no
// further debounced notifications fire.
func (e *Engine) Close() {
	e.debounce.Close()
}

// -----------------------------------------------------------------------------
// Line index
// -----------------------------------------------------------------------------

// lineIndex maps byte offsets to 1-based line/column positions.
type lineIndex struct {
	starts []int // byte offset of each line start
}

func newLineIndex(content string) *lineIndex {
	idx := &lineIndex{starts: []int{0}}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx.starts = append(idx.starts, i+1)
		}
	}
	return idx
}

func (li *lineIndex) locate(offset int) (line, col int) {
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1, offset - li.starts[lo] + 1
}
