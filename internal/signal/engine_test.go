package signal

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine() *Engine {
	return NewEngine(EngineConfig{
		CacheTTL:      time.Minute,
		CacheMaxSize:  100,
		DebounceDelay: 10 * time.Millisecond,
	})
}

func TestEngine_DetectKnownMarker(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	signals := e.Detect("plan.md", "build the parser [bb] before friday")
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	s := signals[0]
	if s.Type != "bb" {
		t.Fatalf("type = %q, want bb", s.Type)
	}
	if s.Priority != 9 {
		t.Fatalf("priority = %d, want 9", s.Priority)
	}
	if s.RawText != "[bb]" {
		t.Fatalf("raw text = %q, want [bb]", s.RawText)
	}
	if s.Source != "plan.md" {
		t.Fatalf("source = %q, want plan.md", s.Source)
	}
	if s.ID == "" {
		t.Fatal("signal has no ID")
	}
	if !strings.Contains(s.Context, "[bb]") {
		t.Fatalf("context %q does not include the marker", s.Context)
	}
}

func TestEngine_DetectRepeatedMarkerDistinctPositions(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	signals := e.Detect("plan.md", "[bb] first\nand then [bb] again")
	if len(signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(signals))
	}
	for _, s := range signals {
		if s.Type != "bb" || s.Priority != 9 {
			t.Fatalf("signal = %+v, want bb priority 9", s)
		}
	}
	if signals[0].Position == signals[1].Position {
		t.Fatalf("positions not distinct: %+v", signals[0].Position)
	}
}

func TestEngine_DetectPositionsAreOneBased(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	signals := e.Detect("plan.md", "x [bb] y\n[tp] z")
	if len(signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(signals))
	}
	byType := map[string]Signal{}
	for _, s := range signals {
		byType[s.Type] = s
	}
	if p := byType["bb"].Position; p.Line != 1 || p.Column != 3 {
		t.Fatalf("bb position = %+v, want 1:3", p)
	}
	if p := byType["tp"].Position; p.Line != 2 || p.Column != 1 {
		t.Fatalf("tp position = %+v, want 2:1", p)
	}
}

func TestEngine_DetectUnknownCodeGetsDefaultPriority(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	signals := e.Detect("plan.md", "something odd [zz] here")
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Type != "zz" {
		t.Fatalf("type = %q, want zz", signals[0].Type)
	}
	if signals[0].Priority != DefaultPriority {
		t.Fatalf("priority = %d, want %d", signals[0].Priority, DefaultPriority)
	}
}

func TestEngine_DetectEmptyContent(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if got := e.Detect("plan.md", ""); got != nil {
		t.Fatalf("Detect(empty) = %v, want nil", got)
	}
	if total := e.Metrics().TotalScans; total != 0 {
		t.Fatalf("empty content counted as a scan: %d", total)
	}
}

func TestEngine_DetectUsesCache(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	first := e.Detect("plan.md", "do it [bb] now")
	second := e.Detect("plan.md", "do it [bb] now")

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("signal counts = %d / %d, want 1 / 1", len(first), len(second))
	}
	// The cached result is returned as-is, same IDs included.
	if first[0].ID != second[0].ID {
		t.Fatal("cache hit produced a fresh scan")
	}

	stats := e.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("cache stats = %+v, want 1 hit / 1 miss", stats)
	}
}

func TestEngine_MarkerFreeContentIsCached(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var notifications atomic.Int32
	e.Subscribe(func(string, []Signal) { notifications.Add(1) })

	const content = "plain text without any markers"
	if got := e.Detect("plain.md", content); len(got) != 0 {
		t.Fatalf("Detect = %v, want no signals", got)
	}
	if got := e.Detect("plain.md", content); len(got) != 0 {
		t.Fatalf("second Detect = %v, want no signals", got)
	}

	// The empty result is a real cache entry: the second call is a hit, not
	// a rescan.
	stats := e.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("cache stats = %+v, want 1 hit / 1 miss", stats)
	}

	// Only the first call (the miss) schedules the debounced reprocessing
	// task, so exactly one notification fires.
	time.Sleep(60 * time.Millisecond)
	if got := notifications.Load(); got != 1 {
		t.Fatalf("subscriber called %d times, want 1", got)
	}
}

func TestEngine_SubscriberGetsDebouncedNotification(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var mu sync.Mutex
	var calls int
	var lastPath string
	var lastSignals []Signal
	e.Subscribe(func(path string, signals []Signal) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		lastPath = path
		lastSignals = signals
	})

	// Rapid edits to the same path coalesce into one notification.
	e.Detect("plan.md", "draft [bb]")
	e.Detect("plan.md", "draft [bb] v2")
	e.Detect("plan.md", "draft [bb] v3 [tp]")

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		done := calls > 0
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("subscriber called %d times, want 1", calls)
	}
	if lastPath != "plan.md" {
		t.Fatalf("notified path = %q", lastPath)
	}
	if len(lastSignals) != 2 {
		t.Fatalf("notified with %d signals, want 2 from the last edit", len(lastSignals))
	}
}

func TestEngine_CustomPatternDetected(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	if err := e.AddPattern(PatternDef{Code: "xk", Name: "Custom", Category: "custom", Priority: 8}); err != nil {
		t.Fatalf("AddPattern: %v", err)
	}

	signals := e.Detect("plan.md", "custom marker [xk] live")
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Priority != 8 {
		t.Fatalf("priority = %d, want the registered 8", signals[0].Priority)
	}
}

func TestEngine_MetricsAfterScans(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Detect("a.md", "one [bb]")
	e.Detect("b.md", "two [tp]")

	m := e.Metrics()
	if m.TotalScans != 2 {
		t.Fatalf("TotalScans = %d, want 2", m.TotalScans)
	}
	if m.AvgLatencyMs < 0 {
		t.Fatalf("AvgLatencyMs = %f", m.AvgLatencyMs)
	}
}
