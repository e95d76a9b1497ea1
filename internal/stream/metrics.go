package stream

import (
	"sync"
	"time"
)

// latencySampleWindow is how many per-event latency samples feed the rolling
// average.
const latencySampleWindow = 100

// metrics tracks pipeline throughput and latency. Throughput is recomputed at
// most once per second as totalEvents / elapsedMs * 1000; latency is a rolling
// average over the last latencySampleWindow samples plus an all-time peak.
type metrics struct {
	mu sync.Mutex

	startTime   time.Time
	totalEvents int64

	lastCalc   time.Time
	throughput float64 // events per second

	samples   [latencySampleWindow]float64
	sampleIdx int
	sampleLen int
	peakMs    float64

	flushes    int64
	flushedTot int64
	failures   int64
}

func newMetrics() *metrics {
	now := time.Now()
	return &metrics{startTime: now, lastCalc: now}
}

// recordProcessed accounts one completed event and its latency.
func (m *metrics) recordProcessed(latencyMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalEvents++
	m.samples[m.sampleIdx] = latencyMs
	m.sampleIdx = (m.sampleIdx + 1) % latencySampleWindow
	if m.sampleLen < latencySampleWindow {
		m.sampleLen++
	}
	if latencyMs > m.peakMs {
		m.peakMs = latencyMs
	}

	now := time.Now()
	if now.Sub(m.lastCalc) >= time.Second {
		elapsedMs := float64(now.Sub(m.startTime).Milliseconds())
		if elapsedMs > 0 {
			m.throughput = float64(m.totalEvents) / elapsedMs * 1000
		}
		m.lastCalc = now
	}
}

// recordFlush accounts one flush cycle of n events.
func (m *metrics) recordFlush(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.flushedTot += int64(n)
}

// recordFailure accounts one isolated per-event processing failure.
func (m *metrics) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// PipelineMetrics is a snapshot of the stream pipeline counters.
type PipelineMetrics struct {
	TotalEvents   int64
	EventsPerSec  float64
	AvgLatencyMs  float64 // rolling average over the last 100 samples
	PeakLatencyMs float64
	Flushes       int64
	EventsFlushed int64
	EventFailures int64
}

// snapshot returns current counters.
func (m *metrics) snapshot() PipelineMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg float64
	if m.sampleLen > 0 {
		var sum float64
		for i := 0; i < m.sampleLen; i++ {
			sum += m.samples[i]
		}
		avg = sum / float64(m.sampleLen)
	}
	return PipelineMetrics{
		TotalEvents:   m.totalEvents,
		EventsPerSec:  m.throughput,
		AvgLatencyMs:  avg,
		PeakLatencyMs: m.peakMs,
		Flushes:       m.flushes,
		EventsFlushed: m.flushedTot,
		EventFailures: m.failures,
	}
}
