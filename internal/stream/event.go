// Package stream implements the real-time event pipeline: typed stream
// events, windowed deduplication, and a buffered flusher with bounded fan-out
// and throughput accounting.
package stream

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Priority of a stream event.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// valid reports whether p is one of the defined levels.
func (p Priority) valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Event is one unit of the stream pipeline. Created on ingestion, mutated
// only to attach ProcessedAt/LatencyMs, never reused across flush cycles.
type Event struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	Priority    Priority               `json:"priority"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	LatencyMs   float64                `json:"latency_ms,omitempty"`
}

// normalize fills ingestion defaults: generated ID, now timestamp, medium
// priority.
func normalize(ev Event) *Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if !ev.Priority.valid() {
		ev.Priority = PriorityMedium
	}
	return &ev
}

// serialize renders the event payload as stable text for signal detection.
// Keys are emitted in sorted order so identical payloads fingerprint
// identically.
func (ev *Event) serialize() string {
	if len(ev.Payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		v, err := json.Marshal(ev.Payload[k])
		if err != nil {
			continue
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = append(buf, v...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
