// Package dispatch decides which agent type should handle a detected signal:
// multi-factor scoring of mapped candidates, per-type capacity ceilings, and
// fallback to lower-scored candidates with spare capacity.
package dispatch

import "sort"

// Decision reasons.
const (
	ReasonNoMapping       = "no mapping"
	ReasonAtCapacity      = "all mapped agents at capacity"
	ReasonPrimaryBusy     = "primary at capacity, using alternative"
	ReasonTopCandidate    = "top scored candidate"
	DefaultSignalPriority = 5
)

// InstanceStats summarizes one tracked agent instance of a type.
type InstanceStats struct {
	TotalRuns      int64
	SuccessfulRuns int64
}

// successRate is successful/total, 0 with no runs.
func (s InstanceStats) successRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessfulRuns) / float64(s.TotalRuns)
}

// Snapshot is a live read of the running-agent state taken at decision time.
// It is not a reservation: two concurrent decisions can both observe spare
// capacity for the same type and both accept.
type Snapshot struct {
	Running   map[string]int             // agent type -> currently running count
	Instances map[string][]InstanceStats // agent type -> tracked instances
}

// Decision is the outcome of one dispatch call. Produced fresh per call,
// never persisted by this package.
type Decision struct {
	ShouldSpawn       bool     `json:"should_spawn"`
	AgentType         string   `json:"agent_type,omitempty"`
	Priority          int      `json:"priority"`
	Reason            string   `json:"reason"`
	AlternativeAgents []string `json:"alternative_agents,omitempty"`
}

// Tables is the static dispatch configuration: loaded, not computed.
type Tables struct {
	// Mapping keys are bracketed marker codes, e.g. "[bb]" -> candidate
	// agent types in preference order.
	Mapping map[string][]string
	// SignalPriority keys are bare codes, e.g. "bb" -> 9. Codes absent from
	// the table dispatch at DefaultSignalPriority.
	SignalPriority map[string]int
	// Capacity is the per-agent-type concurrency ceiling.
	Capacity map[string]int
}

// KnownTypes returns every agent type with a capacity entry, sorted.
func (t Tables) KnownTypes() []string {
	out := make([]string, 0, len(t.Capacity))
	for name := range t.Capacity {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
