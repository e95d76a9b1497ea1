package dispatch

import (
	"sort"

	"roboswarm/internal/logging"
	"roboswarm/internal/signal"
	"roboswarm/internal/usage"
)

// Gate turns a signal plus a running-agent snapshot into a spawn decision,
// enforcing per-type concurrency ceilings with scored fallback.
type Gate struct {
	tables Tables
	scorer *Scorer
}

// NewGate creates a capacity gate over the static dispatch tables.
func NewGate(tables Tables, tracker *usage.Tracker) *Gate {
	return &Gate{
		tables: tables,
		scorer: NewScorer(tables.Capacity, tracker),
	}
}

// Tables exposes the gate's static configuration.
func (g *Gate) Tables() Tables { return g.tables }

// Decide selects an agent type for sig under current capacity, or rejects.
//
// The snapshot is a live read, not a reservation: concurrent Decide calls can
// both observe spare capacity for the same type and both accept. Deployments
// running a single dispatch loop never hit this; see DESIGN.md.
func (g *Gate) Decide(sig signal.Signal, snap Snapshot) Decision {
	candidates := g.tables.Mapping["["+sig.Type+"]"]
	if len(candidates) == 0 {
		logging.Dispatch("decide: signal %s has no mapping, rejected", sig.Type)
		return Decision{
			ShouldSpawn:       false,
			Priority:          g.priorityFor(sig.Type),
			Reason:            ReasonNoMapping,
			AlternativeAgents: g.tables.KnownTypes(),
		}
	}

	// Rank candidates by score, stable: ties keep original mapping order.
	ranked := make([]string, len(candidates))
	copy(ranked, candidates)
	scores := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		scores[c] = g.scorer.Score(c, snap)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	top := ranked[0]
	if g.hasCapacity(top, snap) {
		logging.Dispatch("decide: signal %s -> %s (score=%.1f)", sig.Type, top, scores[top])
		return Decision{
			ShouldSpawn:       true,
			AgentType:         top,
			Priority:          g.priorityFor(sig.Type),
			Reason:            ReasonTopCandidate,
			AlternativeAgents: ranked[1:],
		}
	}

	// Primary at capacity: first below-capacity alternative in score order.
	for i, alt := range ranked[1:] {
		if g.hasCapacity(alt, snap) {
			remaining := make([]string, 0, len(ranked)-1)
			remaining = append(remaining, ranked[1+i+1:]...)
			logging.Dispatch("decide: signal %s -> %s (primary %s at capacity)", sig.Type, alt, top)
			return Decision{
				ShouldSpawn:       true,
				AgentType:         alt,
				Priority:          g.priorityFor(sig.Type),
				Reason:            ReasonPrimaryBusy,
				AlternativeAgents: remaining,
			}
		}
	}

	logging.Dispatch("decide: signal %s rejected, all mapped agents at capacity", sig.Type)
	return Decision{
		ShouldSpawn:       false,
		Priority:          g.priorityFor(sig.Type),
		Reason:            ReasonAtCapacity,
		AlternativeAgents: ranked,
	}
}

// hasCapacity reports whether agentType is below its ceiling. Types absent
// from the capacity table never have capacity.
func (g *Gate) hasCapacity(agentType string, snap Snapshot) bool {
	max, ok := g.tables.Capacity[agentType]
	if !ok {
		return false
	}
	return snap.Running[agentType] < max
}

// priorityFor resolves the static per-signal dispatch priority.
func (g *Gate) priorityFor(code string) int {
	if p, ok := g.tables.SignalPriority[code]; ok {
		return p
	}
	return DefaultSignalPriority
}
