package dispatch

import (
	"time"

	"roboswarm/internal/logging"
	"roboswarm/internal/usage"
)

// Scoring constants. These are behavioral contract, not tuning knobs: the
// capacity ordering and fallback tests depend on them.
const (
	baseScore          = 100.0
	capacityPenalty    = 50.0 // multiplied by running/max
	recentUsePenalty   = 10.0 // per past dispatch, last use < 1h ago
	moderateUsePenalty = 5.0  // per past dispatch, last use 1-6h ago
	staleBonus         = 20.0 // flat, last use > 24h ago
	successBonusFactor = 20.0 // multiplied by average success rate
)

// Scorer computes dispatch suitability scores for agent types.
type Scorer struct {
	capacity map[string]int
	usage    *usage.Tracker
	now      func() time.Time
}

// NewScorer creates a scorer over the capacity table and usage records.
// A nil tracker scores with no usage history.
func NewScorer(capacity map[string]int, tracker *usage.Tracker) *Scorer {
	return &Scorer{
		capacity: capacity,
		usage:    tracker,
		now:      time.Now,
	}
}

// Score rates agentType for dispatch given the running-agent snapshot.
//
// Base 100, minus a capacity penalty proportional to how loaded the type is,
// adjusted for how recently and heavily the type has been used, plus a bonus
// for the average success rate of its tracked instances. Clamped to >= 0.
func (s *Scorer) Score(agentType string, snap Snapshot) float64 {
	score := baseScore

	// Capacity penalty: fully loaded costs the whole capacityPenalty.
	if max := s.capacity[agentType]; max > 0 {
		ratio := float64(snap.Running[agentType]) / float64(max)
		score -= ratio * capacityPenalty
	}

	// Recency/frequency adjustment from the usage record.
	if s.usage != nil {
		if rec, ok := s.usage.Get(agentType); ok && !rec.LastUsedAt.IsZero() {
			elapsed := s.now().Sub(rec.LastUsedAt)
			switch {
			case elapsed < time.Hour:
				score -= float64(rec.Count) * recentUsePenalty
			case elapsed < 6*time.Hour:
				score -= float64(rec.Count) * moderateUsePenalty
			case elapsed > 24*time.Hour:
				score += staleBonus
			}
		}
	}

	// Success bonus: mean success rate across tracked instances.
	if instances := snap.Instances[agentType]; len(instances) > 0 {
		var sum float64
		for _, inst := range instances {
			sum += inst.successRate()
		}
		score += (sum / float64(len(instances))) * successBonusFactor
	}

	if score < 0 {
		score = 0
	}
	logging.DispatchDebug("score: type=%s score=%.1f running=%d", agentType, score, snap.Running[agentType])
	return score
}
