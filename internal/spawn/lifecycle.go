// Package spawn turns accepted dispatch decisions into lifecycle spawn
// requests: priority-sorted, concurrency-windowed batches with health-wait
// gating. Actual agent execution belongs to the Lifecycle collaborator; this
// package only drives it.
package spawn

import (
	"context"
	"time"
)

// Lifecycle event names emitted by the collaborator.
const (
	EventAgentSpawned     = "agent_spawned"
	EventAgentSpawnFailed = "agent_spawn_failed"
	EventTaskCompleted    = "task_completed"
	EventTaskFailed       = "task_failed"
	EventAgentUnhealthy   = "agent_unhealthy"
)

// AgentConfig registers an agent with the lifecycle collaborator before
// spawning. Resources and Tokens come from the static per-type profiles.
type AgentConfig struct {
	ID        string
	AgentType string
	Task      string
	Priority  int
	Resources ResourceProfile
	Tokens    TokenProfile
}

// SpawnOptions control one spawn call.
type SpawnOptions struct {
	Timeout time.Duration
}

// TaskOptions control one task execution on a running agent.
type TaskOptions struct {
	Timeout time.Duration
}

// TaskResult is the outcome of ExecuteTask.
type TaskResult struct {
	Success bool
	Output  string
	Error   string
}

// Instance is the collaborator's view of a running agent.
type Instance struct {
	ID             string
	AgentType      string
	Healthy        bool
	StartedAt      time.Time
	TotalRuns      int64
	SuccessfulRuns int64
}

// Lifecycle is the external agent-lifecycle collaborator. roboswarm decides
// which agent type should run and whether capacity allows it; the
// collaborator owns execution.
type Lifecycle interface {
	RegisterAgent(cfg AgentConfig) error
	SpawnAgent(ctx context.Context, id string, opts SpawnOptions) error
	GetAgentStatus(id string) *Instance // nil if unknown
	GetAllAgentsStatus() map[string]*Instance
	StopAgent(ctx context.Context, id string, graceful bool) error
	ExecuteTask(ctx context.Context, id, task string, opts TaskOptions) (TaskResult, error)
}
