// Package lifecycle provides an in-process implementation of the agent
// lifecycle collaborator. Local keeps a registry of simulated agents that
// report healthy shortly after spawn; it backs the CLI when no external
// lifecycle service is wired in, and doubles as the test collaborator.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roboswarm/internal/spawn"
)

// DefaultStartupDelay is how long a local agent takes to report healthy.
const DefaultStartupDelay = 10 * time.Millisecond

// Local is an in-memory spawn.Lifecycle.
type Local struct {
	mu           sync.RWMutex
	configs      map[string]spawn.AgentConfig
	instances    map[string]*spawn.Instance
	startupDelay time.Duration
}

// NewLocal creates an empty local lifecycle.
func NewLocal() *Local {
	return &Local{
		configs:      make(map[string]spawn.AgentConfig),
		instances:    make(map[string]*spawn.Instance),
		startupDelay: DefaultStartupDelay,
	}
}

// SetStartupDelay overrides how long spawned agents take to become healthy.
func (l *Local) SetStartupDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startupDelay = d
}

// RegisterAgent stores the agent configuration.
func (l *Local) RegisterAgent(cfg spawn.AgentConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.configs[cfg.ID]; exists {
		return fmt.Errorf("agent %s already registered", cfg.ID)
	}
	l.configs[cfg.ID] = cfg
	return nil
}

// SpawnAgent creates the running instance. It becomes healthy after the
// startup delay.
func (l *Local) SpawnAgent(ctx context.Context, id string, opts spawn.SpawnOptions) error {
	l.mu.Lock()
	cfg, ok := l.configs[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("agent %s not registered", id)
	}
	inst := &spawn.Instance{
		ID:        id,
		AgentType: cfg.AgentType,
		StartedAt: time.Now(),
	}
	l.instances[id] = inst
	delay := l.startupDelay
	l.mu.Unlock()

	time.AfterFunc(delay, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.instances[id]; ok {
			cur.Healthy = true
		}
	})
	return nil
}

// GetAgentStatus returns a copy of the instance, or nil if unknown.
func (l *Local) GetAgentStatus(id string) *spawn.Instance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	inst, ok := l.instances[id]
	if !ok {
		return nil
	}
	cp := *inst
	return &cp
}

// GetAllAgentsStatus returns copies of every running instance.
func (l *Local) GetAllAgentsStatus() map[string]*spawn.Instance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*spawn.Instance, len(l.instances))
	for id, inst := range l.instances {
		cp := *inst
		out[id] = &cp
	}
	return out
}

// StopAgent removes the instance. Graceful and forced stops are identical for
// local agents.
func (l *Local) StopAgent(ctx context.Context, id string, graceful bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.instances[id]; !ok {
		return fmt.Errorf("agent %s not running", id)
	}
	delete(l.instances, id)
	delete(l.configs, id)
	return nil
}

// ExecuteTask records a successful run on the instance.
func (l *Local) ExecuteTask(ctx context.Context, id, task string, opts spawn.TaskOptions) (spawn.TaskResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[id]
	if !ok {
		return spawn.TaskResult{}, fmt.Errorf("agent %s not running", id)
	}
	inst.TotalRuns++
	inst.SuccessfulRuns++
	return spawn.TaskResult{Success: true, Output: "ok"}, nil
}

var _ spawn.Lifecycle = (*Local)(nil)
