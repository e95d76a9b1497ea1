package spawn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"roboswarm/internal/logging"
)

// =============================================================================
// BATCH SPAWN DISPATCHER
// =============================================================================
//
// Per-dispatch state machine: Signal -> Scored -> {Selected |
// Selected-Alternative | Rejected}; Selected transitions to Spawning ->
// {Success | Failure}. Rejected is terminal with no spawn attempt. This file
// implements the Spawning leg: requests are sorted by priority and processed
// in fixed concurrency windows, each spawn optionally blocking on agent
// health before it counts as success. There is no automatic retry; callers
// resubmit failed requests.

// Dispatcher defaults.
const (
	DefaultMaxConcurrentSpawns = 5
	DefaultHealthTimeout       = 60 * time.Second
	defaultHealthPollInterval  = 100 * time.Millisecond
)

// ErrHealthTimeout is wrapped into failed results when the health wait
// expires.
var ErrHealthTimeout = errors.New("agent health wait timed out")

// Request asks for one agent of a type to be spawned for a task.
type Request struct {
	AgentType string        `json:"agent_type"`
	Task      string        `json:"task"`
	Priority  int           `json:"priority"`
	Timeout   time.Duration `json:"timeout,omitempty"` // health-wait override
}

// Result is the outcome of one spawn attempt.
type Result struct {
	Success   bool          `json:"success"`
	AgentID   string        `json:"agent_id,omitempty"`
	AgentType string        `json:"agent_type"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// DispatcherConfig configures the batch dispatcher.
type DispatcherConfig struct {
	MaxConcurrentSpawns int           // window size for parallel spawn attempts
	HealthTimeout       time.Duration // max wait for a spawned agent to report healthy
	WaitForHealth       bool          // block until healthy before reporting success
	HealthPollInterval  time.Duration // polling cadence during the health wait
}

// DefaultDispatcherConfig returns the standard settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrentSpawns: DefaultMaxConcurrentSpawns,
		HealthTimeout:       DefaultHealthTimeout,
		WaitForHealth:       true,
		HealthPollInterval:  defaultHealthPollInterval,
	}
}

// Dispatcher issues concurrency-windowed batch spawns against the lifecycle
// collaborator.
type Dispatcher struct {
	cfg       DispatcherConfig
	lifecycle Lifecycle

	mu     sync.Mutex
	active map[string]Request // agent ID -> request, mid-flight only
}

// NewDispatcher creates a dispatcher. Zero numeric config values get
// defaults; WaitForHealth is taken as given.
func NewDispatcher(cfg DispatcherConfig, lc Lifecycle) *Dispatcher {
	if cfg.MaxConcurrentSpawns <= 0 {
		cfg.MaxConcurrentSpawns = DefaultMaxConcurrentSpawns
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	if cfg.HealthPollInterval <= 0 {
		cfg.HealthPollInterval = defaultHealthPollInterval
	}
	return &Dispatcher{
		cfg:       cfg,
		lifecycle: lc,
		active:    make(map[string]Request),
	}
}

// SpawnMany spawns agents for every request, highest priority first, in fixed
// windows of MaxConcurrentSpawns: all spawns in a window run in parallel and
// the window completes before the next starts, bounding in-flight spawn
// attempts regardless of batch size. Results are returned in processing
// order. A failed member never aborts its siblings.
func (d *Dispatcher) SpawnMany(ctx context.Context, requests []Request) []Result {
	if len(requests) == 0 {
		return nil
	}

	sorted := make([]Request, len(requests))
	copy(sorted, requests)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	logging.Spawn("spawnMany: %d requests, window=%d", len(sorted), d.cfg.MaxConcurrentSpawns)

	results := make([]Result, len(sorted))
	for start := 0; start < len(sorted); start += d.cfg.MaxConcurrentSpawns {
		end := start + d.cfg.MaxConcurrentSpawns
		if end > len(sorted) {
			end = len(sorted)
		}
		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = d.SpawnOne(ctx, sorted[i])
				return nil
			})
		}
		g.Wait() // window completes before the next starts
	}
	return results
}

// SpawnOne performs a single spawn: builds the lifecycle config from the
// static per-type profiles, registers and spawns the agent, and (when
// configured) blocks until it reports healthy or the timeout elapses. On
// timeout or failure the in-flight slot is released and the result carries
// success=false with an error string; the caller decides whether to resubmit.
func (d *Dispatcher) SpawnOne(ctx context.Context, req Request) Result {
	start := time.Now()
	agentID := fmt.Sprintf("%s-%s", req.AgentType, uuid.NewString()[:8])

	cfg := AgentConfig{
		ID:        agentID,
		AgentType: req.AgentType,
		Task:      req.Task,
		Priority:  req.Priority,
		Resources: ResourceProfileFor(req.AgentType),
		Tokens:    TokenProfileFor(req.AgentType),
	}

	d.mu.Lock()
	d.active[agentID] = req
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.active, agentID)
		d.mu.Unlock()
	}()

	if err := d.lifecycle.RegisterAgent(cfg); err != nil {
		logging.Get(logging.CategorySpawn).Error("spawnOne: register %s failed: %v", agentID, err)
		return Result{AgentType: req.AgentType, Duration: time.Since(start), Error: fmt.Sprintf("register failed: %v", err)}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.cfg.HealthTimeout
	}

	if err := d.lifecycle.SpawnAgent(ctx, agentID, SpawnOptions{Timeout: timeout}); err != nil {
		logging.Get(logging.CategorySpawn).Error("spawnOne: spawn %s failed: %v", agentID, err)
		return Result{AgentType: req.AgentType, Duration: time.Since(start), Error: fmt.Sprintf("spawn failed: %v", err)}
	}

	if d.cfg.WaitForHealth {
		if err := d.waitForHealth(ctx, agentID, timeout); err != nil {
			logging.Get(logging.CategorySpawn).Warn("spawnOne: %s unhealthy: %v", agentID, err)
			return Result{AgentType: req.AgentType, Duration: time.Since(start), Error: err.Error()}
		}
	}

	logging.Spawn("spawnOne: %s spawned in %v", agentID, time.Since(start))
	return Result{
		Success:   true,
		AgentID:   agentID,
		AgentType: req.AgentType,
		Duration:  time.Since(start),
	}
}

// waitForHealth polls the collaborator until the agent reports healthy, the
// wall-clock timeout elapses, or ctx is cancelled.
func (d *Dispatcher) waitForHealth(ctx context.Context, agentID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(d.cfg.HealthPollInterval)
	defer ticker.Stop()

	for {
		if inst := d.lifecycle.GetAgentStatus(agentID); inst != nil && inst.Healthy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v (agent %s)", ErrHealthTimeout, timeout, agentID)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health wait cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// ActiveSpawns returns how many spawn requests are currently mid-flight.
// Distinct from the lifecycle collaborator's running-instance registry.
func (d *Dispatcher) ActiveSpawns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}
