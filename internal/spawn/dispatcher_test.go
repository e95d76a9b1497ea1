package spawn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeLifecycle is an instrumented Lifecycle for dispatcher tests.
type fakeLifecycle struct {
	mu         sync.Mutex
	registered []AgentConfig
	instances  map[string]*Instance

	healthy     bool          // spawned agents report healthy immediately
	spawnDelay  time.Duration // simulated spawn latency
	registerErr error
	spawnErr    error

	inFlight    int
	maxInFlight int
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{
		instances: make(map[string]*Instance),
		healthy:   true,
	}
}

func (f *fakeLifecycle) RegisterAgent(cfg AgentConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, cfg)
	return nil
}

func (f *fakeLifecycle) SpawnAgent(ctx context.Context, id string, opts SpawnOptions) error {
	f.mu.Lock()
	if f.spawnErr != nil {
		f.mu.Unlock()
		return f.spawnErr
	}
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.spawnDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	var cfg AgentConfig
	for _, c := range f.registered {
		if c.ID == id {
			cfg = c
		}
	}
	f.instances[id] = &Instance{ID: id, AgentType: cfg.AgentType, Healthy: f.healthy, StartedAt: time.Now()}
	f.mu.Unlock()
	return nil
}

func (f *fakeLifecycle) GetAgentStatus(id string) *Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return nil
	}
	cp := *inst
	return &cp
}

func (f *fakeLifecycle) GetAllAgentsStatus() map[string]*Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*Instance, len(f.instances))
	for id, inst := range f.instances {
		cp := *inst
		out[id] = &cp
	}
	return out
}

func (f *fakeLifecycle) StopAgent(ctx context.Context, id string, graceful bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
	return nil
}

func (f *fakeLifecycle) ExecuteTask(ctx context.Context, id, task string, opts TaskOptions) (TaskResult, error) {
	return TaskResult{Success: true}, nil
}

func (f *fakeLifecycle) registeredTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.registered))
	for i, cfg := range f.registered {
		out[i] = cfg.AgentType
	}
	return out
}

func TestDispatcher_SpawnOneSuccess(t *testing.T) {
	lc := newFakeLifecycle()
	d := NewDispatcher(DispatcherConfig{WaitForHealth: true, HealthPollInterval: 5 * time.Millisecond}, lc)

	res := d.SpawnOne(context.Background(), Request{AgentType: TypeDeveloper, Task: "fix the build", Priority: 9})
	if !res.Success {
		t.Fatalf("spawn failed: %s", res.Error)
	}
	if !strings.HasPrefix(res.AgentID, TypeDeveloper+"-") {
		t.Fatalf("agent ID = %q, want %s- prefix", res.AgentID, TypeDeveloper)
	}
	if res.AgentType != TypeDeveloper {
		t.Fatalf("agent type = %q", res.AgentType)
	}
	if d.ActiveSpawns() != 0 {
		t.Fatalf("ActiveSpawns = %d after completion, want 0", d.ActiveSpawns())
	}

	// The registered config carries the static per-type profiles.
	if len(lc.registered) != 1 {
		t.Fatalf("registered %d agents, want 1", len(lc.registered))
	}
	if lc.registered[0].Resources != ResourceProfileFor(TypeDeveloper) {
		t.Fatalf("resources = %+v", lc.registered[0].Resources)
	}
}

func TestDispatcher_SpawnManyHighestPriorityFirst(t *testing.T) {
	lc := newFakeLifecycle()
	// Window of one serializes processing, exposing the order.
	d := NewDispatcher(DispatcherConfig{MaxConcurrentSpawns: 1, WaitForHealth: false}, lc)

	results := d.SpawnMany(context.Background(), []Request{
		{AgentType: TypeQA, Priority: 4},
		{AgentType: TypeDeveloper, Priority: 9},
		{AgentType: TypeUX, Priority: 5},
	})

	wantOrder := []string{TypeDeveloper, TypeUX, TypeQA}
	gotOrder := lc.registeredTypes()
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("registered %d agents, want %d", len(gotOrder), len(wantOrder))
	}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("processing order = %v, want %v", gotOrder, wantOrder)
		}
		if results[i].AgentType != wantOrder[i] {
			t.Fatalf("results order = %v, want %v", results, wantOrder)
		}
		if !results[i].Success {
			t.Fatalf("spawn %d failed: %s", i, results[i].Error)
		}
	}
}

func TestDispatcher_SpawnManyBoundsConcurrency(t *testing.T) {
	lc := newFakeLifecycle()
	lc.spawnDelay = 20 * time.Millisecond
	d := NewDispatcher(DispatcherConfig{MaxConcurrentSpawns: 5, WaitForHealth: false}, lc)

	reqs := make([]Request, 12)
	for i := range reqs {
		reqs[i] = Request{AgentType: TypeDeveloper, Priority: 5}
	}
	results := d.SpawnMany(context.Background(), reqs)

	if len(results) != 12 {
		t.Fatalf("got %d results, want 12", len(results))
	}
	for i, r := range results {
		if !r.Success {
			t.Fatalf("spawn %d failed: %s", i, r.Error)
		}
	}
	if lc.maxInFlight > 5 {
		t.Fatalf("max in-flight spawns = %d, want <= 5", lc.maxInFlight)
	}
	if lc.maxInFlight < 2 {
		t.Fatalf("max in-flight spawns = %d, window members should run in parallel", lc.maxInFlight)
	}
}

func TestDispatcher_HealthTimeoutFailsWithoutRetry(t *testing.T) {
	lc := newFakeLifecycle()
	lc.healthy = false
	d := NewDispatcher(DispatcherConfig{
		WaitForHealth:      true,
		HealthTimeout:      50 * time.Millisecond,
		HealthPollInterval: 10 * time.Millisecond,
	}, lc)

	res := d.SpawnOne(context.Background(), Request{AgentType: TypeQA, Priority: 4})
	if res.Success {
		t.Fatal("spawn reported success for an agent that never got healthy")
	}
	if !strings.Contains(res.Error, ErrHealthTimeout.Error()) {
		t.Fatalf("error = %q, want health timeout", res.Error)
	}
	// One attempt only.
	if len(lc.registered) != 1 {
		t.Fatalf("registered %d times, want 1 (no retry)", len(lc.registered))
	}
	if d.ActiveSpawns() != 0 {
		t.Fatalf("ActiveSpawns = %d after failure, want 0", d.ActiveSpawns())
	}
}

func TestDispatcher_PerRequestTimeoutOverride(t *testing.T) {
	lc := newFakeLifecycle()
	lc.healthy = false
	d := NewDispatcher(DispatcherConfig{
		WaitForHealth:      true,
		HealthTimeout:      time.Minute,
		HealthPollInterval: 5 * time.Millisecond,
	}, lc)

	start := time.Now()
	res := d.SpawnOne(context.Background(), Request{AgentType: TypeQA, Timeout: 30 * time.Millisecond})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request timeout not honored, took %v", elapsed)
	}
}

func TestDispatcher_RegisterFailure(t *testing.T) {
	lc := newFakeLifecycle()
	lc.registerErr = errors.New("registry full")
	d := NewDispatcher(DispatcherConfig{WaitForHealth: false}, lc)

	res := d.SpawnOne(context.Background(), Request{AgentType: TypeUX})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "register failed") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestDispatcher_SpawnFailure(t *testing.T) {
	lc := newFakeLifecycle()
	lc.spawnErr = errors.New("no executor")
	d := NewDispatcher(DispatcherConfig{WaitForHealth: false}, lc)

	res := d.SpawnOne(context.Background(), Request{AgentType: TypeUX})
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "spawn failed") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestDispatcher_ContextCancelDuringHealthWait(t *testing.T) {
	lc := newFakeLifecycle()
	lc.healthy = false
	d := NewDispatcher(DispatcherConfig{
		WaitForHealth:      true,
		HealthTimeout:      time.Minute,
		HealthPollInterval: 10 * time.Millisecond,
	}, lc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res := d.SpawnOne(ctx, Request{AgentType: TypeQA})
	if res.Success {
		t.Fatal("expected cancellation failure")
	}
	if !strings.Contains(res.Error, "cancelled") {
		t.Fatalf("error = %q, want cancellation", res.Error)
	}
}

func TestDispatcher_EmptyBatch(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, newFakeLifecycle())
	if got := d.SpawnMany(context.Background(), nil); got != nil {
		t.Fatalf("SpawnMany(nil) = %v, want nil", got)
	}
}

func TestProfiles_KnownAndDefault(t *testing.T) {
	if p := ResourceProfileFor(TypeDeveloper); p.MemoryMB != 2048 {
		t.Fatalf("developer profile = %+v", p)
	}
	if p := ResourceProfileFor("robo-unknown"); p != defaultResourceProfile {
		t.Fatalf("unknown type profile = %+v, want default", p)
	}
	if p := TokenProfileFor("robo-unknown"); p != defaultTokenProfile {
		t.Fatalf("unknown type token profile = %+v, want default", p)
	}
}
