// Package orchestrator composes the detection engine, stream processor,
// capacity gate and batch dispatcher into the in-process coordination API:
// detect signals, buffer events, decide, spawn.
package orchestrator

import (
	"context"
	"sync"

	"roboswarm/internal/bus"
	"roboswarm/internal/config"
	"roboswarm/internal/dispatch"
	"roboswarm/internal/logging"
	"roboswarm/internal/signal"
	"roboswarm/internal/spawn"
	"roboswarm/internal/store"
	"roboswarm/internal/stream"
	"roboswarm/internal/usage"
)

// Orchestrator owns one instance of each pipeline stage. Construct it once
// and pass it by reference; the detection cache, dedup map and usage records
// live inside it with single-writer ownership.
type Orchestrator struct {
	cfg        *config.Config
	engine     *signal.Engine
	processor  *stream.Processor
	bus        *bus.Bus
	gate       *dispatch.Gate
	dispatcher *spawn.Dispatcher
	usage      *usage.Tracker
	history    *store.History // optional
	lifecycle  spawn.Lifecycle

	stopOnce sync.Once
	doneCh   chan struct{}
}

// Options carries optional collaborators.
type Options struct {
	History *store.History // nil disables history recording
}

// New wires an orchestrator from config. The lifecycle collaborator is
// required; usage records persist under the workspace.
func New(cfg *config.Config, workspace string, lifecycle spawn.Lifecycle, opts Options) (*Orchestrator, error) {
	tracker, err := usage.NewTracker(workspace)
	if err != nil {
		return nil, err
	}

	engine := signal.NewEngine(signal.EngineConfig{
		CacheTTL:      cfg.CacheTTL(),
		CacheMaxSize:  cfg.Detect.CacheMaxSize,
		DebounceDelay: cfg.DebounceDelay(),
	})

	eventBus := bus.New(0)
	processor := stream.NewProcessor(stream.ProcessorConfig{
		MaxBufferSize:  cfg.Stream.MaxBufferSize,
		FlushInterval:  cfg.FlushInterval(),
		MaxConcurrency: cfg.Stream.MaxConcurrency,
		DedupWindow:    cfg.DedupWindow(),
	}, engine, eventBus)

	gate := dispatch.NewGate(dispatch.Tables{
		Mapping:        cfg.Dispatch.SignalAgents,
		SignalPriority: cfg.Dispatch.SignalPriority,
		Capacity:       cfg.Dispatch.Capacity,
	}, tracker)

	dispatcher := spawn.NewDispatcher(spawn.DispatcherConfig{
		MaxConcurrentSpawns: cfg.Spawn.MaxConcurrentSpawns,
		HealthTimeout:       cfg.HealthTimeout(),
		WaitForHealth:       !cfg.Spawn.SkipHealthWait,
	}, lifecycle)

	return &Orchestrator{
		cfg:        cfg,
		engine:     engine,
		processor:  processor,
		bus:        eventBus,
		gate:       gate,
		dispatcher: dispatcher,
		usage:      tracker,
		history:    opts.History,
		lifecycle:  lifecycle,
		doneCh:     make(chan struct{}),
	}, nil
}

// Engine exposes the detection engine.
func (o *Orchestrator) Engine() *signal.Engine { return o.engine }

// Processor exposes the stream processor.
func (o *Orchestrator) Processor() *stream.Processor { return o.processor }

// Bus exposes the downstream event bus.
func (o *Orchestrator) Bus() *bus.Bus { return o.bus }

// DetectSignals scans content for signal markers.
func (o *Orchestrator) DetectSignals(path, content string) []signal.Signal {
	return o.engine.Detect(path, content)
}

// ProcessEvent ingests an event into the buffered pipeline, fire-and-forget.
func (o *Orchestrator) ProcessEvent(ev stream.Event) {
	o.processor.ProcessEvent(ev)
}

// MakeSpawnDecision runs the capacity gate for a signal against a live
// snapshot of the lifecycle collaborator's running agents.
func (o *Orchestrator) MakeSpawnDecision(sig signal.Signal) dispatch.Decision {
	decision := o.gate.Decide(sig, o.snapshot())
	if o.history != nil {
		if err := o.history.RecordDecision(sig.Type, decision); err != nil {
			logging.Get(logging.CategoryStore).Warn("orchestrator: record decision: %v", err)
		}
	}
	return decision
}

// SpawnAgentForSignal performs one spawn and, on success, updates the usage
// record for the agent type.
func (o *Orchestrator) SpawnAgentForSignal(ctx context.Context, req spawn.Request) spawn.Result {
	result := o.dispatcher.SpawnOne(ctx, req)
	o.afterSpawn(result)
	return result
}

// SpawnMultipleAgents performs a priority-sorted, concurrency-windowed batch
// spawn.
func (o *Orchestrator) SpawnMultipleAgents(ctx context.Context, reqs []spawn.Request) []spawn.Result {
	results := o.dispatcher.SpawnMany(ctx, reqs)
	for _, r := range results {
		o.afterSpawn(r)
	}
	return results
}

// DispatchSignal decides and, when accepted, spawns for a single signal.
// The decision is returned either way; the result is nil when rejected.
func (o *Orchestrator) DispatchSignal(ctx context.Context, sig signal.Signal) (dispatch.Decision, *spawn.Result) {
	decision := o.MakeSpawnDecision(sig)
	if !decision.ShouldSpawn {
		return decision, nil
	}
	result := o.SpawnAgentForSignal(ctx, spawn.Request{
		AgentType: decision.AgentType,
		Task:      sig.Context,
		Priority:  decision.Priority,
	})
	return decision, &result
}

// Run consumes signal_detected records from the bus and dispatches every
// signal until ctx is cancelled. Intended as the watch command's main loop;
// it is the single dispatch path, so decisions never race each other.
func (o *Orchestrator) Run(ctx context.Context) {
	records := o.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			for _, sig := range rec.Data.Signals {
				o.DispatchSignal(ctx, sig)
			}
		}
	}
}

// afterSpawn records history and usage for one spawn outcome.
func (o *Orchestrator) afterSpawn(r spawn.Result) {
	if r.Success {
		o.usage.RecordDispatch(r.AgentType)
	}
	if o.history != nil {
		if err := o.history.RecordSpawnResult(r); err != nil {
			logging.Get(logging.CategoryStore).Warn("orchestrator: record spawn result: %v", err)
		}
	}
}

// snapshot reads the collaborator's running-agent state into a dispatch
// snapshot: per-type running counts and instance success stats.
func (o *Orchestrator) snapshot() dispatch.Snapshot {
	snap := dispatch.Snapshot{
		Running:   make(map[string]int),
		Instances: make(map[string][]dispatch.InstanceStats),
	}
	for _, inst := range o.lifecycle.GetAllAgentsStatus() {
		snap.Running[inst.AgentType]++
		snap.Instances[inst.AgentType] = append(snap.Instances[inst.AgentType], dispatch.InstanceStats{
			TotalRuns:      inst.TotalRuns,
			SuccessfulRuns: inst.SuccessfulRuns,
		})
	}
	return snap
}

// Stop shuts the pipeline down: final flush, debounce cancellation, bus
// close, usage flush.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.processor.Stop()
		o.engine.Close()
		o.bus.Close()
		if err := o.usage.Close(); err != nil {
			logging.Get(logging.CategoryUsage).Warn("orchestrator: usage close: %v", err)
		}
		close(o.doneCh)
	})
}
