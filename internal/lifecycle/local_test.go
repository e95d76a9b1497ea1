package lifecycle

import (
	"context"
	"testing"
	"time"

	"roboswarm/internal/spawn"
)

func TestLocal_SpawnBecomesHealthy(t *testing.T) {
	l := NewLocal()
	l.SetStartupDelay(5 * time.Millisecond)
	ctx := context.Background()

	cfg := spawn.AgentConfig{ID: "robo-developer-1", AgentType: spawn.TypeDeveloper}
	if err := l.RegisterAgent(cfg); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if err := l.SpawnAgent(ctx, cfg.ID, spawn.SpawnOptions{}); err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}

	inst := l.GetAgentStatus(cfg.ID)
	if inst == nil {
		t.Fatal("no instance after spawn")
	}
	if inst.AgentType != spawn.TypeDeveloper {
		t.Fatalf("agent type = %q", inst.AgentType)
	}

	deadline := time.Now().Add(time.Second)
	for !l.GetAgentStatus(cfg.ID).Healthy {
		if time.Now().After(deadline) {
			t.Fatal("agent never became healthy")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestLocal_DuplicateRegistrationRejected(t *testing.T) {
	l := NewLocal()
	cfg := spawn.AgentConfig{ID: "robo-qa-1", AgentType: spawn.TypeQA}
	if err := l.RegisterAgent(cfg); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterAgent(cfg); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestLocal_SpawnUnregisteredFails(t *testing.T) {
	l := NewLocal()
	if err := l.SpawnAgent(context.Background(), "ghost", spawn.SpawnOptions{}); err == nil {
		t.Fatal("spawn of unregistered agent succeeded")
	}
}

func TestLocal_StatusReturnsCopies(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	cfg := spawn.AgentConfig{ID: "robo-ux-1", AgentType: spawn.TypeUX}
	if err := l.RegisterAgent(cfg); err != nil {
		t.Fatal(err)
	}
	if err := l.SpawnAgent(ctx, cfg.ID, spawn.SpawnOptions{}); err != nil {
		t.Fatal(err)
	}

	inst := l.GetAgentStatus(cfg.ID)
	inst.TotalRuns = 99
	if l.GetAgentStatus(cfg.ID).TotalRuns != 0 {
		t.Fatal("mutation of returned instance leaked into the registry")
	}

	all := l.GetAllAgentsStatus()
	if len(all) != 1 {
		t.Fatalf("GetAllAgentsStatus has %d entries, want 1", len(all))
	}
	all[cfg.ID].TotalRuns = 99
	if l.GetAgentStatus(cfg.ID).TotalRuns != 0 {
		t.Fatal("mutation of map value leaked into the registry")
	}
}

func TestLocal_ExecuteTaskAndStop(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	cfg := spawn.AgentConfig{ID: "robo-developer-2", AgentType: spawn.TypeDeveloper}
	if err := l.RegisterAgent(cfg); err != nil {
		t.Fatal(err)
	}
	if err := l.SpawnAgent(ctx, cfg.ID, spawn.SpawnOptions{}); err != nil {
		t.Fatal(err)
	}

	res, err := l.ExecuteTask(ctx, cfg.ID, "run tests", spawn.TaskOptions{})
	if err != nil || !res.Success {
		t.Fatalf("ExecuteTask = %+v, %v", res, err)
	}
	inst := l.GetAgentStatus(cfg.ID)
	if inst.TotalRuns != 1 || inst.SuccessfulRuns != 1 {
		t.Fatalf("runs = %d/%d, want 1/1", inst.SuccessfulRuns, inst.TotalRuns)
	}

	if err := l.StopAgent(ctx, cfg.ID, true); err != nil {
		t.Fatalf("StopAgent: %v", err)
	}
	if l.GetAgentStatus(cfg.ID) != nil {
		t.Fatal("instance survived stop")
	}
	if err := l.StopAgent(ctx, cfg.ID, true); err == nil {
		t.Fatal("stopping a stopped agent succeeded")
	}
}
