package maintenance

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/listener"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
)

func newTestScheduler(t *testing.T) (*Scheduler, *registry.AgentRegistry, *correlator.Correlator) {
	t.Helper()
	logger := zap.NewNop()
	bus := eventbus.New()

	agents := registry.NewAgentRegistry(logger, bus)
	services := registry.NewServiceRegistry(logger, bus)
	corr := correlator.New(logger)
	mcp := mcpsupervisor.New(logger, bus)

	agentListener := listener.New("agent", ":0", envelope.TypeOrchestratorWelcome, listener.Hooks{
		OnConnect:    func(string) {},
		OnFrame:      func(string, envelope.Envelope) {},
		OnDisconnect: func(string) {},
	}, logger)
	serviceListener := listener.New("service", ":0", envelope.TypeOrchestratorWelcome, listener.Hooks{
		OnConnect:    func(string) {},
		OnFrame:      func(string, envelope.Envelope) {},
		OnDisconnect: func(string) {},
	}, logger)

	sched, err := New(Deps{
		Correlator:   corr,
		Agents:       agents,
		Services:     services,
		AgentConns:   agentListener,
		ServiceConns: serviceListener,
		MCP:          mcp,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sched, agents, corr
}

func TestSweepCorrelatorRunsWithoutPanicking(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	sched.sweepCorrelator()
}

func TestSweepStalePendingIgnoresFreshConnections(t *testing.T) {
	sched, agents, _ := newTestScheduler(t)
	agents.AddPending("fresh-conn")

	sched.sweepStalePending()

	if len(agents.PendingOlderThan(time.Now())) != 1 {
		t.Fatal("expected the fresh pending connection to remain untouched")
	}
}

func TestPollMCPServersRunsWithoutPanicking(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	sched.pollMCPServers()
}

func TestStartAndStop(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
