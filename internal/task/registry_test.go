package task

import (
	"testing"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

func TestAgentRegistryForwardOnlyTransitions(t *testing.T) {
	r := NewAgentRegistry(zap.NewNop(), eventbus.New())
	tk := r.Create(&domain.AgentTask{ID: "t1", AgentID: "a1"})

	if tk.Status != domain.TaskPending {
		t.Fatalf("expected pending on create, got %v", tk.Status)
	}

	if _, err := r.UpdateStatus("t1", domain.TaskInProgress, nil, "", nil); err != nil {
		t.Fatalf("pending->in_progress should be legal: %v", err)
	}

	if _, err := r.UpdateStatus("t1", domain.TaskCompleted, "ok", "", nil); err != nil {
		t.Fatalf("in_progress->completed should be legal: %v", err)
	}

	if _, err := r.UpdateStatus("t1", domain.TaskInProgress, nil, "", nil); err != huberrors.ErrIllegalTransition {
		t.Fatalf("expected illegal transition from terminal state, got %v", err)
	}
}

func TestAgentRegistryUpdateUnknownTask(t *testing.T) {
	r := NewAgentRegistry(zap.NewNop(), eventbus.New())
	if _, err := r.UpdateStatus("missing", domain.TaskInProgress, nil, "", nil); err != huberrors.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAgentRegistryHandleAgentDisconnectFailsInFlight(t *testing.T) {
	r := NewAgentRegistry(zap.NewNop(), eventbus.New())
	r.Create(&domain.AgentTask{ID: "t1", AgentID: "a1"})
	r.Create(&domain.AgentTask{ID: "t2", AgentID: "a1"})
	r.TrackDispatch("conn-1", "t1")
	r.TrackDispatch("conn-1", "t2")

	r.UpdateStatus("t2", domain.TaskCompleted, "done", "", nil)

	affected := r.HandleAgentDisconnect("conn-1")
	if len(affected) != 1 || affected[0].ID != "t1" {
		t.Fatalf("expected only t1 (non-terminal) to be failed, got %+v", affected)
	}

	t1, _ := r.Get("t1")
	if t1.Status != domain.TaskFailed {
		t.Fatalf("expected t1 failed after disconnect, got %v", t1.Status)
	}

	t2, _ := r.Get("t2")
	if t2.Status != domain.TaskCompleted {
		t.Fatalf("expected t2 to remain completed, got %v", t2.Status)
	}
}

func TestAgentRegistryListFiltersByAgentAndStatus(t *testing.T) {
	r := NewAgentRegistry(zap.NewNop(), eventbus.New())
	r.Create(&domain.AgentTask{ID: "t1", AgentID: "a1"})
	r.Create(&domain.AgentTask{ID: "t2", AgentID: "a2"})
	r.UpdateStatus("t1", domain.TaskInProgress, nil, "", nil)

	got := r.List(AgentFilter{AgentID: "a1", Status: domain.TaskInProgress, HasStatus: true})
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected only t1, got %+v", got)
	}
}
