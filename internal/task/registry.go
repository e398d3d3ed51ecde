// Package task implements the hub's in-memory task registries (spec
// §4.3): forward-only status tracking for AgentTask and ServiceTask,
// append-only update logs, lookup and listing.
//
// Grounded on jaakkos-stringwork/internal/app/orchestrator.go's
// TaskOrchestrator (status discipline, create/assign/update shape) and
// jaakkos-stringwork/internal/domain/entity.go's Task fields, adapted to
// this spec's simpler id/name based resolution (no load-balancing
// assignment strategy) and its two-entity split (AgentTask vs
// ServiceTask).
package task

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// AgentRegistry tracks AgentTask records keyed by id.
type AgentRegistry struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.AgentTask
	byConn map[string][]string // agent connection id -> task ids dispatched to it, for disconnect handling
	logger *zap.Logger
	bus    *eventbus.Bus
}

// NewAgentRegistry creates an empty AgentRegistry.
func NewAgentRegistry(logger *zap.Logger, bus *eventbus.Bus) *AgentRegistry {
	return &AgentRegistry{
		tasks:  make(map[string]*domain.AgentTask),
		byConn: make(map[string][]string),
		logger: logger.Named("task.agent"),
		bus:    bus,
	}
}

// Create inserts a new AgentTask in TaskPending status (spec §4.3: create).
func (r *AgentRegistry) Create(t *domain.AgentTask) *domain.AgentTask {
	now := time.Now().UTC()
	t.Status = domain.TaskPending
	t.CreatedAt = now
	t.UpdatedAt = now

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	r.bus.Publish("task.created", eventbus.Event{Kind: "task.created", Data: t})
	return t
}

// Get returns the AgentTask for id, or (nil, false).
func (r *AgentRegistry) Get(id string) (*domain.AgentTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// UpdateStatus applies a forward-only status transition and appends an
// update record (spec §4.3: updateStatus). Returns ErrIllegalTransition if
// the move is not a legal forward move and status != current status, and
// ErrNotFound if id is unknown. Updates to a terminal task's Result/Error
// metadata are permitted even though status itself cannot move further.
func (r *AgentRegistry) UpdateStatus(id string, status domain.TaskStatus, result any, errMsg string, metadata map[string]any) (*domain.AgentTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, huberrors.ErrNotFound
	}

	if status != t.Status && !domain.CanTransition(t.Status, status) {
		return nil, huberrors.ErrIllegalTransition
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	if result != nil {
		t.Result = result
	}
	if errMsg != "" {
		t.Error = errMsg
	}
	t.Updates = append(t.Updates, domain.TaskUpdate{
		Status:    status,
		Result:    result,
		Error:     errMsg,
		Metadata:  metadata,
		Timestamp: now,
	})

	r.bus.Publish("task.updated", eventbus.Event{Kind: "task.updated", Data: t})
	return t, nil
}

// TrackDispatch records that task id was dispatched over agent connection
// connID, so HandleAgentDisconnect can fail it if the agent drops mid-task.
func (r *AgentRegistry) TrackDispatch(connID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[connID] = append(r.byConn[connID], taskID)
}

// HandleAgentDisconnect fails every non-terminal task dispatched over
// connID, recording ErrUnavailablePeer's message as the task error (spec §4.3 edge case: "an agent
// disconnects mid-task").
func (r *AgentRegistry) HandleAgentDisconnect(connID string) []*domain.AgentTask {
	r.mu.Lock()
	ids := r.byConn[connID]
	delete(r.byConn, connID)
	var affected []*domain.AgentTask
	now := time.Now().UTC()
	for _, id := range ids {
		t, ok := r.tasks[id]
		if !ok || domain.IsTerminal(t.Status) {
			continue
		}
		t.Status = domain.TaskFailed
		t.Error = huberrors.ErrUnavailablePeer.Error()
		t.UpdatedAt = now
		t.Updates = append(t.Updates, domain.TaskUpdate{
			Status:    domain.TaskFailed,
			Error:     t.Error,
			Timestamp: now,
		})
		affected = append(affected, t)
	}
	r.mu.Unlock()

	for _, t := range affected {
		r.bus.Publish("task.updated", eventbus.Event{Kind: "task.updated", Data: t})
	}
	return affected
}

// AgentFilter narrows AgentRegistry.List results.
type AgentFilter struct {
	AgentID    string
	ClientID   string
	Status     domain.TaskStatus
	HasStatus  bool
}

// List returns a snapshot of AgentTask records matching filter.
func (r *AgentRegistry) List(filter AgentFilter) []*domain.AgentTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.AgentTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.AgentID != "" && t.AgentID != filter.AgentID {
			continue
		}
		if filter.ClientID != "" && t.ClientID != filter.ClientID {
			continue
		}
		if filter.HasStatus && t.Status != filter.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}
