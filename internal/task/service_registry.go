package task

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// ServiceRegistry tracks ServiceTask records keyed by id. Same transition
// discipline as AgentRegistry; kept separate since service invocations
// carry a ToolName instead of a Type/Name pair and are never delegated
// (no ParentTaskID/RequestingAgentID).
type ServiceRegistry struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.ServiceTask
	byConn map[string][]string
	logger *zap.Logger
	bus    *eventbus.Bus
}

// NewServiceRegistry creates an empty ServiceRegistry.
func NewServiceRegistry(logger *zap.Logger, bus *eventbus.Bus) *ServiceRegistry {
	return &ServiceRegistry{
		tasks:  make(map[string]*domain.ServiceTask),
		byConn: make(map[string][]string),
		logger: logger.Named("task.service"),
		bus:    bus,
	}
}

// Create inserts a new ServiceTask in TaskPending status.
func (r *ServiceRegistry) Create(t *domain.ServiceTask) *domain.ServiceTask {
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

// Get returns the ServiceTask for id, or (nil, false).
func (r *ServiceRegistry) Get(id string) (*domain.ServiceTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// UpdateStatus applies a forward-only status transition and appends an
// update record.
func (r *ServiceRegistry) UpdateStatus(id string, status domain.TaskStatus, result any, errMsg string, metadata map[string]any) (*domain.ServiceTask, error) {
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

// TrackDispatch records that task id was dispatched over service
// connection connID.
func (r *ServiceRegistry) TrackDispatch(connID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[connID] = append(r.byConn[connID], taskID)
}

// HandleServiceDisconnect fails every non-terminal task dispatched over
// connID, recording ErrUnavailablePeer's message as the task error.
func (r *ServiceRegistry) HandleServiceDisconnect(connID string) []*domain.ServiceTask {
	r.mu.Lock()
	ids := r.byConn[connID]
	delete(r.byConn, connID)
	var affected []*domain.ServiceTask
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

// ServiceFilter narrows ServiceRegistry.List results.
type ServiceFilter struct {
	ServiceID string
	ClientID  string
	AgentID   string
	Status    domain.TaskStatus
	HasStatus bool
}

// List returns a snapshot of ServiceTask records matching filter.
func (r *ServiceRegistry) List(filter ServiceFilter) []*domain.ServiceTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ServiceTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		if filter.ServiceID != "" && t.ServiceID != filter.ServiceID {
			continue
		}
		if filter.ClientID != "" && t.ClientID != filter.ClientID {
			continue
		}
		if filter.AgentID != "" && t.AgentID != filter.AgentID {
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
