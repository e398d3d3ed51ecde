package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// ServiceFilter narrows ServiceRegistry.List results.
type ServiceFilter struct {
	Status       domain.Status
	HasStatus    bool
	Capabilities []string
}

// ServiceRegistry tracks Service connection and registration lifecycle.
// Identical invariants to AgentRegistry, kept as a separate concrete type
// rather than a generic since Service and Client diverge in shape.
type ServiceRegistry struct {
	mu      sync.RWMutex
	pending map[string]domain.PendingConnection
	byID    map[string]*domain.Service
	byName  map[string]*domain.Service
	byConn  map[string]string
	logger  *zap.Logger
	bus     *eventbus.Bus
}

// NewServiceRegistry creates an empty ServiceRegistry.
func NewServiceRegistry(logger *zap.Logger, bus *eventbus.Bus) *ServiceRegistry {
	return &ServiceRegistry{
		pending: make(map[string]domain.PendingConnection),
		byID:    make(map[string]*domain.Service),
		byName:  make(map[string]*domain.Service),
		byConn:  make(map[string]string),
		logger:  logger.Named("registry.service"),
		bus:     bus,
	}
}

// AddPending records a newly accepted connection awaiting registration.
func (r *ServiceRegistry) AddPending(connID string) {
	r.mu.Lock()
	r.pending[connID] = domain.PendingConnection{ConnectionID: connID, ConnectedAt: time.Now().UTC()}
	r.mu.Unlock()

	r.bus.Publish("peer.connected", eventbus.Event{Kind: "peer.connected", Data: connID})
}

// Register associates connID with a Service identity, consuming the
// matching pending entry, evicting a same-id or same-name collision the
// same way AgentRegistry.Register does.
func (r *ServiceRegistry) Register(id, name string, capabilities []string, connID string) (*domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[connID]; !ok {
		return nil, huberrors.ErrUnknownConnection
	}
	delete(r.pending, connID)

	now := time.Now().UTC()

	if existing, ok := r.byID[id]; ok && existing.ConnectionID != "" && existing.ConnectionID != connID {
		r.logger.Warn("replacing existing service connection",
			zap.String("service_id", id), zap.String("name", existing.Name))
		delete(r.byConn, existing.ConnectionID)
		existing.Status = domain.StatusOffline
		existing.ConnectionID = ""
	}

	if byName, ok := r.byName[name]; ok && byName.ID != id {
		r.logger.Warn("evicting service with colliding name",
			zap.String("name", name), zap.String("old_id", byName.ID), zap.String("new_id", id))
		if byName.ConnectionID != "" {
			delete(r.byConn, byName.ConnectionID)
		}
		byName.Status = domain.StatusOffline
		byName.ConnectionID = ""
		byName.StatusDetails = &domain.StatusDetails{DisconnectedReason: domain.ReplacedReason("service")}
		r.bus.Publish("peer.disconnected", eventbus.Event{Kind: "peer.disconnected", Data: byName})
	}

	rec, ok := r.byID[id]
	if !ok {
		rec = &domain.Service{ID: id, RegisteredAt: now}
		r.byID[id] = rec
	}
	rec.Name = name
	rec.Capabilities = capabilities
	rec.Status = domain.StatusOnline
	rec.ConnectionID = connID
	rec.StatusDetails = nil

	r.byName[name] = rec
	r.byConn[connID] = id

	r.logger.Info("service registered",
		zap.String("service_id", id), zap.String("name", name), zap.Int("connected_total", len(r.byConn)))
	r.bus.Publish("peer.registered", eventbus.Event{Kind: "peer.registered", Data: rec})

	return rec, nil
}

// ByID returns the Service record for id, or (nil, false).
func (r *ServiceRegistry) ByID(id string) (*domain.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// ByName returns the Service record for name, or (nil, false).
func (r *ServiceRegistry) ByName(name string) (*domain.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// ByConnection returns the Service record bound to connID, or (nil, false).
func (r *ServiceRegistry) ByConnection(connID string) (*domain.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.byID[id]
	return s, ok
}

// HandleDisconnect flips the record bound to connID to offline and clears
// the connection-id index. No-op if connID has no registered service.
func (r *ServiceRegistry) HandleDisconnect(connID string) (*domain.Service, bool) {
	r.mu.Lock()
	delete(r.pending, connID)

	id, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.byConn, connID)

	rec := r.byID[id]
	rec.Status = domain.StatusOffline
	rec.ConnectionID = ""
	r.mu.Unlock()

	r.logger.Info("service disconnected", zap.String("service_id", id), zap.String("name", rec.Name))
	r.bus.Publish("peer.disconnected", eventbus.Event{Kind: "peer.disconnected", Data: rec})
	return rec, true
}

// Remove hard-deletes the Service record for id.
func (r *ServiceRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if r.byName[rec.Name] == rec {
		delete(r.byName, rec.Name)
	}
	if rec.ConnectionID != "" {
		delete(r.byConn, rec.ConnectionID)
	}
}

// List returns a snapshot of Service records matching filter.
func (r *ServiceRegistry) List(filter ServiceFilter) []*domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Service, 0, len(r.byID))
	for _, s := range r.byID {
		if filter.HasStatus && s.Status != filter.Status {
			continue
		}
		if !hasAllCapabilities(s.Capabilities, filter.Capabilities) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// PendingOlderThan returns connection ids still awaiting registration
// whose ConnectedAt is older than cutoff, for the maintenance package's
// stale-connection sweep.
func (r *ServiceRegistry) PendingOlderThan(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []string
	for connID, p := range r.pending {
		if p.ConnectedAt.Before(cutoff) {
			stale = append(stale, connID)
		}
	}
	return stale
}
