// Package registry implements the hub's connection registries (spec §4.2):
// per-peer-kind maps from pending connection -> registered identity, with
// id and name indexes and a connection-id reverse index.
//
// Grounded on arkeep-io-arkeep/server/internal/agentmanager/manager.go
// (mutex-guarded map, replace-on-duplicate-id with a warning log,
// snapshot-copy List) and jaakkos-stringwork/internal/app/session_registry.go
// (dual id<->name index, evict-old-mapping-for-same-name rule).
package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// AgentFilter narrows AgentRegistry.List results.
type AgentFilter struct {
	Status       domain.Status
	HasStatus    bool
	Capabilities []string // all must be present
}

// AgentRegistry tracks Agent connection and registration lifecycle.
// Safe for concurrent use.
type AgentRegistry struct {
	mu      sync.RWMutex
	pending map[string]domain.PendingConnection // connID -> pending
	byID    map[string]*domain.Agent
	byName  map[string]*domain.Agent // same pointers as byID
	byConn  map[string]string        // connID -> agent id, only while online
	logger  *zap.Logger
	bus     *eventbus.Bus
}

// NewAgentRegistry creates an empty AgentRegistry.
func NewAgentRegistry(logger *zap.Logger, bus *eventbus.Bus) *AgentRegistry {
	return &AgentRegistry{
		pending: make(map[string]domain.PendingConnection),
		byID:    make(map[string]*domain.Agent),
		byName:  make(map[string]*domain.Agent),
		byConn:  make(map[string]string),
		logger:  logger.Named("registry.agent"),
		bus:     bus,
	}
}

// AddPending records a newly accepted connection awaiting registration
// (spec §4.2: addPending).
func (r *AgentRegistry) AddPending(connID string) {
	r.mu.Lock()
	r.pending[connID] = domain.PendingConnection{ConnectionID: connID, ConnectedAt: time.Now().UTC()}
	r.mu.Unlock()

	r.bus.Publish("peer.connected", eventbus.Event{Kind: "peer.connected", Data: connID})
}

// Register associates connID with an Agent identity, consuming the
// matching pending entry. If id is empty a new id is not minted here — the
// router is responsible for assigning one before calling Register, since
// the returned id must be echoed to the caller in agent.registered.
//
// Per spec §4.2: a same-id reconnect on a different connection closes the
// old connection's record first; a same-name, different-id registration
// evicts the older record with reason "replaced."
func (r *AgentRegistry) Register(id, name string, capabilities []string, connID string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[connID]; !ok {
		return nil, huberrors.ErrUnknownConnection
	}
	delete(r.pending, connID)

	now := time.Now().UTC()

	if existing, ok := r.byID[id]; ok && existing.ConnectionID != "" && existing.ConnectionID != connID {
		r.logger.Warn("replacing existing agent connection",
			zap.String("agent_id", id), zap.String("name", existing.Name))
		delete(r.byConn, existing.ConnectionID)
		existing.Status = domain.StatusOffline
		existing.ConnectionID = ""
	}

	if byName, ok := r.byName[name]; ok && byName.ID != id {
		r.logger.Warn("evicting agent with colliding name",
			zap.String("name", name), zap.String("old_id", byName.ID), zap.String("new_id", id))
		if byName.ConnectionID != "" {
			delete(r.byConn, byName.ConnectionID)
		}
		byName.Status = domain.StatusOffline
		byName.ConnectionID = ""
		byName.StatusDetails = &domain.StatusDetails{DisconnectedReason: domain.ReplacedReason("agent")}
		r.bus.Publish("peer.disconnected", eventbus.Event{Kind: "peer.disconnected", Data: byName})
	}

	rec, ok := r.byID[id]
	if !ok {
		rec = &domain.Agent{ID: id, RegisteredAt: now}
		r.byID[id] = rec
	}
	rec.Name = name
	rec.Capabilities = capabilities
	rec.Status = domain.StatusOnline
	rec.ConnectionID = connID
	rec.StatusDetails = nil

	r.byName[name] = rec
	r.byConn[connID] = id

	r.logger.Info("agent registered",
		zap.String("agent_id", id), zap.String("name", name), zap.Int("connected_total", len(r.byConn)))
	r.bus.Publish("peer.registered", eventbus.Event{Kind: "peer.registered", Data: rec})

	return rec, nil
}

// ByID returns the Agent record for id, or (nil, false).
func (r *AgentRegistry) ByID(id string) (*domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// ByName returns the Agent record for name, or (nil, false).
func (r *AgentRegistry) ByName(name string) (*domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// ByConnection returns the Agent record currently bound to connID, or
// (nil, false) if the connection is not associated with a registered
// agent (e.g. still pending, or already disconnected).
func (r *AgentRegistry) ByConnection(connID string) (*domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	a, ok := r.byID[id]
	return a, ok
}

// HandleDisconnect flips the record bound to connID to offline, retaining
// it for reconnection, and clears the connection-id index (spec §4.2:
// handleDisconnect). No-op if connID has no registered agent.
func (r *AgentRegistry) HandleDisconnect(connID string) (*domain.Agent, bool) {
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

	r.logger.Info("agent disconnected", zap.String("agent_id", id), zap.String("name", rec.Name))
	r.bus.Publish("peer.disconnected", eventbus.Event{Kind: "peer.disconnected", Data: rec})
	return rec, true
}

// Remove hard-deletes the Agent record for id (spec §4.2: remove).
func (r *AgentRegistry) Remove(id string) {
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

// List returns a snapshot of Agent records matching filter.
func (r *AgentRegistry) List(filter AgentFilter) []*domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Agent, 0, len(r.byID))
	for _, a := range r.byID {
		if filter.HasStatus && a.Status != filter.Status {
			continue
		}
		if !hasAllCapabilities(a.Capabilities, filter.Capabilities) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// PendingOlderThan returns connection ids still awaiting registration
// whose ConnectedAt is older than cutoff, for the maintenance package's
// stale-connection sweep.
func (r *AgentRegistry) PendingOlderThan(cutoff time.Time) []string {
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

func hasAllCapabilities(have, need []string) bool {
	if len(need) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, n := range need {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
