package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
)

// ClientRegistry tracks Client connections. Unlike Agent/Service, a Client
// is registered implicitly on connect (spec §4.2: "a client connection is
// registered as soon as accepted; client.register only attaches an
// optional display name"), so there is no pending->registered gap to
// enforce and no name-collision eviction — Name is not a lookup key.
type ClientRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Client
	byConn map[string]string
	logger *zap.Logger
	bus    *eventbus.Bus
}

// NewClientRegistry creates an empty ClientRegistry.
func NewClientRegistry(logger *zap.Logger, bus *eventbus.Bus) *ClientRegistry {
	return &ClientRegistry{
		byID:   make(map[string]*domain.Client),
		byConn: make(map[string]string),
		logger: logger.Named("registry.client"),
		bus:    bus,
	}
}

// Connect registers a new Client identity for connID immediately, since
// clients have no separate pending phase. id is minted by the caller.
func (r *ClientRegistry) Connect(id, connID string) *domain.Client {
	now := time.Now().UTC()

	r.mu.Lock()
	rec := &domain.Client{
		ID:           id,
		Status:       domain.StatusOnline,
		ConnectionID: connID,
		RegisteredAt: now,
		LastActiveAt: now,
		Metadata:     make(map[string]any),
	}
	r.byID[id] = rec
	r.byConn[connID] = id
	r.mu.Unlock()

	r.logger.Info("client connected", zap.String("client_id", id))
	r.bus.Publish("peer.connected", eventbus.Event{Kind: "peer.connected", Data: connID})
	r.bus.Publish("peer.registered", eventbus.Event{Kind: "peer.registered", Data: rec})
	return rec
}

// SetName attaches an optional display name and/or metadata supplied by a
// client.register frame (spec §4.5.1).
func (r *ClientRegistry) SetName(id, name string, metadata map[string]any) (*domain.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	if name != "" {
		rec.Name = name
	}
	for k, v := range metadata {
		rec.Metadata[k] = v
	}
	return rec, true
}

// Touch updates LastActiveAt for id, called whenever the client sends any
// frame (spec §3: Client.LastActiveAt).
func (r *ClientRegistry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok {
		rec.LastActiveAt = time.Now().UTC()
	}
}

// ByID returns the Client record for id, or (nil, false).
func (r *ClientRegistry) ByID(id string) (*domain.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// ByConnection returns the Client record bound to connID, or (nil, false).
func (r *ClientRegistry) ByConnection(connID string) (*domain.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// HandleDisconnect flips the record bound to connID to offline and clears
// the connection-id index.
func (r *ClientRegistry) HandleDisconnect(connID string) (*domain.Client, bool) {
	r.mu.Lock()
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

	r.logger.Info("client disconnected", zap.String("client_id", id))
	r.bus.Publish("peer.disconnected", eventbus.Event{Kind: "peer.disconnected", Data: rec})
	return rec, true
}

// Remove hard-deletes the Client record for id.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if rec.ConnectionID != "" {
		delete(r.byConn, rec.ConnectionID)
	}
}

// List returns a snapshot of all Client records.
func (r *ClientRegistry) List() []*domain.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Client, 0, len(r.byID))
	for _, c := range r.byID {
		cp := *c
		out = append(out, &cp)
	}
	return out
}
