package router

import (
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// registerRequest is the shared decode shape for agent.register and
// service.register (spec §4.5.1).
type registerRequest struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (r *Router) handleAgentRegister(connID string, env envelope.Envelope) {
	var req registerRequest
	if err := env.Decode(&req); err != nil || req.Name == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}
	id := req.ID
	if id == "" {
		id = newID()
	}

	agent, err := r.agents.Register(id, req.Name, req.Capabilities, connID)
	if err != nil {
		sendErrorTo(r.agentListener, connID, err, env.ID, nil)
		return
	}

	sendTo(r.agentListener, connID, envelope.TypeAgentRegistered, env.ID, map[string]any{
		"id":     agent.ID,
		"name":   agent.Name,
		"status": string(agent.Status),
	})
}

func (r *Router) handleServiceRegister(connID string, env envelope.Envelope) {
	var req registerRequest
	if err := env.Decode(&req); err != nil || req.Name == "" {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}
	id := req.ID
	if id == "" {
		id = newID()
	}

	svc, err := r.services.Register(id, req.Name, req.Capabilities, connID)
	if err != nil {
		sendErrorTo(r.serviceListener, connID, err, env.ID, nil)
		return
	}

	sendTo(r.serviceListener, connID, envelope.TypeServiceRegistered, env.ID, map[string]any{
		"id":     svc.ID,
		"name":   svc.Name,
		"status": string(svc.Status),
	})
}

// clientRegisterRequest is client.register's content (spec §4.5.1:
// "upserts client name/metadata").
type clientRegisterRequest struct {
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r *Router) handleClientRegister(connID string, env envelope.Envelope) {
	var req clientRegisterRequest
	_ = env.Decode(&req)

	client, ok := r.clients.ByConnection(connID)
	if !ok {
		sendErrorTo(r.clientListener, connID, huberrors.ErrUnknownIdentity, env.ID, nil)
		return
	}

	client, _ = r.clients.SetName(client.ID, req.Name, req.Metadata)
	sendTo(r.clientListener, connID, envelope.TypeClientRegisterResponse, env.ID, map[string]any{
		"id":     client.ID,
		"name":   client.Name,
		"status": string(client.Status),
	})
}

func (r *Router) handleServiceStatusUpdate(connID string, env envelope.Envelope) {
	var req struct {
		Status string `json:"status"`
	}
	if err := env.Decode(&req); err != nil {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}
	svc, ok := r.services.ByConnection(connID)
	if !ok {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrUnknownIdentity, env.ID, nil)
		return
	}
	sendTo(r.serviceListener, connID, envelope.TypeServiceStatusUpdated, env.ID, map[string]any{
		"id":     svc.ID,
		"status": req.Status,
	})
}
