// Client -> agent task creation (spec §4.5.3).
package router

import (
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

type clientTaskCreateRequest struct {
	AgentID   string `json:"agentId,omitempty"`
	AgentName string `json:"agentName,omitempty"`
	TaskData  any    `json:"taskData"`
}

func (r *Router) handleClientAgentTaskCreate(connID string, env envelope.Envelope) {
	var req clientTaskCreateRequest
	if err := env.Decode(&req); err != nil {
		sendErrorTo(r.clientListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	client, ok := r.clients.ByConnection(connID)
	if !ok {
		sendErrorTo(r.clientListener, connID, huberrors.ErrUnknownIdentity, env.ID, nil)
		return
	}

	agent, ok := r.resolveAgent(req.AgentID, req.AgentName)
	if !ok {
		sendErrorTo(r.clientListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"agentId": req.AgentID, "agentName": req.AgentName})
		return
	}

	t := r.agentTasks.Create(&domain.AgentTask{
		ID:       newID(),
		AgentID:  agent.ID,
		ClientID: client.ID,
		TaskData: req.TaskData,
	})

	sendTo(r.clientListener, connID, envelope.TypeTaskCreated, env.ID, map[string]any{
		"taskId":  t.ID,
		"agentId": agent.ID,
	})

	r.dispatchTaskExecute(t, agent, client.ID)
}

// resolveAgent resolves by id if given, else by name.
func (r *Router) resolveAgent(id, name string) (*domain.Agent, bool) {
	if id != "" {
		return r.agents.ByID(id)
	}
	if name != "" {
		return r.agents.ByName(name)
	}
	return nil, false
}

// dispatchTaskExecute dispatches task.execute to agent's live connection.
// If the agent has no live connection at dispatch time, the task is
// failed with reason "Agent connection not found" and the client is
// notified (spec §4.5.3 edge case).
func (r *Router) dispatchTaskExecute(t *domain.AgentTask, agent *domain.Agent, clientID string) {
	if agent.ConnectionID == "" {
		r.failTaskAgentUnavailable(t, clientID, "Agent connection not found")
		return
	}

	env, err := envelope.New(envelope.TypeTaskExecute, map[string]any{
		"taskId":   t.ID,
		"taskData": t.TaskData,
		"clientId": clientID,
	})
	if err != nil {
		return
	}
	if err := r.agentListener.Send(agent.ConnectionID, env); err != nil {
		r.failTaskAgentUnavailable(t, clientID, "Agent connection not found")
		return
	}
	r.agentTasks.TrackDispatch(agent.ConnectionID, t.ID)
	go r.awaitAgentTaskReply(t.ID, clientID, "")
}

func (r *Router) failTaskAgentUnavailable(t *domain.AgentTask, clientID, reason string) {
	if _, err := r.agentTasks.UpdateStatus(t.ID, domain.TaskFailed, nil, reason, nil); err != nil {
		r.logger.Warn("failed to mark task failed", zap.String("task_id", t.ID), zap.Error(err))
	}
	r.notifyTaskError(clientID, t.ID, reason)
}

func (r *Router) handleClientAgentTaskStatusRequest(connID string, env envelope.Envelope) {
	var req struct {
		TaskID string `json:"taskId"`
	}
	if err := env.Decode(&req); err != nil {
		sendErrorTo(r.clientListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}
	t, ok := r.agentTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(r.clientListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	sendTo(r.clientListener, connID, envelope.TypeTaskStatus, env.ID, map[string]any{
		"taskId": t.ID,
		"status": string(t.Status),
	})
}

func (r *Router) handleClientMessage(connID string, env envelope.Envelope) {
	var req struct {
		AgentID string `json:"agentId,omitempty"`
		TaskID  string `json:"taskId,omitempty"`
		Message any    `json:"message"`
	}
	if err := env.Decode(&req); err != nil {
		sendErrorTo(r.clientListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	agent, ok := r.resolveAgent(req.AgentID, "")
	if !ok || agent.ConnectionID == "" {
		sendErrorTo(r.clientListener, connID, huberrors.ErrUnavailablePeer, env.ID, nil)
		return
	}

	sendTo(r.agentListener, agent.ConnectionID, envelope.TypeTaskMessage, "", map[string]any{
		"taskId":  req.TaskID,
		"message": req.Message,
	})
	sendTo(r.clientListener, connID, envelope.TypeMessageSent, env.ID, map[string]any{"delivered": true})
}
