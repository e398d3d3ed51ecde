// Agent -> agent delegation (spec §4.5.4).
package router

import (
	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

type agentTaskRequest struct {
	TargetAgentName string `json:"targetAgentName"`
	TaskType        string `json:"taskType"`
	TaskData        any    `json:"taskData"`
	ParentTaskID    string `json:"parentTaskId,omitempty"`
}

func (r *Router) handleAgentTaskRequest(connID string, env envelope.Envelope) {
	var req agentTaskRequest
	if err := env.Decode(&req); err != nil || req.TargetAgentName == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	requester, ok := r.agents.ByConnection(connID)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrUnknownIdentity, env.ID, nil)
		return
	}

	target, ok := r.agents.ByName(req.TargetAgentName)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"targetAgentName": req.TargetAgentName})
		return
	}

	t := r.agentTasks.Create(&domain.AgentTask{
		ID:                newID(),
		Type:              req.TaskType,
		AgentID:           target.ID,
		RequestingAgentID: requester.ID,
		ParentTaskID:      req.ParentTaskID,
		TaskData:          req.TaskData,
	})

	sendTo(r.agentListener, connID, envelope.TypeChildAgentRequestAccepted, env.ID, map[string]any{
		"childTaskId": t.ID,
	})

	if target.ConnectionID == "" {
		r.failDelegatedTask(t, requester, "Agent connection not found")
		return
	}

	taskEnv, err := envelope.New(envelope.TypeTaskExecute, map[string]any{
		"taskId":   t.ID,
		"taskData": t.TaskData,
	})
	if err != nil {
		return
	}
	if err := r.agentListener.Send(target.ConnectionID, taskEnv); err != nil {
		r.failDelegatedTask(t, requester, "Agent connection not found")
		return
	}
	r.agentTasks.TrackDispatch(target.ConnectionID, t.ID)
	go r.awaitAgentTaskReply(t.ID, "", requester.ID)
}

func (r *Router) failDelegatedTask(t *domain.AgentTask, requester *domain.Agent, reason string) {
	if _, err := r.agentTasks.UpdateStatus(t.ID, domain.TaskFailed, nil, reason, nil); err != nil {
		return
	}
	if requester.ConnectionID == "" {
		return
	}
	sendTo(r.agentListener, requester.ConnectionID, envelope.TypeChildAgentResponse, "", map[string]any{
		"childTaskId": t.ID,
		"status":      string(domain.TaskFailed),
		"error":       reason,
	})
}
