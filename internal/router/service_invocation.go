// Agent -> service invocation (spec §4.5.5).
package router

import (
	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

type serviceTaskExecuteRequest struct {
	ServiceID string         `json:"serviceId"`
	ToolName  string         `json:"toolName"`
	Params    map[string]any `json:"params,omitempty"`
	ClientID  string         `json:"clientId,omitempty"`
}

func (r *Router) handleServiceTaskExecute(connID string, env envelope.Envelope) {
	var req serviceTaskExecuteRequest
	if err := env.Decode(&req); err != nil || req.ServiceID == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	agent, ok := r.agents.ByConnection(connID)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrUnknownIdentity, env.ID, nil)
		return
	}

	svc, ok := r.services.ByID(req.ServiceID)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"serviceId": req.ServiceID})
		return
	}

	t := r.serviceTasks.Create(&domain.ServiceTask{
		ID:        newID(),
		ServiceID: svc.ID,
		AgentID:   agent.ID,
		ClientID:  req.ClientID,
		ToolName:  req.ToolName,
		TaskData:  req.Params,
	})

	if req.ClientID != "" {
		if client, ok := r.clients.ByID(req.ClientID); ok && client.ConnectionID != "" {
			sendTo(r.clientListener, client.ConnectionID, envelope.TypeServiceStarted, "", map[string]any{
				"serviceTaskId": t.ID,
				"serviceName":   svc.Name,
				"toolName":      req.ToolName,
			})
		}
	}

	if svc.ConnectionID == "" {
		r.failServiceTask(t, agent, "Service connection not found")
		sendErrorTo(r.agentListener, connID, huberrors.ErrUnavailablePeer, env.ID, map[string]string{"serviceId": req.ServiceID})
		return
	}

	svcEnv, err := envelope.New(envelope.TypeServiceTaskExecute, map[string]any{
		"taskId":   t.ID,
		"toolName": req.ToolName,
		"params":   req.Params,
		"agentId":  agent.ID,
	})
	if err == nil {
		if err := r.serviceListener.Send(svc.ConnectionID, svcEnv); err != nil {
			r.failServiceTask(t, agent, "Service connection not found")
			sendErrorTo(r.agentListener, connID, huberrors.ErrUnavailablePeer, env.ID, nil)
			return
		}
		r.serviceTasks.TrackDispatch(svc.ConnectionID, t.ID)
		go r.awaitServiceTaskReply(t.ID)
	}

	sendTo(r.agentListener, connID, envelope.TypeServiceRequestAccepted, env.ID, map[string]any{
		"serviceTaskId": t.ID,
	})
}

func (r *Router) failServiceTask(t *domain.ServiceTask, agent *domain.Agent, reason string) {
	_, _ = r.serviceTasks.UpdateStatus(t.ID, domain.TaskFailed, nil, reason, nil)
	if t.ClientID != "" {
		r.notifyTaskError(t.ClientID, t.ID, reason)
	}
}
