// Task outcome propagation (spec §4.5.6): status/result/error forwarding,
// notifications, and the task.message/task.messageresponse intermediate
// channel.
package router

import (
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
	"github.com/orchestratorhub/hub/internal/listener"
)

type taskStatusFrame struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// handleAgentTaskStatus forwards an agent's task.status push to the
// task's client verbatim (spec §4.5.6). The hub does not change a task's
// status on dispatch, so an agent-supplied in_progress here is the only
// way a task reaches in_progress.
func (r *Router) handleAgentTaskStatus(connID string, env envelope.Envelope) {
	var req taskStatusFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, ok := r.agentTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}

	status := domain.TaskStatus(req.Status)
	if status != t.Status {
		if _, err := r.agentTasks.UpdateStatus(req.TaskID, status, nil, "", nil); err != nil {
			sendErrorTo(r.agentListener, connID, err, env.ID, nil)
			return
		}
	}

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeTaskStatus, map[string]any{
			"taskId": t.ID,
			"status": req.Status,
		})
	}
}

type taskResultFrame struct {
	TaskID string `json:"taskId"`
	Result any    `json:"result"`
}

// handleAgentTaskResult implements spec §4.5.6's task.result handling:
// marks the task completed, forwards task.status {completed} (with the
// result embedded) followed by the standalone task.result to the client,
// and, if delegated, forwards childagent.response to the requesting agent.
func (r *Router) handleAgentTaskResult(connID string, env envelope.Envelope) {
	var req taskResultFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, err := r.agentTasks.UpdateStatus(req.TaskID, domain.TaskCompleted, req.Result, "", nil)
	if err != nil {
		sendErrorTo(r.agentListener, connID, err, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	r.correlator.Resolve(envelope.Envelope{RequestID: req.TaskID})

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeTaskStatus, map[string]any{
			"taskId": t.ID,
			"status": string(domain.TaskCompleted),
			"result": req.Result,
		})
		r.forwardToClient(t.ClientID, envelope.TypeTaskResult, map[string]any{
			"taskId": t.ID,
			"result": req.Result,
			"status": string(domain.TaskCompleted),
		})
	}

	if t.RequestingAgentID != "" {
		r.forwardChildAgentResponse(t, string(domain.TaskCompleted), req.Result, "")
	}
}

type taskErrorFrame struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error"`
}

func (r *Router) handleAgentTaskError(connID string, env envelope.Envelope) {
	var req taskErrorFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, err := r.agentTasks.UpdateStatus(req.TaskID, domain.TaskFailed, nil, req.Error, nil)
	if err != nil {
		sendErrorTo(r.agentListener, connID, err, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	r.correlator.Resolve(envelope.Envelope{RequestID: req.TaskID})

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeTaskError, map[string]any{
			"taskId": t.ID,
			"error":  req.Error,
		})
	}

	if t.RequestingAgentID != "" {
		r.forwardChildAgentResponse(t, string(domain.TaskFailed), nil, req.Error)
	}
}

// forwardChildAgentResponse delivers childagent.response to the
// requesting agent if it is currently connected; if disconnected, the
// outcome is dropped silently but the terminal task record is kept
// (spec §4.5.6).
func (r *Router) forwardChildAgentResponse(t *domain.AgentTask, status string, result any, errMsg string) {
	requester, ok := r.agents.ByID(t.RequestingAgentID)
	if !ok || requester.ConnectionID == "" {
		return
	}
	content := map[string]any{
		"childTaskId": t.ID,
		"status":      status,
	}
	if result != nil {
		content["result"] = result
	}
	if errMsg != "" {
		content["error"] = errMsg
	}
	sendTo(r.agentListener, requester.ConnectionID, envelope.TypeChildAgentResponse, "", content)
}

func (r *Router) forwardToClient(clientID, msgType string, content any) {
	client, ok := r.clients.ByID(clientID)
	if !ok || client.ConnectionID == "" {
		return
	}
	sendTo(r.clientListener, client.ConnectionID, msgType, "", content)
}

type taskNotificationFrame struct {
	TaskID  string `json:"taskId"`
	Message any    `json:"message,omitempty"`
}

// handleTaskNotification implements spec §4.5.6's task.notification
// handling: never changes status, enriches with sender identity, forwards
// to the client, and acknowledges the sender.
func (r *Router) handleTaskNotification(connID string, env envelope.Envelope) {
	var req taskNotificationFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.agentListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, ok := r.agentTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(r.agentListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	agent, _ := r.agents.ByConnection(connID)

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeTaskNotification, map[string]any{
			"taskId":  t.ID,
			"message": req.Message,
			"agentId": agentIDOf(agent),
		})
	}

	sendTo(r.agentListener, connID, envelope.TypeNotificationReceived, env.ID, nil)
}

func agentIDOf(a *domain.Agent) string {
	if a == nil {
		return ""
	}
	return a.ID
}

// handleTaskMessage routes an intermediate task.message by taskId to the
// opposite party (spec §4.5.6). The sender may be either the agent or the
// client side of the task; delivery failure replies `error` to the
// sender.
func (r *Router) handleTaskMessage(connID string, env envelope.Envelope, senderListener *listener.Listener) {
	var req struct {
		TaskID  string `json:"taskId"`
		Message any    `json:"message"`
	}
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(senderListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, ok := r.agentTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(senderListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}

	var targetListener *listener.Listener
	var targetConnID string
	if senderListener == r.agentListener {
		targetListener = r.clientListener
		if client, ok := r.clients.ByID(t.ClientID); ok {
			targetConnID = client.ConnectionID
		}
	} else {
		targetListener = r.agentListener
		if agent, ok := r.agents.ByID(t.AgentID); ok {
			targetConnID = agent.ConnectionID
		}
	}

	if targetConnID == "" {
		sendErrorTo(senderListener, connID, huberrors.ErrUnavailablePeer, env.ID, nil)
		return
	}

	sendTo(targetListener, targetConnID, envelope.TypeTaskMessage, "", map[string]any{
		"taskId":  t.ID,
		"message": req.Message,
	})
}

// handleTaskMessageResponse mirrors handleTaskMessage for the reply leg,
// always originating from the agent side per spec §6's catalogue (only
// agents emit task.messageresponse).
func (r *Router) handleTaskMessageResponse(connID string, env envelope.Envelope, senderListener *listener.Listener) {
	var req struct {
		TaskID  string `json:"taskId"`
		Message any    `json:"message"`
	}
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(senderListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, ok := r.agentTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(senderListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}

	client, ok := r.clients.ByID(t.ClientID)
	if !ok || client.ConnectionID == "" {
		sendErrorTo(senderListener, connID, huberrors.ErrUnavailablePeer, env.ID, nil)
		return
	}

	sendTo(r.clientListener, client.ConnectionID, envelope.TypeTaskMessageResponse, "", map[string]any{
		"taskId":  t.ID,
		"message": req.Message,
	})
}

// --- Service-side outcomes ---

type serviceTaskResultFrame struct {
	TaskID string `json:"taskId"`
	Result any    `json:"result"`
}

func (r *Router) handleServiceTaskResult(connID string, env envelope.Envelope) {
	var req serviceTaskResultFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, err := r.serviceTasks.UpdateStatus(req.TaskID, domain.TaskCompleted, req.Result, "", nil)
	if err != nil {
		sendErrorTo(r.serviceListener, connID, err, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	r.correlator.Resolve(envelope.Envelope{RequestID: req.TaskID})

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeServiceCompleted, map[string]any{
			"serviceTaskId": t.ID,
			"result":        req.Result,
		})
	}
	if agent, ok := r.agents.ByID(t.AgentID); ok && agent.ConnectionID != "" {
		sendTo(r.agentListener, agent.ConnectionID, envelope.TypeServiceResponse, "", map[string]any{
			"status": string(domain.TaskCompleted),
			"result": req.Result,
		})
	}
}

func (r *Router) handleServiceTaskErrorFrame(connID string, env envelope.Envelope) {
	var req taskErrorFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, err := r.serviceTasks.UpdateStatus(req.TaskID, domain.TaskFailed, nil, req.Error, nil)
	if err != nil {
		sendErrorTo(r.serviceListener, connID, err, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}
	r.correlator.Resolve(envelope.Envelope{RequestID: req.TaskID})

	if t.ClientID != "" {
		// No dedicated client-side "service failed" type exists in spec §6's
		// catalogue; reusing service.completed with an error field is this
		// router's documented interpretation (see DESIGN.md).
		r.forwardToClient(t.ClientID, envelope.TypeServiceCompleted, map[string]any{
			"serviceTaskId": t.ID,
			"status":        string(domain.TaskFailed),
			"error":         req.Error,
		})
	}
	if agent, ok := r.agents.ByID(t.AgentID); ok && agent.ConnectionID != "" {
		sendTo(r.agentListener, agent.ConnectionID, envelope.TypeServiceResponse, "", map[string]any{
			"status": string(domain.TaskFailed),
			"error":  req.Error,
		})
	}
}

func (r *Router) handleServiceTaskNotification(connID string, env envelope.Envelope) {
	var req taskNotificationFrame
	if err := env.Decode(&req); err != nil || req.TaskID == "" {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	t, ok := r.serviceTasks.Get(req.TaskID)
	if !ok {
		sendErrorTo(r.serviceListener, connID, huberrors.ErrNotFound, env.ID, map[string]string{"taskId": req.TaskID})
		return
	}

	if t.ClientID != "" {
		r.forwardToClient(t.ClientID, envelope.TypeServiceNotification, map[string]any{
			"serviceTaskId": t.ID,
			"message":       req.Message,
		})
	}

	var withAgentID struct {
		AgentID string `json:"agentId,omitempty"`
	}
	_ = env.Decode(&withAgentID)
	if withAgentID.AgentID != "" {
		if agent, ok := r.agents.ByID(withAgentID.AgentID); ok && agent.ConnectionID != "" {
			sendTo(r.agentListener, agent.ConnectionID, envelope.TypeServiceNotification, "", map[string]any{
				"serviceTaskId": t.ID,
				"message":       req.Message,
			})
		}
	}

	sendTo(r.serviceListener, connID, envelope.TypeNotificationReceived, env.ID, nil)
	r.logger.Debug("service task notification forwarded", zap.String("task_id", t.ID))
}
