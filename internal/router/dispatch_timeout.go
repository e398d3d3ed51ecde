// Send-and-await enforcement for dispatched task.execute frames (spec
// §4.1/§5): every dispatch races the agent/service's eventual task.result
// or task.error against dispatchTimeout, failing the task with Timeout if
// nothing arrives in time. The correlator is resolved from three places —
// a successful task.result/task.error, a peer disconnect, or this
// deadline — whichever comes first wins; the other two become no-ops
// against an already-terminal task.
package router

import (
	"errors"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// awaitAgentTaskReply blocks until taskID is resolved (by an outcome
// handler or a disconnect) or r.dispatchTimeout elapses, in which case it
// fails the task with Timeout and notifies whichever party is waiting on
// it — the originating client, or the delegating agent.
func (r *Router) awaitAgentTaskReply(taskID, clientID, requestingAgentID string) {
	_, err := r.correlator.Await(taskID, r.dispatchTimeout, nil)
	if err == nil {
		return
	}
	if !errors.Is(err, huberrors.ErrTimeout) {
		return
	}

	t, uerr := r.agentTasks.UpdateStatus(taskID, domain.TaskFailed, nil, huberrors.ErrTimeout.Error(), nil)
	if uerr != nil {
		// Already terminal via a race with the outcome/disconnect handler.
		return
	}
	if clientID != "" {
		r.notifyTaskError(clientID, t.ID, huberrors.ErrTimeout.Error())
	}
	if requestingAgentID != "" {
		r.forwardChildAgentResponse(t, string(domain.TaskFailed), nil, huberrors.ErrTimeout.Error())
	}
}

// awaitServiceTaskReply mirrors awaitAgentTaskReply for service invocation.
func (r *Router) awaitServiceTaskReply(taskID string) {
	_, err := r.correlator.Await(taskID, r.dispatchTimeout, nil)
	if err == nil {
		return
	}
	if !errors.Is(err, huberrors.ErrTimeout) {
		return
	}

	t, uerr := r.serviceTasks.UpdateStatus(taskID, domain.TaskFailed, nil, huberrors.ErrTimeout.Error(), nil)
	if uerr != nil {
		return
	}
	if t.ClientID != "" {
		r.notifyTaskError(t.ClientID, t.ID, huberrors.ErrTimeout.Error())
	}
	if agent, ok := r.agents.ByID(t.AgentID); ok && agent.ConnectionID != "" {
		sendTo(r.agentListener, agent.ConnectionID, envelope.TypeServiceResponse, "", map[string]any{
			"status": string(domain.TaskFailed),
			"error":  huberrors.ErrTimeout.Error(),
		})
	}
}
