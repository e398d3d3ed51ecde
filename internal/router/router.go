// Package router implements the hub's message handler (spec §4.5): it
// consumes typed envelopes tagged with their originating connection id and
// mutates the registries, dispatching outbound frames through the owning
// listener. One file per message category, grounded on the teacher's
// grpc.Server RPC-method-per-concern layout
// (arkeep-io-arkeep/server/internal/grpc/server.go) and
// jaakkos-stringwork's tools/collab package-per-concern layout — though,
// unlike the teacher, transport here is gorilla/websocket rather than
// gRPC, so each "RPC method" below is a case in the type switch of
// dispatchAgentFrame, dispatchServiceFrame or dispatchClientFrame.
package router

import (
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
	"github.com/orchestratorhub/hub/internal/listener"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/task"
)

// defaultDispatchTimeout is the send-and-await deadline for a dispatched
// task.execute (spec §4.1/§5, §8 Scenario 4): an agent or service that
// never replies fails the task with Timeout at this horizon.
const defaultDispatchTimeout = 30 * time.Second

// Router owns no transport itself — it only ever calls send(connID, ...)
// helpers on the three listeners, matching spec §5's "the router never
// writes directly to transports" rule.
type Router struct {
	agents   *registry.AgentRegistry
	services *registry.ServiceRegistry
	clients  *registry.ClientRegistry

	agentTasks   *task.AgentRegistry
	serviceTasks *task.ServiceRegistry

	mcp *mcpsupervisor.Supervisor

	correlator      *correlator.Correlator
	dispatchTimeout time.Duration

	agentListener   *listener.Listener
	serviceListener *listener.Listener
	clientListener  *listener.Listener

	bus    *eventbus.Bus
	logger *zap.Logger
}

// New builds a Router. SetListeners must be called once the three
// listeners exist, before any frame is dispatched — construction is
// split this way because the listeners' Hooks close over the Router and
// the Router's sends close over the listeners.
func New(
	agents *registry.AgentRegistry,
	services *registry.ServiceRegistry,
	clients *registry.ClientRegistry,
	agentTasks *task.AgentRegistry,
	serviceTasks *task.ServiceRegistry,
	mcp *mcpsupervisor.Supervisor,
	corr *correlator.Correlator,
	bus *eventbus.Bus,
	logger *zap.Logger,
) *Router {
	return &Router{
		agents:          agents,
		services:        services,
		clients:         clients,
		agentTasks:      agentTasks,
		serviceTasks:    serviceTasks,
		mcp:             mcp,
		correlator:      corr,
		dispatchTimeout: defaultDispatchTimeout,
		bus:             bus,
		logger:          logger.Named("router"),
	}
}

// SetListeners wires the listeners the router dispatches outbound frames
// through. Must be called before serving any connection.
func (r *Router) SetListeners(agentL, serviceL, clientL *listener.Listener) {
	r.agentListener = agentL
	r.serviceListener = serviceL
	r.clientListener = clientL
}

// AgentHooks returns the listener.Hooks bound to agent-side handling.
func (r *Router) AgentHooks() listener.Hooks {
	return listener.Hooks{
		OnConnect:    r.agents.AddPending,
		OnFrame:      r.dispatchAgentFrame,
		OnDisconnect: r.handleAgentDisconnect,
	}
}

// ServiceHooks returns the listener.Hooks bound to service-side handling.
func (r *Router) ServiceHooks() listener.Hooks {
	return listener.Hooks{
		OnConnect:    r.services.AddPending,
		OnFrame:      r.dispatchServiceFrame,
		OnDisconnect: r.handleServiceDisconnect,
	}
}

// ClientHooks returns the listener.Hooks bound to client-side handling.
// Clients have no pending phase (spec §4.2/§3: "registered as soon as
// accepted"), so OnConnect mints the identity immediately.
func (r *Router) ClientHooks() listener.Hooks {
	return listener.Hooks{
		OnConnect:    r.handleClientConnect,
		OnFrame:      r.dispatchClientFrame,
		OnDisconnect: r.handleClientDisconnect,
	}
}

func (r *Router) handleClientConnect(connID string) {
	id := newID()
	r.clients.Connect(id, connID)
}

func (r *Router) handleAgentDisconnect(connID string) {
	agent, ok := r.agents.HandleDisconnect(connID)
	if !ok {
		return
	}
	failed := r.agentTasks.HandleAgentDisconnect(connID)
	for _, t := range failed {
		r.correlator.Resolve(envelope.Envelope{RequestID: t.ID})
		r.notifyTaskError(t.ClientID, t.ID, "Agent disconnected")
	}
	r.logger.Info("agent disconnected, failed in-flight tasks",
		zap.String("agent_id", agent.ID), zap.Int("failed_tasks", len(failed)))
}

func (r *Router) handleServiceDisconnect(connID string) {
	svc, ok := r.services.HandleDisconnect(connID)
	if !ok {
		return
	}
	failed := r.serviceTasks.HandleServiceDisconnect(connID)
	for _, t := range failed {
		r.correlator.Resolve(envelope.Envelope{RequestID: t.ID})
		if t.ClientID != "" {
			r.notifyTaskError(t.ClientID, t.ID, "Service disconnected")
		}
	}
	r.logger.Info("service disconnected, failed in-flight tasks",
		zap.String("service_id", svc.ID), zap.Int("failed_tasks", len(failed)))
}

func (r *Router) handleClientDisconnect(connID string) {
	r.clients.HandleDisconnect(connID)
}

// dispatchAgentFrame is the agent-listener's FrameHandler (spec §4.5's
// type switch over inbound agent-side message types).
func (r *Router) dispatchAgentFrame(connID string, env envelope.Envelope) {
	switch env.Type {
	case envelope.TypeAgentRegister:
		r.handleAgentRegister(connID, env)
	case envelope.TypeAgentListRequest:
		r.handleAgentListRequest(connID, env)
	case envelope.TypeServiceList, envelope.TypeServiceToolsList:
		r.handleServiceListFromAgent(connID, env)
	case envelope.TypeServiceTaskExecute:
		r.handleServiceTaskExecute(connID, env)
	case envelope.TypeTaskResult:
		r.handleAgentTaskResult(connID, env)
	case envelope.TypeTaskError:
		r.handleAgentTaskError(connID, env)
	case envelope.TypeTaskStatus:
		r.handleAgentTaskStatus(connID, env)
	case envelope.TypeTaskNotification:
		r.handleTaskNotification(connID, env)
	case envelope.TypeAgentTaskRequest:
		r.handleAgentTaskRequest(connID, env)
	case envelope.TypeAgentStatus, envelope.TypeAgentStatusUpdate:
		r.handleAgentStatusUpdate(connID, env)
	case envelope.TypeAgentMCPServersList, envelope.TypeMCPServersList:
		r.handleMCPServersList(connID, env, r.agentListener)
	case envelope.TypeAgentMCPToolsList, envelope.TypeMCPToolsList:
		r.handleMCPToolsList(connID, env, r.agentListener)
	case envelope.TypeAgentMCPToolExecute, envelope.TypeMCPToolExecute:
		r.handleAgentMCPToolExecute(connID, env)
	case envelope.TypeTaskMessage:
		r.handleTaskMessage(connID, env, r.agentListener)
	case envelope.TypeTaskMessageResponse:
		r.handleTaskMessageResponse(connID, env, r.agentListener)
	case envelope.TypePing:
		r.handlePing(connID, env, r.agentListener)
	default:
		r.handleUnknownType(connID, env, r.agentListener)
	}
}

func (r *Router) dispatchServiceFrame(connID string, env envelope.Envelope) {
	switch env.Type {
	case envelope.TypeServiceRegister:
		r.handleServiceRegister(connID, env)
	case envelope.TypeServiceStatusUpdate:
		r.handleServiceStatusUpdate(connID, env)
	case envelope.TypeServiceTaskResult:
		r.handleServiceTaskResult(connID, env)
	case envelope.TypeServiceTaskNotification:
		r.handleServiceTaskNotification(connID, env)
	case envelope.TypeServiceError:
		r.handleServiceTaskErrorFrame(connID, env)
	case envelope.TypePing:
		r.handlePing(connID, env, r.serviceListener)
	default:
		r.handleUnknownType(connID, env, r.serviceListener)
	}
}

func (r *Router) dispatchClientFrame(connID string, env envelope.Envelope) {
	if client, ok := r.clients.ByConnection(connID); ok {
		r.clients.Touch(client.ID)
	}

	switch env.Type {
	case envelope.TypeClientRegister:
		r.handleClientRegister(connID, env)
	case envelope.TypeClientList:
		r.handleClientList(connID, env)
	case envelope.TypeClientAgentListRequest:
		r.handleClientAgentListRequest(connID, env)
	case envelope.TypeClientAgentTaskCreateReq, envelope.TypeClientTaskCreateLegacy:
		if env.Type == envelope.TypeClientTaskCreateLegacy {
			r.logger.Debug("deprecated client.task.create alias used", zap.String("conn_id", connID))
		}
		r.handleClientAgentTaskCreate(connID, env)
	case envelope.TypeClientAgentTaskStatusReq:
		r.handleClientAgentTaskStatusRequest(connID, env)
	case envelope.TypeClientMCPServerListReq:
		r.handleMCPServersList(connID, env, r.clientListener)
	case envelope.TypeMCPServerTools:
		r.handleMCPToolsListClient(connID, env)
	case envelope.TypeMCPToolExecute:
		r.handleClientMCPToolExecute(connID, env)
	case envelope.TypeClientMessage:
		r.handleClientMessage(connID, env)
	case envelope.TypeTaskMessage:
		r.handleTaskMessage(connID, env, r.clientListener)
	case envelope.TypePing:
		r.handlePing(connID, env, r.clientListener)
	default:
		r.handleUnknownType(connID, env, r.clientListener)
	}
}

// sendTo replies on l with a fresh envelope of msgType, echoing requestID
// when replying to a specific inbound frame.
func sendTo(l *listener.Listener, connID, msgType, requestID string, content any) {
	env, err := envelope.New(msgType, content)
	if err != nil {
		return
	}
	if requestID != "" {
		env.RequestID = requestID
	}
	_ = l.Send(connID, env)
}

func sendErrorTo(l *listener.Listener, connID string, cause error, requestID string, details any) {
	_ = l.SendError(connID, cause, requestID, details)
}

// handlePing implements spec §4.5.8: echo requestId, include the
// (possibly client-supplied) timestamp so pong.content.timestamp can be
// asserted monotonic by callers.
func (r *Router) handlePing(connID string, env envelope.Envelope, l *listener.Listener) {
	var content struct {
		Timestamp string `json:"timestamp,omitempty"`
	}
	_ = env.Decode(&content)
	sendTo(l, connID, envelope.TypePong, env.ID, map[string]any{
		"timestamp": content.Timestamp,
	})
}

// handleUnknownType implements spec §4.5.9.
func (r *Router) handleUnknownType(connID string, env envelope.Envelope, l *listener.Listener) {
	sendErrorTo(l, connID, huberrors.ErrUnsupportedMessageType, env.ID, map[string]string{"type": env.Type})
}

// notifyTaskError forwards a task.error frame to clientID's connection, if
// the client has a known live connection (spec §4.5.6/§4.5.3 failure
// paths). Silent no-op if the client is unknown or offline.
func (r *Router) notifyTaskError(clientID, taskID, reason string) {
	if clientID == "" {
		return
	}
	client, ok := r.clients.ByID(clientID)
	if !ok || client.ConnectionID == "" {
		return
	}
	sendTo(r.clientListener, client.ConnectionID, envelope.TypeTaskError, "", map[string]any{
		"taskId": taskID,
		"error":  reason,
	})
}
