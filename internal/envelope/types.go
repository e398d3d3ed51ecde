package envelope

// Message type catalogue — spec §6. Kept as a flat set of string constants
// rather than a closed enum since the router's "unknown type" path (spec
// §4.5.9) depends on being able to receive and reject values outside this
// set.
const (
	// Agent-side inbound.
	TypeAgentRegister        = "agent.register"
	TypeAgentListRequest     = "agent.list.request"
	TypeServiceList          = "service.list"
	TypeServiceTaskExecute   = "service.task.execute"
	TypeTaskResult           = "task.result"
	TypeTaskError            = "task.error"
	TypeTaskStatus           = "task.status"
	TypeTaskNotification     = "task.notification"
	TypeAgentStatus          = "agent.status"
	TypeAgentStatusUpdate    = "agent.status.update"
	TypeAgentTaskRequest     = "agent.task.request"
	TypeServiceToolsList     = "service.tools.list"
	TypeMCPServersList       = "mcp.servers.list"
	TypeMCPToolsList         = "mcp.tools.list"
	TypeMCPToolExecute       = "mcp.tool.execute"
	TypePing                = "ping"
	TypeTaskMessage          = "task.message"
	TypeTaskMessageResponse  = "task.messageresponse"

	// Agent-side outbound.
	TypeAgentRegistered          = "agent.registered"
	TypeAgentListResponse        = "agent.list.response"
	TypeServiceListResult        = "service.list.result"
	TypeServiceTaskResult        = "service.task.result"
	TypeTaskExecute              = "task.execute"
	TypeChildAgentRequestAccepted = "childagent.request.accepted"
	TypeChildAgentResponse       = "childagent.response"
	TypeServiceRequestAccepted   = "service.request.accepted"
	TypeServiceResponse          = "service.response"
	TypeServiceNotification      = "service.notification"
	TypeNotificationReceived     = "notification.received"
	TypePong                     = "pong"
	TypeError                    = "error"
	TypeOrchestratorWelcome      = "orchestrator.welcome"
	TypeAgentMCPToolExecuteResult = "agent.mcp.tool.execute.result"
	// TypeAgentMCPServersListResult and TypeAgentMCPToolsListResult are not
	// present in spec §6's agent-outbound catalogue (an apparent gap: the
	// catalogue lists the inbound mcp.servers.list/mcp.tools.list requests
	// but no corresponding agent-side reply type, while the end-to-end MCP
	// scenario in spec §8 does name agent.mcp.tool.execute.result). Minted
	// here by the same naming convention so agent/service MCP directory
	// queries have a reply type symmetric with the tool-execute one.
	TypeAgentMCPServersListResult = "agent.mcp.servers.list.result"
	TypeAgentMCPToolsListResult   = "agent.mcp.tools.list.result"

	// Client-side inbound.
	TypeClientRegister            = "client.register"
	TypeClientTaskCreateLegacy    = "client.task.create" // alias, see SPEC_FULL §11
	TypeClientList                = "client.list"
	TypeClientAgentTaskCreateReq  = "client.agent.task.create.request"
	TypeClientAgentTaskStatusReq  = "client.agent.task.status.request"
	TypeClientAgentListRequest    = "client.agent.list.request"
	TypeClientMCPServerListReq    = "client.mcp.server.list.request"
	TypeMCPServerTools            = "mcp.server.tools"
	TypeClientMessage             = "client.message"

	// Client-side outbound.
	TypeOrchestratorClientWelcome = "orchestrator.client.welcome"
	TypeClientRegisterResponse    = "client.register.response"
	TypeAgentList                 = "agent.list"
	TypeTaskCreated               = "task.created"
	TypeServiceStarted            = "service.started"
	TypeServiceCompleted          = "service.completed"
	TypeMCPServerList             = "mcp.server.list"
	TypeMCPToolExecutionResult    = "mcp.tool.execution.result"
	TypeMessageSent               = "message.sent"
	TypeSystemNotification        = "system.notification"

	// Service-side inbound.
	TypeServiceRegister        = "service.register"
	TypeServiceStatusUpdate    = "service.status.update"
	TypeServiceTaskNotification = "service.task.notification"
	TypeServiceError           = "service.error"

	// Service-side outbound.
	TypeServiceRegistered    = "service.registered"
	TypeServiceStatusUpdated = "service.status.updated"

	// MCP-on-behalf-of, agent- and client-equivalent frames.
	TypeAgentMCPServersList  = "agent.mcp.servers.list"
	TypeAgentMCPToolsList    = "agent.mcp.tools.list"
	TypeAgentMCPToolExecute  = "agent.mcp.tool.execute"
)
