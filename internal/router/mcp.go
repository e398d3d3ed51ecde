// MCP-on-behalf-of (spec §4.5.7): delegates to the MCP supervisor and
// forwards the result verbatim with status success|error.
package router

import (
	"context"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
	"github.com/orchestratorhub/hub/internal/listener"
)

type mcpToolView struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

func mcpToolViews(tools []domain.MCPTool) []mcpToolView {
	out := make([]mcpToolView, 0, len(tools))
	for _, t := range tools {
		out = append(out, mcpToolView{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

type mcpServerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status"`
}

func mcpServerViews(servers []*domain.MCPServer) []mcpServerView {
	out := make([]mcpServerView, 0, len(servers))
	for _, s := range servers {
		out = append(out, mcpServerView{ID: s.ID, Name: s.Name, Type: s.Type, Status: string(s.Status)})
	}
	return out
}

// mcpServersListReplyType picks the reply type for a servers-list query: clients
// get the catalogued mcp.server.list; agents/services get the inferred
// agent.mcp.servers.list.result (see envelope/types.go's doc comment).
func (r *Router) mcpServersListReplyType(l *listener.Listener) string {
	if l == r.clientListener {
		return envelope.TypeMCPServerList
	}
	return envelope.TypeAgentMCPServersListResult
}

func (r *Router) mcpToolsListReplyType(l *listener.Listener) string {
	if l == r.clientListener {
		return envelope.TypeMCPServerTools
	}
	return envelope.TypeAgentMCPToolsListResult
}

func (r *Router) handleMCPServersList(connID string, env envelope.Envelope, l *listener.Listener) {
	servers := r.mcp.List()
	sendTo(l, connID, r.mcpServersListReplyType(l), env.ID, map[string]any{
		"servers": mcpServerViews(servers),
	})
}

type mcpToolsListRequest struct {
	ServerID string `json:"serverId"`
}

func (r *Router) handleMCPToolsList(connID string, env envelope.Envelope, l *listener.Listener) {
	var req mcpToolsListRequest
	if err := env.Decode(&req); err != nil || req.ServerID == "" {
		sendErrorTo(l, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	tools, err := r.mcp.ListTools(context.Background(), req.ServerID)
	if err != nil {
		sendErrorTo(l, connID, err, env.ID, map[string]string{"serverId": req.ServerID})
		return
	}
	sendTo(l, connID, r.mcpToolsListReplyType(l), env.ID, map[string]any{
		"serverId": req.ServerID,
		"tools":    mcpToolViews(tools),
	})
}

// handleMCPToolsListClient serves mcp.server.tools, which doubles as both
// request and response type in spec §6's client catalogue (distinguished
// by requestId).
func (r *Router) handleMCPToolsListClient(connID string, env envelope.Envelope) {
	r.handleMCPToolsList(connID, env, r.clientListener)
}

type mcpToolExecuteRequest struct {
	ServerID string         `json:"serverId"`
	ToolName string         `json:"toolName"`
	Params   map[string]any `json:"parameters,omitempty"`
}

func (r *Router) handleAgentMCPToolExecute(connID string, env envelope.Envelope) {
	r.executeTool(connID, env, r.agentListener, envelope.TypeAgentMCPToolExecuteResult)
}

func (r *Router) handleClientMCPToolExecute(connID string, env envelope.Envelope) {
	r.executeTool(connID, env, r.clientListener, envelope.TypeMCPToolExecutionResult)
}

func (r *Router) executeTool(connID string, env envelope.Envelope, l *listener.Listener, replyType string) {
	var req mcpToolExecuteRequest
	if err := env.Decode(&req); err != nil || req.ServerID == "" || req.ToolName == "" {
		sendErrorTo(l, connID, huberrors.ErrInvalidMessage, env.ID, nil)
		return
	}

	result, metadata, err := r.mcp.ExecuteTool(context.Background(), req.ServerID, req.ToolName, req.Params)
	if err != nil {
		sendTo(l, connID, replyType, env.ID, map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	sendTo(l, connID, replyType, env.ID, map[string]any{
		"status":   "success",
		"result":   result,
		"metadata": metadata,
	})
}
