// Directory query handlers (spec §4.5.2): pure reads, answered from the
// registries' current snapshot with no state mutation.
package router

import (
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/registry"
)

// listFilter is the shared decode shape for directory queries: "{status?,
// capabilities?: must-include-all}" per spec §4.5.2.
type listFilter struct {
	Status       string   `json:"status,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func agentFilterFrom(f listFilter) registry.AgentFilter {
	out := registry.AgentFilter{Capabilities: f.Capabilities}
	if f.Status != "" {
		out.HasStatus = true
		out.Status = domain.Status(f.Status)
	}
	return out
}

func serviceFilterFrom(f listFilter) registry.ServiceFilter {
	out := registry.ServiceFilter{Capabilities: f.Capabilities}
	if f.Status != "" {
		out.HasStatus = true
		out.Status = domain.Status(f.Status)
	}
	return out
}

type agentView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
	Status       string   `json:"status"`
}

func agentViews(agents []*domain.Agent) []agentView {
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentView{ID: a.ID, Name: a.Name, Capabilities: a.Capabilities, Status: string(a.Status)})
	}
	return out
}

type serviceView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
	Status       string   `json:"status"`
}

func serviceViews(services []*domain.Service) []serviceView {
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, serviceView{ID: s.ID, Name: s.Name, Capabilities: s.Capabilities, Status: string(s.Status)})
	}
	return out
}

func (r *Router) handleAgentListRequest(connID string, env envelope.Envelope) {
	var f listFilter
	_ = env.Decode(&f)
	agents := r.agents.List(agentFilterFrom(f))
	sendTo(r.agentListener, connID, envelope.TypeAgentListResponse, env.ID, map[string]any{
		"agents": agentViews(agents),
	})
}

func (r *Router) handleServiceListFromAgent(connID string, env envelope.Envelope) {
	var f listFilter
	_ = env.Decode(&f)
	services := r.services.List(serviceFilterFrom(f))
	sendTo(r.agentListener, connID, envelope.TypeServiceListResult, env.ID, map[string]any{
		"services": serviceViews(services),
	})
}

// handleClientAgentListRequest serves both client.agent.list.request and,
// per this router's interpretation of an otherwise-unspecified message
// (see DESIGN.md), client.list — both are read-only "who can I talk to"
// queries from a client's perspective.
func (r *Router) handleClientAgentListRequest(connID string, env envelope.Envelope) {
	var f listFilter
	_ = env.Decode(&f)
	agents := r.agents.List(agentFilterFrom(f))
	sendTo(r.clientListener, connID, envelope.TypeAgentList, env.ID, map[string]any{
		"agents": agentViews(agents),
	})
}

func (r *Router) handleClientList(connID string, env envelope.Envelope) {
	r.handleClientAgentListRequest(connID, env)
}

// handleAgentStatusUpdate handles the catalogued but operationally
// unspecified agent.status/agent.status.update frames as purely
// informational (spec §5: "dispatch-side is informational" sets the
// precedent for treating status pushes as non-authoritative); no reply is
// sent, matching task.notification's fire-and-forget shape.
func (r *Router) handleAgentStatusUpdate(connID string, env envelope.Envelope) {
	agent, ok := r.agents.ByConnection(connID)
	if !ok {
		return
	}
	r.logger.Debug("agent status push received", zap.String("agent_id", agent.ID))
}
