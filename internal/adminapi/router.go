package adminapi

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/task"
)

// Config wires an admin API instance to the hub's live state, mirroring
// the teacher's RouterConfig: every dependency is a named field populated
// once by the caller rather than constructed inside NewRouter.
type Config struct {
	Agents       *registry.AgentRegistry
	Services     *registry.ServiceRegistry
	Clients      *registry.ClientRegistry
	AgentTasks   *task.AgentRegistry
	ServiceTasks *task.ServiceRegistry
	MCP          *mcpsupervisor.Supervisor
	Correlator   *correlator.Correlator
	Bus          *eventbus.Bus

	Logger      *zap.Logger
	TokenSecret string
}

// NewRouter builds the admin API's http.Handler: /healthz and /metrics
// are always public, everything under /admin/v1 requires a bearer token
// when TokenSecret is set.
func NewRouter(cfg Config) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(cfg.Agents, cfg.Services, cfg.Clients, cfg.AgentTasks, cfg.ServiceTasks, cfg.MCP))
	reg.MustRegister(cfg.Correlator.MetricsCollector())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.TokenSecret))

		r.Get("/agents", listAgents(cfg.Agents))
		r.Get("/agents/{id}", getAgent(cfg.Agents))
		r.Get("/services", listServices(cfg.Services))
		r.Get("/services/{id}", getService(cfg.Services))
		r.Get("/clients", listClients(cfg.Clients))
		r.Get("/agent-tasks", listAgentTasks(cfg.AgentTasks))
		r.Get("/agent-tasks/{id}", getAgentTask(cfg.AgentTasks))
		r.Get("/service-tasks", listServiceTasks(cfg.ServiceTasks))
		r.Get("/service-tasks/{id}", getServiceTask(cfg.ServiceTasks))
		r.Get("/mcp-servers", listMCPServers(cfg.MCP))
		r.Get("/mcp-servers/{id}", getMCPServer(cfg.MCP))
		r.Get("/events", streamEvents(cfg.Bus))
	})

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	ok(w, envelope{"status": "ok"})
}

// peerView adds an operator-friendly humanized age alongside the raw
// timestamp, since a bare RFC3339 RegisteredAt is what every other JSON
// consumer of the hub wants but not what a human skimming /admin/v1
// output wants.
type peerView struct {
	*domain.Agent `json:",omitempty"`
	RegisteredFor string `json:"registeredFor"`
}

func agentViews(agents []*domain.Agent) []peerView {
	out := make([]peerView, 0, len(agents))
	for _, a := range agents {
		out = append(out, peerView{Agent: a, RegisteredFor: humanize.Time(a.RegisteredAt)})
	}
	return out
}

type serviceView struct {
	*domain.Service `json:",omitempty"`
	RegisteredFor   string `json:"registeredFor"`
}

func serviceViews(services []*domain.Service) []serviceView {
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, serviceView{Service: s, RegisteredFor: humanize.Time(s.RegisteredAt)})
	}
	return out
}

func listAgents(agents *registry.AgentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok(w, agentViews(agents.List(registry.AgentFilter{})))
	}
}

func getAgent(agents *registry.AgentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agent, found := agents.ByID(chi.URLParam(r, "id"))
		if !found {
			errNotFound(w, "agent not found")
			return
		}
		ok(w, peerView{Agent: agent, RegisteredFor: humanize.Time(agent.RegisteredAt)})
	}
}

func listServices(services *registry.ServiceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok(w, serviceViews(services.List(registry.ServiceFilter{})))
	}
}

func getService(services *registry.ServiceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service, found := services.ByID(chi.URLParam(r, "id"))
		if !found {
			errNotFound(w, "service not found")
			return
		}
		ok(w, serviceView{Service: service, RegisteredFor: humanize.Time(service.RegisteredAt)})
	}
}

func listClients(clients *registry.ClientRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok(w, clients.List())
	}
}

func listAgentTasks(tasks *task.AgentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := task.AgentFilter{
			AgentID:  r.URL.Query().Get("agentId"),
			ClientID: r.URL.Query().Get("clientId"),
		}
		ok(w, tasks.List(filter))
	}
}

func getAgentTask(tasks *task.AgentRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, found := tasks.Get(chi.URLParam(r, "id"))
		if !found {
			errNotFound(w, "agent task not found")
			return
		}
		ok(w, t)
	}
}

func listServiceTasks(tasks *task.ServiceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := task.ServiceFilter{
			ServiceID: r.URL.Query().Get("serviceId"),
			ClientID:  r.URL.Query().Get("clientId"),
			AgentID:   r.URL.Query().Get("agentId"),
		}
		ok(w, tasks.List(filter))
	}
}

func getServiceTask(tasks *task.ServiceRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, found := tasks.Get(chi.URLParam(r, "id"))
		if !found {
			errNotFound(w, "service task not found")
			return
		}
		ok(w, t)
	}
}

func listMCPServers(mcp *mcpsupervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok(w, mcp.List())
	}
}

func getMCPServer(mcp *mcpsupervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, found := mcp.Get(chi.URLParam(r, "id"))
		if !found {
			errNotFound(w, "mcp server not found")
			return
		}
		ok(w, server)
	}
}
