package adminapi

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/task"
)

// collector is a prometheus.Collector that reads the registries live on
// every scrape instead of mirroring counts into standalone gauges, so a
// metrics pull never lags the registries it describes.
type collector struct {
	agents       *registry.AgentRegistry
	services     *registry.ServiceRegistry
	clients      *registry.ClientRegistry
	agentTasks   *task.AgentRegistry
	serviceTasks *task.ServiceRegistry
	mcp          *mcpsupervisor.Supervisor

	connectedDesc *prometheus.Desc
	agentTaskDesc *prometheus.Desc
	svcTaskDesc   *prometheus.Desc
	mcpDesc       *prometheus.Desc
}

func newCollector(agents *registry.AgentRegistry, services *registry.ServiceRegistry, clients *registry.ClientRegistry, agentTasks *task.AgentRegistry, serviceTasks *task.ServiceRegistry, mcp *mcpsupervisor.Supervisor) *collector {
	return &collector{
		agents:       agents,
		services:     services,
		clients:      clients,
		agentTasks:   agentTasks,
		serviceTasks: serviceTasks,
		mcp:          mcp,
		connectedDesc: prometheus.NewDesc(
			"orchestratorhub_peers_connected",
			"Number of connected (online) peers by kind.",
			[]string{"kind"}, nil,
		),
		agentTaskDesc: prometheus.NewDesc(
			"orchestratorhub_agent_tasks",
			"Number of agent tasks by status.",
			[]string{"status"}, nil,
		),
		svcTaskDesc: prometheus.NewDesc(
			"orchestratorhub_service_tasks",
			"Number of service tasks by status.",
			[]string{"status"}, nil,
		),
		mcpDesc: prometheus.NewDesc(
			"orchestratorhub_mcp_servers",
			"Number of registered MCP servers by status.",
			[]string{"status"}, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectedDesc
	ch <- c.agentTaskDesc
	ch <- c.svcTaskDesc
	ch <- c.mcpDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	onlineClients := 0
	for _, cl := range c.clients.List() {
		if cl.Status == domain.StatusOnline {
			onlineClients++
		}
	}
	ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, float64(len(c.agents.List(registry.AgentFilter{Status: domain.StatusOnline, HasStatus: true}))), "agent")
	ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, float64(len(c.services.List(registry.ServiceFilter{Status: domain.StatusOnline, HasStatus: true}))), "service")
	ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, float64(onlineClients), "client")

	for _, status := range []domain.TaskStatus{domain.TaskPending, domain.TaskInProgress, domain.TaskCompleted, domain.TaskFailed} {
		agentCount := len(c.agentTasks.List(task.AgentFilter{Status: status, HasStatus: true}))
		ch <- prometheus.MustNewConstMetric(c.agentTaskDesc, prometheus.GaugeValue, float64(agentCount), string(status))

		svcCount := len(c.serviceTasks.List(task.ServiceFilter{Status: status, HasStatus: true}))
		ch <- prometheus.MustNewConstMetric(c.svcTaskDesc, prometheus.GaugeValue, float64(svcCount), string(status))
	}

	byStatus := map[domain.MCPServerStatus]int{}
	for _, server := range c.mcp.List() {
		byStatus[server.Status]++
	}
	for status, count := range byStatus {
		ch <- prometheus.MustNewConstMetric(c.mcpDesc, prometheus.GaugeValue, float64(count), string(status))
	}
}
