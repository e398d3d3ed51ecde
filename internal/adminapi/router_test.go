package adminapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/task"
)

func newTestRouter(t *testing.T, secret string) (http.Handler, *registry.AgentRegistry) {
	t.Helper()
	router, agents, _ := newTestRouterWithBus(t, secret)
	return router, agents
}

func newTestRouterWithBus(t *testing.T, secret string) (http.Handler, *registry.AgentRegistry, *eventbus.Bus) {
	t.Helper()
	logger := zap.NewNop()
	bus := eventbus.New()

	agents := registry.NewAgentRegistry(logger, bus)
	services := registry.NewServiceRegistry(logger, bus)
	clients := registry.NewClientRegistry(logger, bus)
	agentTasks := task.NewAgentRegistry(logger, bus)
	serviceTasks := task.NewServiceRegistry(logger, bus)
	mcp := mcpsupervisor.New(logger, bus)
	corr := correlator.New(logger)

	return NewRouter(Config{
		Agents:       agents,
		Services:     services,
		Clients:      clients,
		AgentTasks:   agentTasks,
		ServiceTasks: serviceTasks,
		MCP:          mcp,
		Correlator:   corr,
		Bus:          bus,
		Logger:       logger,
		TokenSecret:  secret,
	}), agents, bus
}

func TestHealthzIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, "")
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsIsPublicAndExposesPeerGauge(t *testing.T) {
	router, agents := newTestRouter(t, "")
	agents.AddPending("conn-1")
	if _, err := agents.Register("a1", "worker", nil, "conn-1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "orchestratorhub_peers_connected") {
		t.Fatalf("expected peer gauge in metrics output, got: %s", body)
	}
}

func TestAdminRoutesRequireTokenWhenSecretSet(t *testing.T) {
	router, _ := newTestRouter(t, "shared-secret")
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/v1/agents")
	if err != nil {
		t.Fatalf("GET /admin/v1/agents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesAcceptValidToken(t *testing.T) {
	secret := "shared-secret"
	router, agents := newTestRouter(t, secret)
	agents.AddPending("conn-1")
	if _, err := agents.Register("a1", "worker", nil, "conn-1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	token, err := IssueToken(secret, "operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /admin/v1/agents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Data) != 1 {
		t.Fatalf("expected one agent, got %d", len(decoded.Data))
	}
	if _, ok := decoded.Data[0]["registeredFor"]; !ok {
		t.Fatalf("expected a humanized registeredFor field, got %+v", decoded.Data[0])
	}
}

func TestAdminRoutesRejectWrongSecret(t *testing.T) {
	router, _ := newTestRouter(t, "shared-secret")
	srv := httptest.NewServer(router)
	defer srv.Close()

	token, err := IssueToken("different-secret", "operator", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /admin/v1/agents: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", resp.StatusCode)
	}
}

// TestEventsStreamDeliversPublishedEvents exercises the event bus's one
// real subscriber: a peer registration published on the bus should arrive
// on the SSE feed as a peer.registered event.
func TestEventsStreamDeliversPublishedEvents(t *testing.T) {
	router, agents, _ := newTestRouterWithBus(t, "")
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /admin/v1/events: %v", err)
	}
	defer resp.Body.Close()

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	agents.AddPending("conn-1")
	if _, err := agents.Register("a1", "worker", nil, "conn-1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	lines := make(chan string, 16)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- line
			}
			if err != nil {
				close(lines)
				return
			}
		}
	}()

	found := false
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if strings.Contains(line, "peer.registered") {
				found = true
				break loop
			}
		case <-timeout:
			break loop
		}
	}
	if !found {
		t.Fatal("expected a peer.registered event on the SSE stream")
	}
}

func TestGetAgentNotFound(t *testing.T) {
	router, _ := newTestRouter(t, "")
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/v1/agents/no-such-agent")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
