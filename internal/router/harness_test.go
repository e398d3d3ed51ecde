package router

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/correlator"
	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/listener"
	"github.com/orchestratorhub/hub/internal/mcpsupervisor"
	"github.com/orchestratorhub/hub/internal/registry"
	"github.com/orchestratorhub/hub/internal/task"
)

// testHub wires a full Router to three real listener.Listener instances,
// each served over httptest.Server, so tests drive the spec §8 scenarios
// the same way a real peer would: dial, send, read replies.
type testHub struct {
	t *testing.T

	router *Router

	agentSrv   *httptest.Server
	serviceSrv *httptest.Server
	clientSrv  *httptest.Server
}

func newTestHub(t *testing.T) *testHub {
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

	r := New(agents, services, clients, agentTasks, serviceTasks, mcp, corr, bus, logger)

	agentL := listener.New("agent", ":0", envelope.TypeOrchestratorWelcome, r.AgentHooks(), logger)
	serviceL := listener.New("service", ":0", envelope.TypeOrchestratorWelcome, r.ServiceHooks(), logger)
	clientL := listener.New("client", ":0", envelope.TypeOrchestratorClientWelcome, r.ClientHooks(), logger)
	r.SetListeners(agentL, serviceL, clientL)

	return &testHub{
		t:          t,
		router:     r,
		agentSrv:   httptest.NewServer(agentL.Handler()),
		serviceSrv: httptest.NewServer(serviceL.Handler()),
		clientSrv:  httptest.NewServer(clientL.Handler()),
	}
}

func (h *testHub) close() {
	h.agentSrv.Close()
	h.serviceSrv.Close()
	h.clientSrv.Close()
}

// peerConn is a dialed websocket connection plus the welcome frame it
// received, used by tests to send/read envelopes against one endpoint.
type peerConn struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *peerConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", srv.URL, err)
	}
	var welcome envelope.Envelope
	if err := ws.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return &peerConn{t: t, ws: ws}
}

func (p *peerConn) send(msgType string, content any) {
	p.t.Helper()
	env, err := envelope.New(msgType, content)
	if err != nil {
		p.t.Fatalf("build envelope %s: %v", msgType, err)
	}
	if err := p.ws.WriteJSON(env); err != nil {
		p.t.Fatalf("write %s: %v", msgType, err)
	}
}

func (p *peerConn) read() envelope.Envelope {
	p.t.Helper()
	p.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env envelope.Envelope
	if err := p.ws.ReadJSON(&env); err != nil {
		p.t.Fatalf("read envelope: %v", err)
	}
	return env
}

func (p *peerConn) expectType(want string) envelope.Envelope {
	p.t.Helper()
	env := p.read()
	if env.Type != want {
		p.t.Fatalf("expected type %q, got %q (content %s)", want, env.Type, env.Content)
	}
	return env
}

func (p *peerConn) close() {
	p.ws.Close()
}
