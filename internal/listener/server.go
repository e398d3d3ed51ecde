package listener

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

const protocolVersion = "1.0"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hooks wires a Listener to the rest of the hub without the listener
// package needing to know about any specific registry type (spec §4.4's
// three listeners share identical accept/dispatch/close behavior but
// differ only in which registry and welcome type they use).
type Hooks struct {
	// OnConnect is called once a connection id has been minted, before the
	// welcome frame is sent. Typically calls a registry's AddPending.
	OnConnect func(connID string)
	// OnFrame is called once per successfully decoded inbound envelope.
	OnFrame FrameHandler
	// OnDisconnect is called exactly once when the connection's pumps exit.
	OnDisconnect DisconnectHandler
}

// Listener serves one of the three peer-facing websocket endpoints (spec
// §4.4). Each kind ("agent", "service", "client") runs its own Listener on
// its own port.
type Listener struct {
	kind        string
	welcomeType string
	hooks       Hooks
	logger      *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Conn

	httpServer *http.Server
}

// New creates a Listener for the given peer kind ("agent", "service", or
// "client"), serving on addr (e.g. ":3000"). welcomeType is the outbound
// welcome frame's type (orchestrator.welcome or orchestrator.client.welcome).
func New(kind, addr, welcomeType string, hooks Hooks, logger *zap.Logger) *Listener {
	l := &Listener{
		kind:        kind,
		welcomeType: welcomeType,
		hooks:       hooks,
		logger:      logger.Named("listener." + kind),
		conns:       make(map[string]*Conn),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", l.handleUpgrade)

	l.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return l
}

// Serve blocks, running the HTTP upgrade server until Shutdown is called.
func (l *Listener) Serve() error {
	l.logger.Info("listener started", zap.String("addr", l.httpServer.Addr))
	err := l.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new connections and closes all live
// ones. It returns once the sockets are closed; it does not wait for the
// connections' read and write pumps to exit.
func (l *Listener) Shutdown(ctx context.Context) error {
	err := l.httpServer.Shutdown(ctx)

	l.mu.Lock()
	conns := make([]*Conn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
	return err
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	conn := newConn(connID, l.kind, ws, l.logger, l.hooks.OnFrame, l.wrapDisconnect(connID))

	l.mu.Lock()
	l.conns[connID] = conn
	l.mu.Unlock()

	if l.hooks.OnConnect != nil {
		l.hooks.OnConnect(connID)
	}

	welcome, err := envelope.New(l.welcomeType, map[string]string{
		"id":      connID,
		"version": protocolVersion,
	})
	if err == nil {
		conn.trySend(welcome)
	}

	conn.run()
}

func (l *Listener) wrapDisconnect(connID string) DisconnectHandler {
	return func(id string) {
		l.mu.Lock()
		delete(l.conns, connID)
		l.mu.Unlock()
		if l.hooks.OnDisconnect != nil {
			l.hooks.OnDisconnect(connID)
		}
	}
}

// Send emits env on connID's write pump, stamping id/timestamp if absent
// (spec §4.1). Returns ErrUnknownConnection if connID has no live
// connection — callers treat this the same as a failed transport write
// (spec §7: UnavailablePeer).
func (l *Listener) Send(connID string, env envelope.Envelope) error {
	l.mu.RLock()
	conn, ok := l.conns[connID]
	l.mu.RUnlock()
	if !ok {
		return huberrors.ErrUnknownConnection
	}
	env = envelope.EnsureStamped(env)
	if !conn.trySend(env) {
		return huberrors.ErrUnavailablePeer
	}
	return nil
}

// SendError emits an `error` envelope to connID (spec §4.4: sendError).
func (l *Listener) SendError(connID string, cause error, requestID string, details any) error {
	payload := huberrors.NewPayload(cause, details)
	env, err := envelope.New(envelope.TypeError, payload)
	if err != nil {
		return err
	}
	env.RequestID = requestID
	return l.Send(connID, env)
}

// Connected reports whether connID currently has a live connection.
func (l *Listener) Connected(connID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.conns[connID]
	return ok
}

// Close forcibly closes connID's underlying transport. The normal
// readPump/OnDisconnect teardown path runs exactly as it would for a
// peer-initiated close. Used by the maintenance sweep to evict
// connections that never completed registration.
func (l *Listener) Close(connID string) error {
	l.mu.RLock()
	conn, ok := l.conns[connID]
	l.mu.RUnlock()
	if !ok {
		return huberrors.ErrUnknownConnection
	}
	conn.ws.Close()
	return nil
}

// Handler exposes the upgrade mux directly, for tests that drive the
// listener through httptest.NewServer rather than a bound TCP port.
func (l *Listener) Handler() http.Handler {
	return l.httpServer.Handler
}

// shutdownTimeout is not referenced: Listener.Shutdown is bounded only by
// the caller's context, and the bootstrap sequence passes its own.
const shutdownTimeout = 5 * time.Second
