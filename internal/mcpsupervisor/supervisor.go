package mcpsupervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/domain"
	"github.com/orchestratorhub/hub/internal/eventbus"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// ToolCallTimeout is the default deadline for executeTool (spec §4.6).
const ToolCallTimeout = 30 * time.Second

// handshakeTimeout bounds the initialize + list_tools sequence performed
// on connect (spec §5: "Subprocess spawn initialize handshake" is a
// suspension point).
const handshakeTimeout = 10 * time.Second

const disconnectTimeout = 2 * time.Second

// Supervisor owns the MCPServer registry and live subprocess connections.
type Supervisor struct {
	mu      sync.Mutex
	servers map[string]*domain.MCPServer
	conns   map[string]*connection

	logger *zap.Logger
	bus    *eventbus.Bus
}

// New creates an empty Supervisor.
func New(logger *zap.Logger, bus *eventbus.Bus) *Supervisor {
	return &Supervisor{
		servers: make(map[string]*domain.MCPServer),
		conns:   make(map[string]*connection),
		logger:  logger.Named("mcpsupervisor"),
		bus:     bus,
	}
}

// RegisterConfig describes an MCP server to register, mirroring
// jaakkos-stringwork/internal/policy.MCPServerConfig's {name, type, path,
// command, args} shape (spec §4.6: register).
type RegisterConfig struct {
	ID           string
	Name         string
	Type         string
	Path         string
	Command      string
	Args         []string
	Capabilities []string
	Metadata     map[string]any
}

// Register upserts an MCPServer by id, generating one if absent. Idempotent.
func (s *Supervisor) Register(cfg RegisterConfig) (*domain.MCPServer, error) {
	if cfg.Name == "" || (cfg.Path == "" && cfg.Command == "") {
		return nil, fmt.Errorf("%w: mcp server requires name and (path or command)", huberrors.ErrInvalidMessage)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.servers[id]
	if !ok {
		rec = &domain.MCPServer{ID: id, RegisteredAt: now, Status: domain.MCPRegistered}
		s.servers[id] = rec
	}
	rec.Name = cfg.Name
	rec.Type = cfg.Type
	rec.Path = cfg.Path
	rec.Command = cfg.Command
	rec.Args = cfg.Args
	rec.Capabilities = cfg.Capabilities
	rec.Metadata = cfg.Metadata
	rec.UpdatedAt = now

	s.logger.Info("mcp server registered", zap.String("server_id", id), zap.String("name", cfg.Name))
	return rec, nil
}

// Connect resolves server, disconnecting any existing live connection
// first, spawns the subprocess, and performs the initialize + list_tools
// handshake (spec §4.6: connect).
func (s *Supervisor) Connect(ctx context.Context, serverID string) (*domain.MCPServer, error) {
	s.mu.Lock()
	rec, ok := s.servers[serverID]
	if !ok {
		s.mu.Unlock()
		return nil, huberrors.ErrNotFound
	}
	if existing, ok := s.conns[serverID]; ok {
		delete(s.conns, serverID)
		s.mu.Unlock()
		s.teardown(existing)
		s.mu.Lock()
	}
	spec := launchSpec{ID: rec.ID, Type: rec.Type, Path: rec.Path, Command: rec.Command, Args: rec.Args}
	s.mu.Unlock()

	conn, err := spawn(spec, s.logger, s.handleConnectionExit)
	if err != nil {
		s.markError(serverID)
		return nil, err
	}

	if err := s.handshake(ctx, conn); err != nil {
		conn.kill()
		s.markError(serverID)
		return nil, err
	}

	connID := uuid.NewString()

	s.mu.Lock()
	s.conns[serverID] = conn
	rec.Status = domain.MCPOnline
	rec.ConnectionID = connID
	rec.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("mcp server connected", zap.String("server_id", serverID), zap.Int("tools", len(conn.tools)))
	return rec, nil
}

func (s *Supervisor) handshake(ctx context.Context, conn *connection) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	initID := uuid.NewString()
	ch := conn.await(initID)
	if err := conn.send(Frame{ID: initID, Type: frameInitialize, Version: protocolVersion}); err != nil {
		conn.cancelAwait(initID)
		return fmt.Errorf("mcpsupervisor: initialize: %w", err)
	}
	if err := waitFrame(ctx, conn, initID, ch); err != nil {
		return err
	}

	toolsID := uuid.NewString()
	ch = conn.await(toolsID)
	if err := conn.send(Frame{ID: toolsID, Type: frameListTools}); err != nil {
		conn.cancelAwait(toolsID)
		return fmt.Errorf("mcpsupervisor: list_tools: %w", err)
	}
	frame, err := waitFrameResult(ctx, conn, toolsID, ch)
	if err != nil {
		return err
	}
	conn.tools = frame.Tools
	return nil
}

func waitFrame(ctx context.Context, conn *connection, id string, ch chan Frame) error {
	_, err := waitFrameResult(ctx, conn, id, ch)
	return err
}

func waitFrameResult(ctx context.Context, conn *connection, id string, ch chan Frame) (Frame, error) {
	select {
	case f := <-ch:
		if f.Error != "" {
			return Frame{}, fmt.Errorf("mcpsupervisor: %s", f.Error)
		}
		return f, nil
	case <-ctx.Done():
		conn.cancelAwait(id)
		return Frame{}, huberrors.ErrTimeout
	case <-conn.closed:
		return Frame{}, fmt.Errorf("mcpsupervisor: subprocess exited during handshake")
	}
}

// ListTools lazy-connects if needed and returns the cached tool set (spec
// §4.6: listTools).
func (s *Supervisor) ListTools(ctx context.Context, serverID string) ([]domain.MCPTool, error) {
	conn, err := s.ensureConnected(ctx, serverID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MCPTool, 0, len(conn.tools))
	for _, t := range conn.tools {
		out = append(out, domain.MCPTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out, nil
}

// ExecuteTool lazy-connects, sends a tool_call frame, and awaits the
// matching reply with a 30s default timeout (spec §4.6: executeTool).
func (s *Supervisor) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (any, map[string]any, error) {
	conn, err := s.ensureConnected(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
	defer cancel()

	id := uuid.NewString()
	ch := conn.await(id)
	if err := conn.send(Frame{ID: id, Type: frameToolCall, Tool: &ToolCall{Name: toolName, Args: args}}); err != nil {
		conn.cancelAwait(id)
		return nil, nil, err
	}

	frame, err := waitFrameResult(ctx, conn, id, ch)
	if err != nil {
		return nil, nil, err
	}
	return frame.Result, frame.Metadata, nil
}

func (s *Supervisor) ensureConnected(ctx context.Context, serverID string) (*connection, error) {
	s.mu.Lock()
	conn, ok := s.conns[serverID]
	s.mu.Unlock()
	if ok {
		return conn, nil
	}
	if _, err := s.Connect(ctx, serverID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	conn, ok = s.conns[serverID]
	s.mu.Unlock()
	if !ok {
		return nil, huberrors.ErrUnavailablePeer
	}
	return conn, nil
}

// Disconnect sends a best-effort shutdown frame with a 2s timeout, then
// kills the process, and returns the server to "registered" (spec §4.6:
// disconnect).
func (s *Supervisor) Disconnect(serverID string) error {
	s.mu.Lock()
	conn, ok := s.conns[serverID]
	if ok {
		delete(s.conns, serverID)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}

	s.teardown(conn)
	s.markRegistered(serverID)
	return nil
}

func (s *Supervisor) teardown(conn *connection) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	id := uuid.NewString()
	ch := conn.await(id)
	if err := conn.send(Frame{ID: id, Type: frameShutdown}); err == nil {
		select {
		case <-ch:
		case <-ctx.Done():
		case <-conn.closed:
		}
	}
	conn.kill()
	conn.shutdownPending(huberrors.ErrShutdown)
}

// handleConnectionExit reacts to a subprocess exiting on its own — as
// opposed to being torn down by Disconnect or superseded by a fresh
// Connect — by dropping the stale conns entry and returning the server to
// registered so the next ensureConnected call actually reconnects instead
// of reusing a dead connection forever (spec §4.6: "subprocess exit
// event"). Guarded by pointer identity: a connection that has already
// been replaced or explicitly torn down must not clobber what replaced
// it.
func (s *Supervisor) handleConnectionExit(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[conn.serverID] != conn {
		return
	}
	delete(s.conns, conn.serverID)
	if rec, ok := s.servers[conn.serverID]; ok {
		rec.Status = domain.MCPRegistered
		rec.ConnectionID = ""
		rec.UpdatedAt = time.Now().UTC()
	}
	s.logger.Warn("mcp subprocess exited unexpectedly", zap.String("server_id", conn.serverID))
}

func (s *Supervisor) markError(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.servers[serverID]; ok {
		rec.Status = domain.MCPError
		rec.UpdatedAt = time.Now().UTC()
	}
}

func (s *Supervisor) markRegistered(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.servers[serverID]; ok {
		rec.Status = domain.MCPRegistered
		rec.ConnectionID = ""
		rec.UpdatedAt = time.Now().UTC()
	}
}

// Get returns the MCPServer record for id, or (nil, false).
func (s *Supervisor) Get(serverID string) (*domain.MCPServer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.servers[serverID]
	return rec, ok
}

// List returns a snapshot of all registered MCPServer records.
func (s *Supervisor) List() []*domain.MCPServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.MCPServer, 0, len(s.servers))
	for _, rec := range s.servers {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}
