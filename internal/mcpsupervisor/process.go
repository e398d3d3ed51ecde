package mcpsupervisor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// connection is a live subprocess and its correlator, one per connected
// MCPServer (spec §3: MCPConnection). Grounded on worker_manager.go's
// per-instance mutex-guarded state, adapted to a request/reply stdio
// protocol rather than a long-running worker CLI.
type connection struct {
	serverID string
	cmd      *exec.Cmd
	stdinMu  sync.Mutex
	stdin    writeCloser
	logger   *zap.Logger

	pendingMu sync.Mutex
	pending   map[string]chan Frame

	tools []Tool

	// onExit notifies the Supervisor once this connection's subprocess
	// has exited, so it can drop the stale conns entry and mark the
	// server record for reconnect (spec §4.6: "subprocess exit event").
	onExit func(*connection)

	closeOnce sync.Once
	closed    chan struct{}
}

type writeCloser interface {
	Write([]byte) (int, error)
	Close() error
}

// spawn launches the subprocess for server according to its launch
// convention: explicit command+args, else type=python/node conventions
// (spec §4.6: connect).
func spawn(server launchSpec, logger *zap.Logger, onExit func(*connection)) (*connection, error) {
	name, args, err := launchCommand(server)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(name, args...)
	if server.Path != "" {
		cmd.Dir = filepath.Dir(server.Path)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcpsupervisor: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcpsupervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("mcpsupervisor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcpsupervisor: spawn: %w", err)
	}

	conn := &connection{
		serverID: server.ID,
		cmd:      cmd,
		stdin:    stdin,
		logger:   logger,
		pending:  make(map[string]chan Frame),
		onExit:   onExit,
		closed:   make(chan struct{}),
	}

	go conn.readLoop(stdout)
	go logStderr(stderr, logger, server.ID)

	return conn, nil
}

type launchSpec struct {
	ID      string
	Type    string
	Path    string
	Command string
	Args    []string
}

// launchCommand decides the program + args to exec, per spec §4.6: explicit
// command+args wins, else type selects the convention.
func launchCommand(server launchSpec) (string, []string, error) {
	if server.Command != "" {
		return server.Command, server.Args, nil
	}
	switch server.Type {
	case "python":
		return "python", append([]string{server.Path}, server.Args...), nil
	case "node":
		return "node", append([]string{server.Path}, server.Args...), nil
	default:
		return "", nil, fmt.Errorf("mcpsupervisor: unsupported server type %q without explicit command", server.Type)
	}
}

// send writes one frame as a line of JSON. Single-writer convention: only
// the owning correlator call path writes to stdin.
func (c *connection) send(f Frame) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	_, err = c.stdin.Write(b)
	return err
}

// readLoop decodes one JSON document per line from stdout and routes it
// to the pending request awaiting that id (spec §4.6: "reader task owns
// stdout decoding").
func (c *connection) readLoop(stdout interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			c.logger.Warn("malformed mcp subprocess frame", zap.String("server_id", c.serverID), zap.Error(err))
			continue
		}
		c.deliver(f)
	}
	c.shutdownPending(fmt.Errorf("mcpsupervisor: subprocess exited"))
	if c.onExit != nil {
		c.onExit(c)
	}
}

func (c *connection) deliver(f Frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- f
	}
}

func (c *connection) await(id string) chan Frame {
	ch := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	return ch
}

func (c *connection) cancelAwait(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// shutdownPending fails every in-flight request on this connection, used
// both on subprocess exit and on explicit disconnect.
func (c *connection) shutdownPending(err error) {
	c.closeOnce.Do(func() { close(c.closed) })

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Frame)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- Frame{Error: err.Error()}
	}
}

func (c *connection) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func logStderr(stderr interface{ Read([]byte) (int, error) }, logger *zap.Logger, serverID string) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Info("mcp subprocess stderr", zap.String("server_id", serverID), zap.String("line", scanner.Text()))
	}
}
