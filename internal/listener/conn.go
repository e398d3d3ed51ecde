// Package listener implements the hub's three peer-facing endpoints
// (spec §4.4): accept, frame decode/encode, and per-connection dispatch to
// the router. Each endpoint is an independent gorilla/websocket server.
//
// Grounded on arkeep-io-arkeep/server/internal/websocket.{Hub,Client},
// generalized from that teacher's server-push-only protocol (readPump
// only detects disconnection; application data flows one way) to full
// bidirectional read/write, since every peer kind in this spec sends
// frames inbound as well as receiving them. The single-writer write-pump
// convention and ping/pong keepalive are kept unchanged.
package listener

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/envelope"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1 << 20 // 1MiB — peer frames carry task payloads, unlike the teacher's pong-only protocol.

	sendBufferSize = 64
)

// FrameHandler is invoked once per inbound, successfully decoded envelope.
type FrameHandler func(connID string, env envelope.Envelope)

// DisconnectHandler is invoked exactly once when a connection's pumps exit.
type DisconnectHandler func(connID string)

// Conn is one accepted, possibly-not-yet-registered peer connection.
// Exactly one goroutine (writePump) writes to the underlying
// *websocket.Conn, matching the teacher's single-writer convention.
type Conn struct {
	id     string
	kind   string
	ws     *websocket.Conn
	send   chan envelope.Envelope
	logger *zap.Logger

	onFrame      FrameHandler
	onDisconnect DisconnectHandler
}

func newConn(id, kind string, ws *websocket.Conn, logger *zap.Logger, onFrame FrameHandler, onDisconnect DisconnectHandler) *Conn {
	return &Conn{
		id:           id,
		kind:         kind,
		ws:           ws,
		send:         make(chan envelope.Envelope, sendBufferSize),
		logger:       logger.With(zap.String("conn_id", id), zap.String("peer_kind", kind)),
		onFrame:      onFrame,
		onDisconnect: onDisconnect,
	}
}

// run starts the read and write pumps and blocks until the connection
// closes. Call in its own goroutine per accepted connection.
func (c *Conn) run() {
	go c.writePump()
	c.readPump()
}

// trySend enqueues env for the write pump without blocking (spec §5:
// "Writes to connections are non-blocking at the hub's API"). If the
// buffer is full the connection is treated as disconnected and closed —
// a stalled peer should not apply backpressure to the rest of the hub.
func (c *Conn) trySend(env envelope.Envelope) bool {
	select {
	case c.send <- env:
		return true
	default:
		c.logger.Warn("send buffer full, closing connection")
		c.ws.Close()
		return false
	}
}

func (c *Conn) readPump() {
	defer func() {
		close(c.send)
		c.ws.Close()
		c.onDisconnect(c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		var env envelope.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.logger.Warn("malformed or typeless frame")
			c.sendInvalidMessage()
			continue
		}
		c.onFrame(c.id, env)
	}
}

func (c *Conn) sendInvalidMessage() {
	errEnv, err := envelope.New(envelope.TypeError, map[string]string{"error": "invalid message: malformed JSON"})
	if err != nil {
		return
	}
	c.trySend(errEnv)
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Warn("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("ping error", zap.Error(err))
				return
			}
		}
	}
}
