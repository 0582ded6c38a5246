/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Connection struct, representing a single live WebSocket
channel owned by one authenticated user. All outbound frames go through the
connection's send channel and are written exclusively by WritePump, so writes
are never interleaved.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

var (
	// ErrConnectionClosed is returned when an operation targets a connection
	// that has already transitioned to the Closed state.
	ErrConnectionClosed = errors.New("chat: connection is closed")

	// ErrSendQueueFull is returned when the connection's outbound queue has no
	// room for another payload. The dispatcher treats it as a dead connection.
	ErrSendQueueFull = errors.New("chat: connection send queue is full")
)

// InboundEnvelope is the parsed form of a client-to-server websocket payload.
type InboundEnvelope struct {
	Type   string          `json:"type"`
	ChatID string          `json:"chat_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// InboundFunc handles a payload received from the client on an active connection.
type InboundFunc func(ctx context.Context, c *Connection, env InboundEnvelope)

// Connection represents one live bidirectional channel between a user's client
// instance and this server. It is associated with exactly one user for its lifetime.
type Connection struct {
	// opaque handle identifying this connection in logs.
	id string

	// owning user id, fixed at creation.
	userID string

	// creation time of the connection.
	createdAt time.Time

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// buffered channel queueing payloads for the single writer (WritePump).
	send chan []byte

	// closed flips once and never back; Enqueue checks it before queueing.
	closed atomic.Bool

	closeOnce sync.Once

	// signals WritePump to exit without closing the send channel.
	done chan struct{}

	// callback invoked for each parsed inbound payload.
	onInbound InboundFunc

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewConnection constructs a Connection for an authenticated user over an
// upgraded WebSocket. The caller is responsible for starting the pumps and
// registering the connection.
func NewConnection(ws *websocket.Conn, userID string, onInbound InboundFunc) *Connection {
	id := randx.ConnectionID()

	connLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("user_id", userID).
		Logger()

	return &Connection{
		id:        id,
		userID:    userID,
		createdAt: time.Now().UTC(),
		conn:      ws,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		onInbound: onInbound,
		logger:    connLogger,
	}
}

// ID returns the opaque connection handle.
func (c *Connection) ID() string { return c.id }

// UserID returns the id of the user owning this connection.
func (c *Connection) UserID() string { return c.userID }

// CreatedAt returns the creation time of the connection.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Closed reports whether the connection has reached its terminal state.
func (c *Connection) Closed() bool { return c.closed.Load() }

// Enqueue hands a serialized payload to the connection's single-writer send
// path. It never blocks: a closed connection or a full queue yields an error
// and the payload is dropped.
func (c *Connection) Enqueue(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping payload")
		return ErrSendQueueFull
	}
}

// Close transitions the connection to the Closed state, stops WritePump, and
// closes the transport. A close frame is sent before the transport goes down
// so well-behaved clients see a normal closure instead of an abrupt drop.
// Safe to call more than once and from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		if c.conn != nil {
			// WriteControl may run concurrently with WritePump's data writes.
			closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing close frame")
			}

			if err := c.conn.Close(); err != nil {
				c.logger.Debug().Err(err).Msg("Transport close error")
			}
		}

		c.logger.Info().Msg("Connection closed")
	})
}

// ReadPump reads payloads from the WebSocket until the connection dies.
// It handles heartbeats (Pong), parses inbound envelopes, and dispatches them
// to the inbound handler. It closes the connection on exit; the caller is
// expected to unregister it afterwards.
func (c *Connection) ReadPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Read error (client close/going away)")
			}
			return
		}

		var env InboundEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
			continue
		}

		if c.onInbound != nil {
			c.onInbound(ctx, c, env)
		}
	}
}

// WritePump is the sole writer of WebSocket frames for this connection.
// It drains the send queue, emits periodic pings, and exits when the
// connection is closed.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error().Err(err).Msg("Error writing payload")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				return
			}

		case <-c.done:
			// Close already sent the close frame and tears down the transport.
			return
		}
	}
}
