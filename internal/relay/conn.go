package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/voxelab/presencenet"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	sendBufferSize = 256
)

// Conn owns one WebSocket session, 1:1 with exactly one player for its
// lifetime. Writes go through a buffered channel drained by a single write
// pump, so the router never blocks on a slow socket.
type Conn struct {
	playerID   string
	conn       *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	sendCh     chan []byte
	mu         sync.RWMutex
	closed     bool
	limiter    *rate.Limiter
}

// newConn wraps an upgraded WebSocket connection and starts its write pump.
func newConn(ws *websocket.Conn, remoteAddr, playerID string, rl *RateLimitConfig) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if rl != nil && rl.Enabled {
		limiter = rate.NewLimiter(rl.MessagesPerSecond, rl.Burst)
	}

	c := &Conn{
		playerID:   playerID,
		conn:       ws,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sendCh:     make(chan []byte, sendBufferSize),
		limiter:    limiter,
	}

	go c.writePump()

	return c
}

// PlayerID returns the player id assigned at connect time.
func (c *Conn) PlayerID() string {
	return c.playerID
}

// RemoteAddr returns the client's remote network address.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Context returns the session's lifecycle context, cancelled on close.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Send enqueues an encoded frame without blocking. A full buffer means the
// client has stalled; the caller gets ErrSendBufferFull and is expected to
// run the connection's close path rather than wait.
func (c *Conn) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New(presencenet.ErrConnectionClosed)
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return errors.New(presencenet.ErrSendBufferFull)
	}
}

// Close closes the connection gracefully. Safe to call more than once.
func (c *Conn) Close(ctx context.Context) error {
	return c.CloseWithCode(ctx, websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a specific close code and reason.
func (c *Conn) CloseWithCode(_ context.Context, code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.conn.Close()
}

// IsAlive reports whether the connection is still open.
func (c *Conn) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// allowFrame applies the per-connection inbound rate limit. Frames over the
// limit are dropped by the caller, not fatal to the connection.
func (c *Conn) allowFrame() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
