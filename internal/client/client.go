// Package client implements the relay's client-side counterpart: a reconciler
// that mirrors the remote registry, shapes outbound traffic (position
// throttling, typing debouncing) and keeps self-expiring presence indicators
// for the renderer to read.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/protocol"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultSpeechBubbleTTL  = 4 * time.Second
	DefaultTypingIdle       = 1500 * time.Millisecond
	DefaultPositionInterval = 50 * time.Millisecond
	DefaultChatLogCap       = 50
	DefaultHandshakeTimeout = 10 * time.Second

	// typingSafetyFactor scales the idle window into the receiver-side
	// deadline that clears a typing indicator whose typing:false was lost.
	typingSafetyFactor = 4
)

// Config carries the client's tunables. Zero values fall back to the
// defaults above.
type Config struct {
	// URL is the relay endpoint, e.g. "ws://localhost:8080/ws".
	URL string

	// ReconnectDelay is the fixed pause between a dropped connection and
	// the next dial attempt.
	ReconnectDelay time.Duration

	// SpeechBubbleTTL bounds how long a speech bubble stays armed.
	SpeechBubbleTTL time.Duration

	// TypingIdle is the keystroke idle window that ends an outbound typing
	// burst.
	TypingIdle time.Duration

	// PositionInterval is the minimum spacing between outbound movement
	// frames.
	PositionInterval time.Duration

	// ChatLogCap bounds the retained chat history.
	ChatLogCap int

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.SpeechBubbleTTL <= 0 {
		c.SpeechBubbleTTL = DefaultSpeechBubbleTTL
	}
	if c.TypingIdle <= 0 {
		c.TypingIdle = DefaultTypingIdle
	}
	if c.PositionInterval <= 0 {
		c.PositionInterval = DefaultPositionInterval
	}
	if c.ChatLogCap <= 0 {
		c.ChatLogCap = DefaultChatLogCap
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return c
}

// Events is the renderer boundary: every callback is invoked from the
// client's read goroutine, so handlers must not block. All callbacks are
// optional.
type Events struct {
	// OnConnect fires when the relay's init envelope lands.
	OnConnect func(selfID string, color int)

	// OnDisconnect fires when an established connection drops. err is nil
	// on an orderly close.
	OnDisconnect func(err error)

	// OnPlayerJoined fires once per remote player, whether it arrived via
	// the snapshot or a join broadcast.
	OnPlayerJoined func(p presencenet.PlayerInfo)

	// OnPlayerLeft fires when a remote player despawns, including the mass
	// despawn after a connection drop.
	OnPlayerLeft func(playerID string)

	// OnPlayerMoved fires on each relayed movement frame.
	OnPlayerMoved func(playerID string, pos presencenet.Vec3, rotation float64)

	// OnPlayerRenamed fires on a display name change, the local player's
	// included.
	OnPlayerRenamed func(playerID, name string)

	// OnChat fires for every delivered chat entry, system notices included.
	OnChat func(msg presencenet.ChatMessage)

	// OnReaction fires for relayed reactions.
	OnReaction func(playerID, username, reaction string)

	// OnTyping fires when a typing indicator arms or clears.
	OnTyping func(playerID string, isTyping bool)

	// OnBubbleExpired fires when an armed indicator times out locally.
	OnBubbleExpired func(playerID string, kind BubbleKind)
}

// Client connects to a relay and reconciles its envelope stream into local
// state. It implements presencenet.PresenceClient.
type Client struct {
	cfg    Config
	events Events
	log    *zap.Logger

	mirror  *Mirror
	bubbles *Bubbles
	chatLog *ChatLog

	posThrottle *PositionThrottle
	typing      *TypingDebouncer

	state atomic.Int32

	mu        sync.Mutex
	conn      *websocket.Conn
	selfID    string
	selfColor int
	localName string
	closed    bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client for the given relay URL. logger may be nil.
func New(cfg Config, events Events, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:     cfg,
		events:  events,
		log:     logger.Named("client"),
		mirror:  NewMirror(),
		chatLog: NewChatLog(cfg.ChatLogCap),
		done:    make(chan struct{}),
	}
	c.bubbles = NewBubbles(cfg.SpeechBubbleTTL, typingSafetyFactor*cfg.TypingIdle, func(playerID string, kind BubbleKind) {
		if kind == TypingBubble && events.OnTyping != nil {
			events.OnTyping(playerID, false)
		}
		if events.OnBubbleExpired != nil {
			events.OnBubbleExpired(playerID, kind)
		}
	})
	c.posThrottle = NewPositionThrottle(cfg.PositionInterval, func(pos presencenet.Vec3, rotation float64) {
		c.sendEnvelope(protocol.NewPosition(pos, rotation))
	})
	c.typing = NewTypingDebouncer(cfg.TypingIdle, func(isTyping bool) {
		c.sendEnvelope(protocol.NewTyping("", isTyping, ""))
	})
	c.state.Store(int32(presencenet.StateConnecting))
	return c
}

// Run dials the relay and processes envelopes until the context is cancelled
// or Close is called. Each dropped connection is retried after the reconnect
// delay; every retry is a brand new session with a fresh id.
func (c *Client) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return errors.New(presencenet.ErrConnectionClosed)
	}
	c.cancel = cancel
	c.mu.Unlock()

	defer close(c.done)
	defer cancel()

	for {
		if err := runCtx.Err(); err != nil {
			c.state.Store(int32(presencenet.StateClosed))
			return nil
		}

		c.state.Store(int32(presencenet.StateConnecting))
		conn, err := c.dial(runCtx)
		if err != nil {
			c.log.Warn("dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
			if !c.sleep(runCtx) {
				c.state.Store(int32(presencenet.StateClosed))
				return nil
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		readErr := c.readLoop(runCtx, conn)
		c.teardownSession(readErr)

		if !c.sleep(runCtx) {
			c.state.Store(int32(presencenet.StateClosed))
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, c.cfg.URL, nil)
	return conn, err
}

// sleep waits out the reconnect delay, returning false if the context ended
// first.
func (c *Client) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(protocol.MaxFrameSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		c.apply(env)
	}
}

// apply reconciles one inbound envelope into the mirror, indicators and chat
// log, then notifies the renderer.
func (c *Client) apply(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeInit:
		c.mu.Lock()
		c.selfID = env.PlayerID
		c.selfColor = env.Color
		c.mu.Unlock()
		c.state.Store(int32(presencenet.StateOpen))
		c.log.Info("session established", zap.String("player_id", env.PlayerID))
		if c.events.OnConnect != nil {
			c.events.OnConnect(env.PlayerID, env.Color)
		}

	case protocol.TypePlayers:
		for _, p := range c.mirror.AddAll(env.Players) {
			if c.events.OnPlayerJoined != nil {
				c.events.OnPlayerJoined(p)
			}
		}

	case protocol.TypePlayerJoined:
		if c.mirror.Add(*env.Player) && c.events.OnPlayerJoined != nil {
			c.events.OnPlayerJoined(*env.Player)
		}

	case protocol.TypePlayerMoved:
		if c.mirror.Move(env.PlayerID, *env.Position, env.Rotation) && c.events.OnPlayerMoved != nil {
			c.events.OnPlayerMoved(env.PlayerID, *env.Position, env.Rotation)
		}

	case protocol.TypePlayerUpdated:
		c.mirror.Rename(env.PlayerID, env.Name)
		if id, _ := c.SelfID(); id == env.PlayerID {
			c.mu.Lock()
			c.localName = env.Name
			c.mu.Unlock()
		}
		if c.events.OnPlayerRenamed != nil {
			c.events.OnPlayerRenamed(env.PlayerID, env.Name)
		}

	case protocol.TypePlayerLeft:
		if c.mirror.Remove(env.PlayerID) {
			c.bubbles.Drop(env.PlayerID)
			if c.events.OnPlayerLeft != nil {
				c.events.OnPlayerLeft(env.PlayerID)
			}
		}

	case protocol.TypeChat:
		msg := env.ChatMessage()
		c.chatLog.Append(msg)
		if !msg.System() {
			c.bubbles.ArmSpeech(msg.PlayerID, msg.Message)
		}
		if c.events.OnChat != nil {
			c.events.OnChat(msg)
		}

	case protocol.TypeReaction:
		c.chatLog.Append(presencenet.ChatMessage{
			ID:        env.ID,
			PlayerID:  env.PlayerID,
			Username:  env.Username,
			Message:   env.Reaction,
			Timestamp: env.Timestamp,
		})
		c.bubbles.ArmSpeech(env.PlayerID, env.Reaction)
		if c.events.OnReaction != nil {
			c.events.OnReaction(env.PlayerID, env.Username, env.Reaction)
		}

	case protocol.TypeTyping:
		isTyping := env.IsTyping != nil && *env.IsTyping
		c.bubbles.SetTyping(env.PlayerID, isTyping)
		if c.events.OnTyping != nil {
			c.events.OnTyping(env.PlayerID, isTyping)
		}

	default:
		c.log.Debug("ignoring envelope", zap.String("type", env.Type))
	}
}

// teardownSession forgets everything tied to the dropped session. The next
// session gets a fresh id and a fresh snapshot, so the mirror must not carry
// anything over.
func (c *Client) teardownSession(readErr error) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.selfID = ""
	c.mu.Unlock()

	c.state.Store(int32(presencenet.StateConnecting))

	for _, id := range c.mirror.Reset() {
		c.bubbles.Drop(id)
		if c.events.OnPlayerLeft != nil {
			c.events.OnPlayerLeft(id)
		}
	}

	if readErr != nil {
		c.log.Warn("connection lost", zap.Error(readErr))
	} else {
		c.log.Info("connection closed")
	}
	if c.events.OnDisconnect != nil {
		c.events.OnDisconnect(readErr)
	}
}

// Close tears the client down, cancels any pending reconnect and waits for
// Run to return. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	c.posThrottle.Close()
	c.typing.Close()
	c.bubbles.Close()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	if cancel == nil {
		// Run was never started.
		c.state.Store(int32(presencenet.StateClosed))
		return nil
	}
	cancel()

	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.state.Store(int32(presencenet.StateClosed))
	return nil
}

// State returns the connection state.
func (c *Client) State() presencenet.ConnState {
	return presencenet.ConnState(c.state.Load())
}

// SelfID returns the id assigned by the current session's init envelope.
func (c *Client) SelfID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID, c.selfID != ""
}

// Players returns the mirrored remote players in arrival order.
func (c *Client) Players() []presencenet.PlayerInfo {
	return c.mirror.Players()
}

// MovedTo records the local avatar's latest movement sample. At most one
// frame per PositionInterval goes out; intermediate samples coalesce.
func (c *Client) MovedTo(pos presencenet.Vec3, rotation float64) {
	c.posThrottle.Update(pos, rotation)
}

// SetName requests a display name change.
func (c *Client) SetName(name string) error {
	return c.sendEnvelope(protocol.NewSetName(name))
}

// Chat sends a public chat message and ends any typing burst.
func (c *Client) Chat(message string) error {
	c.typing.Flush()
	return c.sendEnvelope(&protocol.Envelope{
		Type:     protocol.TypeChat,
		Username: c.username(),
		Message:  message,
	})
}

// ChatPrivate sends a private chat message to one player and ends any typing
// burst.
func (c *Client) ChatPrivate(toPlayerID, message string) error {
	c.typing.Flush()
	return c.sendEnvelope(&protocol.Envelope{
		Type:       protocol.TypeChat,
		Username:   c.username(),
		Message:    message,
		Private:    true,
		ToPlayerID: toPlayerID,
	})
}

// React broadcasts a short reaction token.
func (c *Client) React(reaction string) error {
	return c.sendEnvelope(&protocol.Envelope{Type: protocol.TypeReaction, Reaction: reaction})
}

// Typing notifies the client of a keystroke. Only burst edges reach the
// wire.
func (c *Client) Typing() {
	c.typing.Touch()
}

// StopTyping ends the current typing burst immediately.
func (c *Client) StopTyping() {
	c.typing.Flush()
}

// ChatHistory returns the bounded chat log, oldest first.
func (c *Client) ChatHistory() []presencenet.ChatMessage {
	return c.chatLog.Entries()
}

// SpeechBubble returns the active speech bubble text for a player.
func (c *Client) SpeechBubble(playerID string) (string, bool) {
	return c.bubbles.Speech(playerID)
}

// IsTyping reports whether a player's typing indicator is active.
func (c *Client) IsTyping(playerID string) bool {
	return c.bubbles.IsTyping(playerID)
}

func (c *Client) username() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.localName != "" {
		return c.localName
	}
	if c.selfID != "" {
		return protocol.ShortID(c.selfID)
	}
	return ""
}

// sendEnvelope writes one frame to the live connection. The connection's
// write side is serialized under the client mutex.
func (c *Client) sendEnvelope(env *protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New(presencenet.ErrConnectionClosed)
	}
	if c.conn == nil {
		return errors.New(presencenet.ErrNotConnected)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
