// Package relay implements the presence relay server: the connection
// manager that owns one WebSocket session per player and the router that
// fans envelopes out to the right connections.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/protocol"
	"github.com/voxelab/presencenet/internal/registry"
)

// CheckOriginFn validates the origin of a WebSocket upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after a player's handshake completes: the init
// envelope and snapshot have been queued and the player is registered.
type OnConnectFn = func(session presencenet.Session)

// OnDisconnectFn is called once per connection after the departure
// broadcast. voluntary is true when the client initiated the close.
type OnDisconnectFn = func(session presencenet.Session, voluntary bool)

// RateLimitConfig defines the per-connection inbound frame limit.
type RateLimitConfig struct {
	// MessagesPerSecond is the sustained inbound frame rate per client.
	MessagesPerSecond rate.Limit
	// Burst is the token bucket capacity.
	Burst int
	// Enabled determines if rate limiting is active.
	Enabled bool
}

// DefaultRateLimitConfig allows 40 frames per second with burst of 80:
// comfortably above a well-behaved client (20/s position throttle plus chat
// and typing), low enough to bound abuse.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 40,
		Burst:             80,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{Enabled: false}
}

// ServerConfig configures the relay server.
type ServerConfig struct {
	Addr         string
	RateLimit    *RateLimitConfig
	CheckOrigin  CheckOriginFn
	OnConnect    OnConnectFn
	OnDisconnect OnDisconnectFn
}

// Server implements the presencenet.RelayServer interface.
type Server struct {
	addr     string
	server   *http.Server
	registry *registry.Registry

	mu      sync.Mutex
	conns   map[string]*Conn
	running bool

	rateLimit    *RateLimitConfig
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnDisconnectFn
	nextMsgID    atomic.Int64
	log          *zap.Logger
}

// New creates a relay server. A nil rate limit config falls back to the
// default; a nil logger is replaced with a no-op one.
func New(cfg *ServerConfig, log *zap.Logger) *Server {
	if cfg.RateLimit == nil {
		cfg.RateLimit = DefaultRateLimitConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:         cfg.Addr,
		registry:     registry.New(log),
		conns:        make(map[string]*Conn),
		rateLimit:    cfg.RateLimit,
		onConnect:    cfg.OnConnect,
		onDisconnect: cfg.OnDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		log: log,
	}
}

// Start starts the relay and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(presencenet.ErrServerAlreadyRunning)
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Surface immediate bind errors; after that the server runs in the
	// background.
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		s.log.Info("relay listening", zap.String("addr", s.addr))
		return nil
	}
}

// Stop gracefully stops the relay. Every open connection runs the normal
// departure path so remaining clients see playerLeft before their own
// socket drops.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.closeConn(c, false)
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Players returns the currently registered players in registration order.
func (s *Server) Players() []presencenet.PlayerInfo {
	return s.registry.Snapshot()
}

// SendSystemChat broadcasts a system-sentinel chat to every open connection.
func (s *Server) SendSystemChat(_ context.Context, message string) error {
	body, ok := protocol.NormalizeChatBody(message)
	if !ok {
		return errors.New(presencenet.ErrInvalidMessageFormat)
	}
	s.broadcast(s.systemChat(body))
	return nil
}

// handleWebSocket runs the accept path: fresh id, random color, registry
// entry at spawn, init + snapshot to the new player, playerJoined and a
// system join announcement to everyone else.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	playerID := uuid.New().String()
	color := registry.Palette[rand.IntN(len(registry.Palette))]
	conn := newConn(ws, r.RemoteAddr, playerID, s.rateLimit)

	s.mu.Lock()
	s.conns[playerID] = conn
	s.mu.Unlock()

	info := s.registry.Register(playerID, color)
	s.log.Info("player connected",
		zap.String("player_id", playerID),
		zap.String("remote_addr", conn.RemoteAddr()))

	s.sendEnvelope(conn, protocol.NewInit(playerID, color))
	s.sendEnvelope(conn, protocol.NewPlayers(s.registry.SnapshotExcept(playerID)))
	s.broadcastExcept(playerID, protocol.NewPlayerJoined(info))
	s.broadcast(s.systemChat(fmt.Sprintf("Player %s joined the metaverse!", protocol.ShortID(playerID))))

	if s.onConnect != nil {
		s.onConnect(conn)
	}

	go s.readLoop(conn)
}

// readLoop processes one connection's inbound stream until it fails or
// closes, then runs the close path exactly once.
func (s *Server) readLoop(conn *Conn) {
	voluntary := false
	defer func() {
		s.closeConn(conn, voluntary)
	}()

	conn.conn.SetReadLimit(protocol.MaxFrameSize)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-conn.Context().Done():
			return
		default:
		}

		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			voluntary = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("read failed", zap.String("player_id", conn.playerID), zap.Error(err))
			}
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !conn.allowFrame() {
			// Over the inbound limit: drop the frame, keep the
			// connection. A single noisy burst is not fatal.
			s.log.Warn("rate limited frame dropped", zap.String("player_id", conn.playerID))
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			// Malformed frames never close the connection.
			s.log.Warn("malformed frame dropped",
				zap.String("player_id", conn.playerID),
				zap.Error(err))
			continue
		}

		s.route(conn, env)
	}
}

// closeConn tears one connection down: removal from the live set, registry
// unregister, socket close, then the departure broadcasts. Idempotent; the
// live-set removal is the gate, so racing closes produce exactly one
// playerLeft.
func (s *Server) closeConn(conn *Conn, voluntary bool) {
	s.mu.Lock()
	_, live := s.conns[conn.playerID]
	if live {
		delete(s.conns, conn.playerID)
	}
	s.mu.Unlock()

	if !live {
		conn.Close(context.Background())
		return
	}

	removed := s.registry.Unregister(conn.playerID)
	conn.Close(context.Background())

	if removed {
		s.log.Info("player disconnected",
			zap.String("player_id", conn.playerID),
			zap.Bool("voluntary", voluntary))
		s.broadcast(protocol.NewPlayerLeft(conn.playerID))
		s.broadcast(s.systemChat(fmt.Sprintf("Player %s left the metaverse", protocol.ShortID(conn.playerID))))
	}

	if s.onDisconnect != nil {
		s.onDisconnect(conn, voluntary)
	}
}

// systemChat stamps a relay-synthesized chat message.
func (s *Server) systemChat(message string) *protocol.Envelope {
	return protocol.NewChat(presencenet.ChatMessage{
		ID:        s.nextMsgID.Add(1),
		PlayerID:  presencenet.SystemPlayerID,
		Username:  presencenet.SystemUsername,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// sendEnvelope encodes and queues one envelope for one connection. Failures
// run the connection's close path; nobody waits on a dead socket.
func (s *Server) sendEnvelope(conn *Conn, env *protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", env.Type), zap.Error(err))
		return
	}
	s.sendRaw(conn, data)
}

func (s *Server) sendRaw(conn *Conn, data []byte) {
	if err := conn.Send(data); err != nil {
		s.log.Warn("send failed, closing connection",
			zap.String("player_id", conn.playerID),
			zap.Error(err))
		s.closeConn(conn, false)
	}
}

// liveConns copies the live connection set so no lock is held while sending.
func (s *Server) liveConns() map[string]*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Conn, len(s.conns))
	for id, c := range s.conns {
		out[id] = c
	}
	return out
}

// broadcast delivers one envelope to every open connection.
func (s *Server) broadcast(env *protocol.Envelope) {
	s.broadcastExcept("", env)
}

// broadcastExcept delivers one envelope to every open connection except the
// named sender. Exclusion is an identity check against the id->conn map,
// never a positional comparison.
func (s *Server) broadcastExcept(senderID string, env *protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", env.Type), zap.Error(err))
		return
	}
	for id, conn := range s.liveConns() {
		if id == senderID {
			continue
		}
		s.sendRaw(conn, data)
	}
}

// sendToPlayers delivers one identical envelope to the named connections
// and no one else. Duplicate ids (private chat to self) deliver once.
func (s *Server) sendToPlayers(ids []string, env *protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		s.log.Error("encode failed", zap.String("type", env.Type), zap.Error(err))
		return
	}
	conns := s.liveConns()
	sent := make(map[string]bool, len(ids))
	for _, id := range ids {
		if sent[id] {
			continue
		}
		sent[id] = true
		if conn, ok := conns[id]; ok {
			s.sendRaw(conn, data)
		}
	}
}
