package presencenet

import "context"

// RelayServer defines the interface for the presence relay: a WebSocket server
// that tracks connected players and fans their envelopes out to the right
// connections.
//
// All messages exchanged between the relay and clients are UTF-8 JSON text
// frames with a required "type" field (see the protocol documentation in
// doc.go for the full table).
//
// Example usage:
//
//	import "github.com/voxelab/presencenet/ws"
//
//	srv := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil), logger)
//	srv.Start(ctx)
type RelayServer interface {
	// Start starts the relay and begins accepting connections.
	// The server keeps running until Stop is called or the context is
	// cancelled.
	//
	// Returns an error if the server is already running or the listen
	// address cannot be bound.
	Start(ctx context.Context) error

	// Stop gracefully stops the relay and closes all player connections.
	// Each close runs the normal departure path, so remaining clients
	// observe playerLeft broadcasts before their own socket drops.
	Stop(ctx context.Context) error

	// Players returns the currently registered players in registration
	// order. The slice is a copy; mutating it has no effect on the relay.
	Players() []PlayerInfo

	// SendSystemChat broadcasts a chat envelope attributed to the system
	// sentinel to every open connection. Intended for operator
	// announcements (e.g. imminent shutdown).
	SendSystemChat(ctx context.Context, message string) error
}

// Session represents one live server-side connection, 1:1 with exactly one
// player for its lifetime.
//
// The session's context is cancelled when the connection closes, allowing
// goroutines tied to the player to clean up:
//
//	go func() {
//	    <-session.Context().Done()
//	    log.Printf("player %s gone", session.PlayerID())
//	}()
type Session interface {
	// PlayerID returns the player id assigned at connect time. Ids are
	// unique for the lifetime of the server process and never reused.
	PlayerID() string

	// RemoteAddr returns the client's remote network address ("IP:port").
	RemoteAddr() string

	// Context returns the session's lifecycle context, cancelled on close.
	Context() context.Context

	// Close closes the connection gracefully. Closing an already-closed
	// session is a no-op; the departure broadcast happens exactly once.
	Close(ctx context.Context) error

	// IsAlive reports whether the connection is still open.
	IsAlive() bool
}

// PresenceClient is the client-side counterpart of the relay: it maintains a
// local mirror of the player registry, self-expiring presence indicators
// (speech and typing bubbles), a bounded chat history, and reconnects with a
// delay when the connection drops.
//
// Outbound traffic is shaped locally: position updates are throttled and
// coalesced, typing notifications are debounced into burst start/stop pairs.
type PresenceClient interface {
	// Run connects to the relay and processes inbound envelopes until the
	// context is cancelled or Close is called. Dropped connections are
	// retried after the configured reconnect delay.
	Run(ctx context.Context) error

	// Close tears the client down and cancels any pending reconnect.
	Close(ctx context.Context) error

	// State returns the connection state (connecting, open or closed).
	State() ConnState

	// SelfID returns the player id assigned by the relay's init envelope,
	// and false until it has been received.
	SelfID() (string, bool)

	// Players returns the mirrored remote players.
	Players() []PlayerInfo

	// MovedTo records the local avatar's latest position sample. Sends are
	// rate-limited; rapid movement coalesces into the next outbound frame.
	MovedTo(pos Vec3, rotation float64)

	// SetName requests a display name change. The name is trimmed and
	// capped before sending.
	SetName(name string) error

	// Chat sends a public chat message.
	Chat(message string) error

	// ChatPrivate sends a private chat message to one player. Delivery
	// goes to exactly the sender and the recipient; if the recipient is
	// offline the relay answers with a system notice instead.
	ChatPrivate(toPlayerID, message string) error

	// React broadcasts a short reaction token.
	React(reaction string) error

	// Typing notifies the client of a keystroke. The first keystroke of a
	// burst sends typing:true; typing:false follows after the idle window.
	Typing()

	// StopTyping ends the current typing burst immediately (message sent
	// or input blurred).
	StopTyping()

	// ChatHistory returns the bounded chat log, oldest first.
	ChatHistory() []ChatMessage

	// SpeechBubble returns the active speech bubble text for a player, if
	// one is armed and not yet expired.
	SpeechBubble(playerID string) (string, bool)

	// IsTyping reports whether a player's typing indicator is active.
	IsTyping(playerID string) bool
}

// ConnState is a connection lifecycle state, shared by the server-side
// session and the client-side reconnect state machine.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
