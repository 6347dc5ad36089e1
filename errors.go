package presencenet

// System sentinel identity used for relay-synthesized chat (join/leave
// announcements, offline-recipient notices). The sentinel never appears in
// the registry and never arms a client-side speech bubble.
const (
	SystemPlayerID = "system"
	SystemUsername = "System"
)

// Standard error messages
const (
	// Protocol errors
	ErrInvalidMessageFormat = "invalid message format"
	ErrUnknownEnvelopeType  = "unknown envelope type"
	ErrMissingRequiredField = "missing required field"

	// Connection errors
	ErrPlayerNotFound       = "player not found"
	ErrConnectionClosed     = "connection is closed"
	ErrContextCancelled     = "context cancelled"
	ErrNotConnected         = "client is not connected"
	ErrSendBufferFull       = "send buffer full"
	ErrServerAlreadyRunning = "server already running"
)
