// Package ws constructs the presence relay server.
package ws

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/relay"
)

type RateLimitConfig = relay.RateLimitConfig
type CheckOriginFn = relay.CheckOriginFn
type OnConnectFn = relay.OnConnectFn
type OnDisconnectFn = relay.OnDisconnectFn
type ServerConfig = *relay.ServerConfig

// New creates a presence relay server. logger may be nil for silent
// operation.
//
// Example:
//
//	srv := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), func(s presencenet.Session) {
//	    log.Printf("player connected: %s", s.PlayerID())
//	}, nil), logger)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg ServerConfig, logger *zap.Logger) presencenet.RelayServer {
	return relay.New(cfg, logger)
}

// NewConfig assembles a server configuration.
//
// Parameters:
//   - addr: The listen address (e.g., ":8080" or "localhost:8080")
//   - rateLimitConfig: Per-connection inbound frame limit. Use
//     DefaultRateLimitConfig() or NoRateLimit()
//   - checkOrigin: Function to validate WebSocket origins. Use AllOrigins()
//     to allow all (dev only)
//   - onConnect: Optional callback invoked after a player's handshake
//     completes. Can be nil.
//   - onDisconnect: Optional callback invoked once per departed player,
//     after the playerLeft broadcast. Can be nil.
func NewConfig(addr string, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn, onConnect OnConnectFn, onDisconnect OnDisconnectFn) ServerConfig {
	return &relay.ServerConfig{
		Addr:         addr,
		RateLimit:    rateLimitConfig,
		CheckOrigin:  checkOrigin,
		OnConnect:    onConnect,
		OnDisconnect: onDisconnect,
	}
}

// AllOrigins returns a checkOrigin function that allows all origins.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() *RateLimitConfig {
	return relay.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimitConfig {
	return relay.NoRateLimit()
}
