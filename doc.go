// Package presencenet provides a WebSocket presence and messaging relay for
// small multiplayer worlds, plus the matching client-side reconciler.
//
// Many independent clients keep an eventually-consistent view of who is
// online, where they are, and what they are saying. The relay owns the
// authoritative player registry; clients maintain a local mirror that is
// updated by inbound envelopes and decorated with self-expiring presence
// indicators (speech bubbles, typing bubbles).
//
// # Architecture
//
// The relay is a single process. Each connection gets a unique player id and
// a color at accept time; inbound envelopes are routed per type: movement,
// untargeted typing and reactions broadcast to everyone except the sender,
// name changes broadcast to all, private chat is delivered to exactly the
// sender and the named recipient. A slow or dead connection never delays
// delivery to others; its send path fails fast and triggers that
// connection's own close handling.
//
// # Quick Start
//
// Server:
//
//	import "github.com/voxelab/presencenet/ws"
//
//	srv := ws.New(ws.NewConfig(":8080", ws.DefaultRateLimitConfig(), ws.AllOrigins(), nil, nil), logger)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Client:
//
//	import "github.com/voxelab/presencenet/wsclient"
//
//	c := wsclient.New(wsclient.Config{URL: "ws://localhost:8080/ws"}, wsclient.Events{}, logger)
//	go c.Run(ctx)
//	c.Chat("hello")
//
// # Wire Format
//
// Every frame is a UTF-8 JSON object with a required "type" field:
//
//	init          S->C  playerId, color
//	players       S->C  players: [{id,color,position,rotation,name?}]
//	playerJoined  S->C  player
//	playerUpdated S->C  playerId, name
//	playerMoved   S->C  playerId, position, rotation
//	playerLeft    S->C  playerId
//	position      C->S  position{x,y,z}, rotation
//	setName       C->S  name
//	typing        both  isTyping, toPlayerId?
//	reaction      both  reaction
//	chat          both  username, message, private?, toPlayerId?
//
// The relay stamps id, timestamp and playerId on chat and reaction envelopes.
// Malformed frames are logged and dropped; a single bad message never closes
// the connection.
//
// # Rate Limiting
//
// Each connection has an independent token-bucket limiter for inbound
// frames. Frames over the limit are dropped, not fatal:
//
//	cfg := &ws.RateLimitConfig{MessagesPerSecond: 40, Burst: 80, Enabled: true}
//
// Client-side, position updates are throttled to one per 50ms (coalescing
// the latest sample) and typing notifications are debounced into a single
// true/false pair per input burst.
//
// # Important
//
//   - Envelopes are immutable once constructed; routing never rewrites a
//     frame for one recipient differently than another (the offline-recipient
//     notice is a fresh system envelope, not a mutation).
//   - Bubble expiry runs on client-local timers so a dropped connection
//     cannot leave a stuck indicator.
//   - Configure the origin check in production; AllOrigins is for
//     development only.
package presencenet
