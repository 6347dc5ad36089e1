// Package wsclient constructs the presence client.
package wsclient

import (
	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/client"
)

type Config = client.Config
type Events = client.Events
type BubbleKind = client.BubbleKind

const (
	SpeechBubble = client.SpeechBubble
	TypingBubble = client.TypingBubble
)

// New creates a presence client for the given relay URL. Zero-valued Config
// fields fall back to defaults (3s reconnect delay, 4s speech bubbles, 1.5s
// typing idle, 50ms position throttle, 50-entry chat log). logger may be
// nil.
//
// Example:
//
//	c := wsclient.New(wsclient.Config{URL: "ws://localhost:8080/ws"}, wsclient.Events{
//	    OnChat: func(msg presencenet.ChatMessage) {
//	        log.Printf("[%s] %s", msg.Username, msg.Message)
//	    },
//	}, logger)
//	go c.Run(ctx)
func New(cfg Config, events Events, logger *zap.Logger) presencenet.PresenceClient {
	return client.New(cfg, events, logger)
}
