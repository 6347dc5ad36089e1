// Package main provides a headless presence client for smoke-testing a
// relay: it connects, wanders around the spawn point, chats once and prints
// everything it observes.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/config"
	"github.com/voxelab/presencenet/internal/logging"
	"github.com/voxelab/presencenet/wsclient"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and PRESENCE_* env vars")
	name := flag.String("name", "probe", "display name to request after connecting")
	wander := flag.Bool("wander", true, "circle the spawn point to generate movement traffic")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := wsclient.New(wsclient.Config{
		URL:              cfg.Client.URL,
		ReconnectDelay:   cfg.Client.ReconnectDelay,
		SpeechBubbleTTL:  cfg.Client.SpeechBubbleTTL,
		TypingIdle:       cfg.Client.TypingIdle,
		PositionInterval: cfg.Client.PositionInterval,
		ChatLogCap:       cfg.Client.ChatLogCap,
	}, wsclient.Events{
		OnConnect: func(selfID string, color int) {
			logger.Info("connected", zap.String("self_id", selfID), zap.Int("color", color))
		},
		OnDisconnect: func(err error) {
			logger.Warn("disconnected", zap.Error(err))
		},
		OnPlayerJoined: func(p presencenet.PlayerInfo) {
			logger.Info("player joined", zap.String("player_id", p.ID), zap.String("name", p.Name))
		},
		OnPlayerLeft: func(playerID string) {
			logger.Info("player left", zap.String("player_id", playerID))
		},
		OnChat: func(msg presencenet.ChatMessage) {
			logger.Info("chat",
				zap.String("from", msg.Username),
				zap.String("message", msg.Message),
				zap.Bool("private", msg.Private))
		},
		OnReaction: func(playerID, username, reaction string) {
			logger.Info("reaction", zap.String("from", username), zap.String("reaction", reaction))
		},
		OnTyping: func(playerID string, isTyping bool) {
			logger.Debug("typing", zap.String("player_id", playerID), zap.Bool("is_typing", isTyping))
		},
	}, logger)

	go func() {
		if err := c.Run(ctx); err != nil {
			logger.Error("client stopped", zap.Error(err))
		}
	}()

	go announce(ctx, c, *name)
	if *wander {
		go wanderLoop(ctx, c)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := c.Close(stopCtx); err != nil {
		logger.Error("closing client", zap.Error(err))
		os.Exit(1)
	}
}

// announce waits for the session, requests a display name and says hello.
func announce(ctx context.Context, c presencenet.PresenceClient, name string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, ok := c.SelfID(); !ok {
			continue
		}
		c.SetName(name)
		c.Chat("probe online")
		return
	}
}

// wanderLoop circles the spawn point to exercise the movement path.
func wanderLoop(ctx context.Context, c presencenet.PresenceClient) {
	const radius = 5.0
	start := time.Now()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, ok := c.SelfID(); !ok {
			continue
		}
		angle := time.Since(start).Seconds() / 2
		c.MovedTo(presencenet.Vec3{
			X: radius * math.Cos(angle),
			Y: 10,
			Z: 30 + radius*math.Sin(angle),
		}, angle)
	}
}
