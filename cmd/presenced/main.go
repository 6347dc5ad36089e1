// Package main provides the presence relay daemon.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voxelab/presencenet"
	"github.com/voxelab/presencenet/internal/config"
	"github.com/voxelab/presencenet/internal/logging"
	"github.com/voxelab/presencenet/ws"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and PRESENCE_* env vars")
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

	var checkOrigin ws.CheckOriginFn
	if cfg.Server.AllowAnyOrigin {
		checkOrigin = ws.AllOrigins()
	} else {
		checkOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == ""
		}
	}

	rateLimit := &ws.RateLimitConfig{
		Enabled:           cfg.RateLimit.Enabled,
		MessagesPerSecond: rate.Limit(cfg.RateLimit.MessagesPerSecond),
		Burst:             cfg.RateLimit.Burst,
	}

	srv := ws.New(ws.NewConfig(
		cfg.Server.Addr(),
		rateLimit,
		checkOrigin,
		func(s presencenet.Session) {
			logger.Debug("session open",
				zap.String("player_id", s.PlayerID()),
				zap.String("remote_addr", s.RemoteAddr()))
		},
		nil,
	), logger)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("starting relay", zap.Error(err))
	}
	logger.Info("relay started", zap.String("addr", cfg.Server.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	srv.SendSystemChat(stopCtx, "Server is shutting down")
	if err := srv.Stop(stopCtx); err != nil {
		logger.Error("stopping relay", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("relay stopped")
}
