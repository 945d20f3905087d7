// Package main provides the card table relay server. It serves the
// lobby assets over HTTP and relays game traffic between the clients
// of each room over websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cardparty/relay/internal/config"
	"github.com/cardparty/relay/internal/frontend/web"
	"github.com/cardparty/relay/internal/frontend/ws"
	"github.com/cardparty/relay/internal/game/participant"
	"github.com/cardparty/relay/internal/game/room"
	"github.com/cardparty/relay/internal/observability"
	"github.com/cardparty/relay/internal/relay"
	"github.com/cardparty/relay/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	// Local .env overrides are optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting relay server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("static_dir", cfg.Server.StaticDir),
	)

	// Build services
	registry := participant.NewRegistry(cfg.Room.StartingBalance, logger)
	store := room.NewStore(cfg.Room, logger)
	fanout := relay.NewBroadcaster(registry, logger)
	dispatcher := relay.NewDispatcher(store, registry, fanout, logger)
	acceptor := ws.NewAcceptor(cfg.WebSocket, registry, dispatcher, logger)
	router := web.NewRouter(cfg.Server.StaticDir, acceptor, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	// Wire the runner. The connections service registers last so it
	// stops first: live websockets close and run their disconnect
	// cleanup before the HTTP server finishes draining handlers.
	runner := server.NewRunner(logger)

	runner.Register("http", &server.FuncService{
		StartFn: func() error {
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	drained := make(chan struct{})
	runner.Register("connections", &server.FuncService{
		StartFn: func() error {
			<-drained
			return nil
		},
		StopFn: func() {
			registry.CloseAll()
			close(drained)
		},
	})

	logger.Info("relay initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("seats", cfg.Room.Seats),
		zap.Int("capacity", cfg.Room.Capacity),
	)

	if err := runner.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
