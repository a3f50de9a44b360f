package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-relay/internal/config"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-relay/internal/service"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-relay/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-relay/transport/rest"
	"github.com/rocketscienceinc/tictactoe-relay/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until SIGINT or SIGTERM.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-sigCtx.Done()
		log.Info("Received signal, shutting down")
	}()

	repo, closeRepo, err := newSessionRepository(sigCtx, log, conf)
	if err != nil {
		return err
	}
	defer closeRepo()

	hub := websocket.NewHub(logger)
	relay := usecase.NewRelay(logger, repo, hub, usecase.Options{
		BaseURL:       conf.BaseURL,
		Retention:     conf.Relay.Retention,
		SweepInterval: conf.Relay.SweepInterval,
	})
	botService := service.NewBotService(tictactoe.NewOpponent())

	restServer := rest.New(logger, relay, botService)
	wsServer := websocket.New(logger, hub, relay)

	group, ctx := errgroup.WithContext(sigCtx)

	group.Go(func() error {
		if err := relay.Run(ctx); err != nil {
			return fmt.Errorf("relay error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := restServer.Start(ctx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if err := wsServer.Start(ctx, conf.SocketPort); err != nil {
			return fmt.Errorf("WebSocket server error: %w", err)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application stopped")

	return nil
}

// newSessionRepository picks the session store named by the config.
func newSessionRepository(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.SessionRepository, func(), error) {
	if conf.Storage.Driver != config.StorageRedis {
		log.Info("Using in-memory session storage")
		return repository.NewMemorySessionRepository(), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	log.Info("Using redis session storage", "addr", redisAddrString)

	closeRepo := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewSessionRepository(redisStorage.Connection), closeRepo, nil
}
