package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger

	ping   PingHandler
	status StatusHandler
	bot    BotHandler
}

func New(logger *slog.Logger, relay relayStatus, bot botService) *Server {
	logger = logger.With("component", "rest")

	return &Server{
		logger: logger,
		ping:   NewPingHandler(),
		status: NewStatusHandler(logger, relay),
		bot:    NewBotHandler(logger, bot),
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", that.ping.PingHandler)
	mux.HandleFunc("GET /status", that.status.StatusHandler)
	mux.HandleFunc("POST /bot/move", that.bot.MoveHandler)

	return mux
}

// Start serves the REST API until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down rest server", "error", err)
		}
	}()

	log.Info("rest server started", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
