package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/pkg"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096

	disconnectTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type relay interface {
	Create(ctx context.Context, connID string) error
	Join(ctx context.Context, connID, gameID string) error
	Move(ctx context.Context, connID, gameID string, cell int) error
	Restart(ctx context.Context, connID, gameID string) error
	Leave(ctx context.Context, connID, gameID string) error
	Disconnect(ctx context.Context, connID string) error
}

type handler func(ctx context.Context, connID string, msg *Message) error

type Server struct {
	logger   *slog.Logger
	hub      *Hub
	relay    relay
	upgrader websocket.Upgrader

	handlers map[string]handler
}

func New(logger *slog.Logger, hub *Hub, relay relay) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		hub:    hub,
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]handler),
	}

	server.handlers[entity.IntentCreateGame] = server.handleCreateGame
	server.handlers[entity.IntentJoinGame] = server.handleJoinGame
	server.handlers[entity.IntentMakeMove] = server.handleMakeMove
	server.handlers[entity.IntentRestartGame] = server.handleRestartGame
	server.handlers[entity.IntentLeaveGame] = server.handleLeaveGame

	return server
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.ServeWS)

	return mux
}

// Start serves websocket connections until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	log := that.logger.With("method", "Start")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down websocket server", "error", err)
		}

		that.hub.closeAll()
	}()

	log.Info("websocket server started", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS upgrades the request and serves the connection until it closes.
func (that *Server) ServeWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		id:   pkg.GenerateConnectionID(),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}

	that.hub.register(c)

	log.Info("websocket connection established", "connID", c.id)

	go that.writePump(c)
	that.readPump(req.Context(), c)
}

// readPump dispatches inbound messages until the connection fails, then
// reports the disconnect to the relay.
func (that *Server) readPump(ctx context.Context, c *client) {
	log := that.logger.With("method", "readPump", "connID", c.id)

	defer func() {
		that.hub.unregister(c)
		_ = c.conn.Close()

		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()

		if err := that.relay.Disconnect(disconnectCtx, c.id); err != nil {
			log.Error("failed to release seats", "error", err)
		}

		log.Info("websocket connection closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			that.reject(c.id, apperror.ErrBadPayload)
			continue
		}

		that.dispatch(ctx, c.id, &message)
	}
}

func (that *Server) dispatch(ctx context.Context, connID string, msg *Message) {
	log := that.logger.With("method", "dispatch", "connID", connID, "action", msg.Action)

	handle, ok := that.handlers[msg.Action]
	if !ok {
		log.Debug("unknown action")
		that.reject(connID, apperror.ErrUnknownAction)
		return
	}

	err := handle(ctx, connID, msg)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrBadPayload), errors.Is(err, apperror.ErrRelayStopped):
		log.Debug("intent not delivered", "error", err)
		that.reject(connID, err)
	default:
		// the relay already reported it to the connection
		log.Debug("intent rejected", "error", err)
	}
}

func (that *Server) reject(connID string, err error) {
	that.hub.Emit(connID, entity.Event{
		Name:    entity.EventError,
		Payload: entity.ErrorPayload{Message: apperror.PublicMessage(err)},
	})
}

func (that *Server) writePump(c *client) {
	log := that.logger.With("method", "writePump", "connID", c.id)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}
