package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
)

const (
	DefaultAttempts = 10
	DefaultDelay    = time.Second

	eventQueueSize = 64
	writeWait      = 10 * time.Second
)

var (
	ErrNoGame   = errors.New("not in a game")
	ErrGameOver = errors.New("game is over")
	ErrClosed   = errors.New("client is closed")
)

type Options struct {
	// Attempts bounds each connect or reconnect cycle.
	Attempts uint
	Delay    time.Duration
	Dialer   *websocket.Dialer
}

// Snapshot is the client's cached view of its game.
type Snapshot struct {
	GameID string
	Role   entity.Mark
	State  *entity.GameState
}

type message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client talks to the relay over one websocket and keeps a local projection
// of the game it plays. It reconnects on connection loss and rejoins.
type Client struct {
	logger *slog.Logger
	url    string
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.RWMutex
	snapshot Snapshot
	err      error

	events chan entity.Event
	done   chan struct{}
}

// Dial connects to url, retrying per opts, and starts reading events.
func Dial(ctx context.Context, logger *slog.Logger, url string, opts Options) (*Client, error) {
	if opts.Attempts == 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	clientCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	that := &Client{
		logger: logger.With("component", "client", "url", url),
		url:    url,
		opts:   opts,
		ctx:    clientCtx,
		cancel: cancel,
		events: make(chan entity.Event, eventQueueSize),
		done:   make(chan struct{}),
	}

	conn, err := that.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	that.conn = conn

	go that.readLoop(conn)

	return that, nil
}

// Events delivers every decoded relay event. It is closed when the client
// closes or gives up reconnecting.
func (that *Client) Events() <-chan entity.Event {
	return that.events
}

func (that *Client) Snapshot() Snapshot {
	that.mu.RLock()
	defer that.mu.RUnlock()

	snapshot := that.snapshot
	if snapshot.State != nil {
		state := *snapshot.State
		snapshot.State = &state
	}

	return snapshot
}

// Err reports why the event stream ended, or nil while it is open.
func (that *Client) Err() error {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.err
}

func (that *Client) Create() error {
	return that.send(entity.IntentCreateGame, struct{}{})
}

func (that *Client) Join(gameID string) error {
	return that.send(entity.IntentJoinGame, entity.GameRef{GameID: gameID})
}

// Move sends a placement unless the cached state already rules it out.
func (that *Client) Move(index int) error {
	that.mu.RLock()
	snapshot := that.snapshot
	that.mu.RUnlock()

	if snapshot.GameID == "" || snapshot.State == nil {
		return ErrNoGame
	}

	if tictactoe.Evaluate(snapshot.State.Squares).IsOver() {
		return ErrGameOver
	}

	if snapshot.State.CurrentTurn != snapshot.Role {
		return apperror.ErrInvalidTurn
	}

	return that.send(entity.IntentMakeMove, entity.MovePayload{GameID: snapshot.GameID, Index: &index})
}

func (that *Client) Restart() error {
	gameID, err := that.currentGame()
	if err != nil {
		return err
	}

	return that.send(entity.IntentRestartGame, entity.GameRef{GameID: gameID})
}

func (that *Client) Leave() error {
	gameID, err := that.currentGame()
	if err != nil {
		return err
	}

	return that.send(entity.IntentLeaveGame, entity.GameRef{GameID: gameID})
}

// Close stops reconnecting and closes the connection.
func (that *Client) Close() error {
	that.cancel()

	that.writeMu.Lock()
	err := that.conn.Close()
	that.writeMu.Unlock()

	<-that.done

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	return nil
}

func (that *Client) currentGame() (string, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.snapshot.GameID == "" {
		return "", ErrNoGame
	}

	return that.snapshot.GameID, nil
}

func (that *Client) send(action string, payload any) error {
	if that.ctx.Err() != nil {
		return ErrClosed
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = that.conn.WriteJSON(message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("%w: failed to send %s: %w", apperror.ErrConnectionFailure, action, err)
	}

	return nil
}

func (that *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	log := that.logger.With("method", "connect")

	var conn *websocket.Conn

	err := retry.Do(
		func() error {
			var err error
			conn, _, err = that.opts.Dialer.DialContext(ctx, that.url, nil)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(that.opts.Attempts),
		retry.Delay(that.opts.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("connection attempt failed", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectionFailure, err)
	}

	return conn, nil
}

// readLoop applies events to the snapshot and forwards them until the
// client closes or reconnecting fails.
func (that *Client) readLoop(conn *websocket.Conn) {
	log := that.logger.With("method", "readLoop")

	defer close(that.done)
	defer close(that.events)

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if that.ctx.Err() != nil {
				that.fail(ErrClosed)
				return
			}

			log.Warn("connection lost", "error", err)

			if conn, err = that.reconnect(); err != nil {
				log.Error("failed to reconnect", "error", err)
				that.fail(err)
				return
			}

			continue
		}

		event, err := decodeEvent(msg)
		if err != nil {
			log.Warn("failed to decode event", "error", err)
			continue
		}

		that.apply(event)

		select {
		case that.events <- event:
		default:
			log.Warn("event queue is full, event dropped", "event", event.Name)
		}
	}
}

// reconnect waits one delay, dials again and rejoins the cached game.
func (that *Client) reconnect() (*websocket.Conn, error) {
	select {
	case <-that.ctx.Done():
		return nil, ErrClosed
	case <-time.After(that.opts.Delay):
	}

	conn, err := that.connect(that.ctx)
	if err != nil {
		return nil, err
	}

	that.writeMu.Lock()
	if that.ctx.Err() != nil {
		that.writeMu.Unlock()
		_ = conn.Close()
		return nil, ErrClosed
	}
	old := that.conn
	that.conn = conn
	that.writeMu.Unlock()
	_ = old.Close()

	gameID, err := that.currentGame()
	if errors.Is(err, ErrNoGame) {
		return conn, nil
	}

	if err = that.Join(gameID); err != nil {
		return nil, err
	}

	that.logger.Info("reconnected", "gameID", gameID)

	return conn, nil
}

func (that *Client) fail(err error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.err = err
}

// apply folds one event into the snapshot.
func (that *Client) apply(event entity.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch payload := event.Payload.(type) {
	case entity.GameCreated:
		that.snapshot = Snapshot{
			GameID: payload.GameID,
			Role:   payload.Role,
			State: &entity.GameState{
				ID:          payload.GameID,
				CurrentTurn: entity.PlayerX,
			},
		}
	case entity.GameJoined:
		state := payload.GameState
		that.snapshot = Snapshot{GameID: state.ID, Role: payload.Role, State: &state}
	case entity.GameRestarted:
		that.setState(payload.GameState)
	case entity.GameState:
		that.setState(payload)
	case entity.PlayerDisconnected:
		if that.snapshot.State != nil {
			that.snapshot.State.Players.Set(payload.Player, "")
		}
	case entity.PlayerLeft:
		if payload.GameID != that.snapshot.GameID {
			return
		}
		if payload.Player == that.snapshot.Role {
			that.snapshot = Snapshot{}
			return
		}
		if that.snapshot.State != nil {
			that.snapshot.State.Players.Set(payload.Player, "")
		}
	}
}

func (that *Client) setState(state entity.GameState) {
	if state.ID != that.snapshot.GameID {
		return
	}

	that.snapshot.State = &state
}
