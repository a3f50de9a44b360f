package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository"
	"github.com/rocketscienceinc/tictactoe-relay/internal/usecase"
)

const readTimeout = 2 * time.Second

func startServer(t *testing.T) string {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hub := NewHub(logger)
	relay := usecase.NewRelay(logger, repository.NewMemorySessionRepository(), hub, usecase.Options{
		BaseURL: "http://example.test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()

	srv := httptest.NewServer(New(logger, hub, relay).Handler())
	t.Cleanup(func() {
		hub.closeAll()
		srv.Close()
		cancel()
		<-done
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Action: action, Payload: raw}))
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func receivePayload[T any](t *testing.T, conn *websocket.Conn, action string) T {
	t.Helper()

	msg := receive(t, conn)
	require.Equal(t, action, msg.Action, "payload: %s", msg.Payload)

	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))

	return payload
}

// pair opens two connections seated as X and O in one game.
func pair(t *testing.T, url string) (*websocket.Conn, *websocket.Conn, string) {
	t.Helper()

	a := dial(t, url)
	send(t, a, entity.IntentCreateGame, struct{}{})
	created := receivePayload[entity.GameCreated](t, a, entity.EventGameCreated)

	b := dial(t, url)
	send(t, b, entity.IntentJoinGame, entity.GameRef{GameID: created.GameID})
	receivePayload[entity.GameJoined](t, b, entity.EventGameJoined)
	receivePayload[entity.GameState](t, a, entity.EventOpponentJoined)

	return a, b, created.GameID
}

func TestServer_Session(t *testing.T) {
	t.Run("Create and join over the wire", func(t *testing.T) {
		// Given: a running server
		url := startServer(t)
		a := dial(t, url)

		// When: one client creates and another joins
		send(t, a, entity.IntentCreateGame, struct{}{})
		created := receivePayload[entity.GameCreated](t, a, entity.EventGameCreated)

		b := dial(t, url)
		send(t, b, entity.IntentJoinGame, entity.GameRef{GameID: created.GameID})

		// Then: both see the same seated game
		assert.Equal(t, entity.PlayerX, created.Role)
		assert.Equal(t, "http://example.test/play/"+created.GameID, created.ShareURL)

		joined := receivePayload[entity.GameJoined](t, b, entity.EventGameJoined)
		assert.Equal(t, entity.PlayerO, joined.Role)
		assert.Equal(t, created.GameID, joined.ID)

		opponent := receivePayload[entity.GameState](t, a, entity.EventOpponentJoined)
		assert.Equal(t, joined.GameState, opponent)
		assert.Equal(t, entity.PlayerX, opponent.CurrentTurn)
	})

	t.Run("Moves reach both clients", func(t *testing.T) {
		url := startServer(t)
		a, b, gameID := pair(t, url)

		index := 4
		send(t, a, entity.IntentMakeMove, entity.MovePayload{GameID: gameID, Index: &index})

		for _, conn := range []*websocket.Conn{a, b} {
			state := receivePayload[entity.GameState](t, conn, entity.EventGameUpdated)
			assert.Equal(t, entity.PlayerX, state.Squares[4])
			assert.Equal(t, entity.PlayerO, state.CurrentTurn)
		}
	})

	t.Run("Rejected move is reported to the sender only", func(t *testing.T) {
		url := startServer(t)
		a, b, gameID := pair(t, url)

		index := 0
		send(t, b, entity.IntentMakeMove, entity.MovePayload{GameID: gameID, Index: &index})

		rejected := receivePayload[entity.ErrorPayload](t, b, entity.EventError)
		assert.Equal(t, "not your turn", rejected.Message)

		send(t, a, entity.IntentMakeMove, entity.MovePayload{GameID: gameID, Index: &index})
		updated := receivePayload[entity.GameState](t, a, entity.EventGameUpdated)
		assert.Equal(t, entity.PlayerX, updated.Squares[0])
	})

	t.Run("Closed connection frees its seat", func(t *testing.T) {
		url := startServer(t)
		a, b, _ := pair(t, url)

		require.NoError(t, b.Close())

		left := receivePayload[entity.PlayerDisconnected](t, a, entity.EventPlayerDisconnected)
		assert.Equal(t, entity.PlayerO, left.Player)
	})

	t.Run("Leave notifies the opponent", func(t *testing.T) {
		url := startServer(t)
		a, b, gameID := pair(t, url)

		send(t, b, entity.IntentLeaveGame, entity.GameRef{GameID: gameID})

		left := receivePayload[entity.PlayerLeft](t, a, entity.EventPlayerLeft)
		assert.Equal(t, entity.PlayerO, left.Player)
		assert.Equal(t, gameID, left.GameID)
	})
}

func TestServer_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{
			name:    "unknown action",
			raw:     `{"action":"dance","payload":{}}`,
			message: "unknown action",
		},
		{
			name:    "not json",
			raw:     `not json`,
			message: "malformed payload",
		},
		{
			name:    "move without index",
			raw:     `{"action":"makeMove","payload":{"gameId":"g"}}`,
			message: "malformed payload",
		},
		{
			name:    "join without payload",
			raw:     `{"action":"joinGame"}`,
			message: "malformed payload",
		},
		{
			name:    "join unknown game",
			raw:     `{"action":"joinGame","payload":{"gameId":"missing"}}`,
			message: "game not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := startServer(t)
			conn := dial(t, url)

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			rejected := receivePayload[entity.ErrorPayload](t, conn, entity.EventError)
			assert.Equal(t, tt.message, rejected.Message)
		})
	}
}

func TestHub_Emit(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	t.Run("Unknown connection is ignored", func(t *testing.T) {
		hub := NewHub(logger)

		assert.NotPanics(t, func() {
			hub.Emit("ghost", entity.Event{Name: entity.EventError, Payload: entity.ErrorPayload{Message: "x"}})
		})
	})

	t.Run("Full queue drops instead of blocking", func(t *testing.T) {
		hub := NewHub(logger)
		c := &client{id: "c", send: make(chan []byte, 1)}
		hub.register(c)

		event := entity.Event{Name: entity.EventPlayerDisconnected, Payload: entity.PlayerDisconnected{Player: entity.PlayerX}}
		hub.Emit("c", event)
		hub.Emit("c", event)

		require.Len(t, c.send, 1)
		assert.JSONEq(t, `{"action":"playerDisconnected","payload":{"player":"X"}}`, string(<-c.send))
		assert.Equal(t, 1, hub.Count())
	})

	t.Run("Unregister closes the queue once", func(t *testing.T) {
		hub := NewHub(logger)
		c := &client{id: "c", send: make(chan []byte, 1)}
		hub.register(c)

		hub.unregister(c)
		hub.unregister(c)

		_, open := <-c.send
		assert.False(t, open)
		assert.Zero(t, hub.Count())
	})
}
