package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/service"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
)

type mockRelay struct {
	mock.Mock
}

func (that *mockRelay) Running() bool {
	return that.Called().Bool(0)
}

func (that *mockRelay) ActiveGames(ctx context.Context) (int, error) {
	args := that.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockBot struct {
	mock.Mock
}

func (that *mockBot) MakeTurn(board entity.Board, difficulty tictactoe.Difficulty, mark entity.Mark) (int, error) {
	args := that.Called(board, difficulty, mark)
	return args.Int(0), args.Error(1)
}

func newTestServer(relay relayStatus, bot botService) http.Handler {
	return New(slog.New(slog.NewJSONHandler(io.Discard, nil)), relay, bot).Handler()
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(method, target, strings.NewReader(body)))

	return recorder
}

func TestPingHandler(t *testing.T) {
	handler := newTestServer(&mockRelay{}, &mockBot{})

	resp := serve(handler, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "pong", resp.Body.String())
}

func TestStatusHandler(t *testing.T) {
	t.Run("Running relay reports its game count", func(t *testing.T) {
		// Given: a running relay holding three games
		relay := &mockRelay{}
		relay.On("Running").Return(true).Once()
		relay.On("ActiveGames", mock.Anything).Return(3, nil).Once()

		// When: the status is requested
		resp := serve(newTestServer(relay, &mockBot{}), http.MethodGet, "/status", "")

		// Then: it is running with the count
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"status":"running","message":"relay is running","gameCount":3}`, resp.Body.String())
		relay.AssertExpectations(t)
	})

	t.Run("Relay not started yet", func(t *testing.T) {
		relay := &mockRelay{}
		relay.On("Running").Return(false).Once()

		resp := serve(newTestServer(relay, &mockBot{}), http.MethodGet, "/status", "")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"status":"initializing"`)
		assert.NotContains(t, resp.Body.String(), "gameCount")
		relay.AssertNotCalled(t, "ActiveGames", mock.Anything)
	})

	t.Run("Relay stopped between checks", func(t *testing.T) {
		relay := &mockRelay{}
		relay.On("Running").Return(true).Once()
		relay.On("ActiveGames", mock.Anything).Return(0, apperror.ErrRelayStopped).Once()

		resp := serve(newTestServer(relay, &mockBot{}), http.MethodGet, "/status", "")

		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})

	t.Run("Wrong method", func(t *testing.T) {
		resp := serve(newTestServer(&mockRelay{}, &mockBot{}), http.MethodPost, "/status", "")

		assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
	})
}

func TestBotHandler(t *testing.T) {
	t.Run("Returns the picked cell", func(t *testing.T) {
		// Given: a bot that picks cell 2
		bot := &mockBot{}
		board := entity.Board{entity.PlayerX, entity.PlayerX}
		bot.On("MakeTurn", board, tictactoe.Hard, entity.PlayerO).Return(2, nil).Once()

		// When: a move is requested
		body := `{"squares":["X","X",null,null,null,null,null,null,null],"difficulty":"HARD","mark":"O"}`
		resp := serve(newTestServer(&mockRelay{}, bot), http.MethodPost, "/bot/move", body)

		// Then: the cell comes back
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"index":2}`, resp.Body.String())
		bot.AssertExpectations(t)
	})

	t.Run("Finished board yields no move", func(t *testing.T) {
		bot := &mockBot{}
		bot.On("MakeTurn", mock.Anything, tictactoe.Easy, entity.PlayerX).Return(tictactoe.NoMove, service.ErrNoAvailableMoves).Once()

		body := `{"squares":["X","X","X","O","O",null,null,null,null],"difficulty":"unknown","mark":"X"}`
		resp := serve(newTestServer(&mockRelay{}, bot), http.MethodPost, "/bot/move", body)

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"index":-1}`, resp.Body.String())
	})

	t.Run("Service failure", func(t *testing.T) {
		bot := &mockBot{}
		bot.On("MakeTurn", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("boom")).Once()

		body := `{"squares":[null,null,null,null,null,null,null,null,null],"difficulty":"easy","mark":"X"}`
		resp := serve(newTestServer(&mockRelay{}, bot), http.MethodPost, "/bot/move", body)

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `squares`},
		{name: "short board", body: `{"squares":[null,null],"mark":"O"}`},
		{name: "unknown mark in board", body: `{"squares":["Z",null,null,null,null,null,null,null,null],"mark":"O"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &mockBot{}

			resp := serve(newTestServer(&mockRelay{}, bot), http.MethodPost, "/bot/move", tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			bot.AssertNotCalled(t, "MakeTurn", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("Invalid bot mark", func(t *testing.T) {
		handler := newTestServer(&mockRelay{}, service.NewBotService(tictactoe.NewOpponent()))

		body := `{"squares":[null,null,null,null,null,null,null,null,null],"difficulty":"easy","mark":"Z"}`
		resp := serve(handler, http.MethodPost, "/bot/move", body)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Impossible tier takes the win", func(t *testing.T) {
		handler := newTestServer(&mockRelay{}, service.NewBotService(tictactoe.NewOpponent()))

		body := `{"squares":["X","X",null,"O","O",null,null,null,null],"difficulty":"impossible","mark":"X"}`
		resp := serve(handler, http.MethodPost, "/bot/move", body)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"index":2}`, resp.Body.String())
	})
}
