package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/lo"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/service"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
)

const maxBodySize = 1024

type botService interface {
	MakeTurn(board entity.Board, difficulty tictactoe.Difficulty, mark entity.Mark) (int, error)
}

type BotHandler interface {
	MoveHandler(w http.ResponseWriter, r *http.Request)
}

type botMoveRequest struct {
	Squares    []entity.Mark `json:"squares"`
	Difficulty string        `json:"difficulty"`
	Mark       entity.Mark   `json:"mark"`
}

type botMoveResponse struct {
	Index int `json:"index"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type botHandler struct {
	logger *slog.Logger
	bot    botService
}

func NewBotHandler(logger *slog.Logger, bot botService) BotHandler {
	return &botHandler{
		logger: logger,
		bot:    bot,
	}
}

// MoveHandler picks the computer's cell for the posted board.
func (that *botHandler) MoveHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "MoveHandler")

	var req botMoveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if len(req.Squares) != entity.BoardSize {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "squares must hold 9 cells"})
		return
	}

	if !lo.EveryBy(req.Squares, func(m entity.Mark) bool { return m == entity.Empty || m.IsPlayer() }) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "squares may hold only X, O or null"})
		return
	}

	var board entity.Board
	copy(board[:], req.Squares)

	difficulty := tictactoe.ParseDifficulty(req.Difficulty)

	index, err := that.bot.MakeTurn(board, difficulty, req.Mark)
	switch {
	case errors.Is(err, service.ErrInvalidBotMark):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, service.ErrNoAvailableMoves):
		index = tictactoe.NoMove
	case err != nil:
		log.Error("failed to pick bot move", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	log.Debug("bot move picked", "difficulty", difficulty, "mark", req.Mark, "index", index)

	writeJSON(w, http.StatusOK, botMoveResponse{Index: index})
}
