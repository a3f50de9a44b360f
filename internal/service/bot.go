package service

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
)

var (
	ErrNoAvailableMoves = errors.New("no available moves")
	ErrInvalidBotMark   = errors.New("bot mark must be X or O")
)

type BotService interface {
	MakeTurn(board entity.Board, difficulty tictactoe.Difficulty, mark entity.Mark) (int, error)
}

type opponent interface {
	SelectMove(board entity.Board, difficulty tictactoe.Difficulty, mark entity.Mark) int
}

type botService struct {
	opponent opponent
}

func NewBotService(opponent opponent) BotService {
	return &botService{
		opponent: opponent,
	}
}

// MakeTurn picks the bot's cell without touching the board.
func (that *botService) MakeTurn(board entity.Board, difficulty tictactoe.Difficulty, mark entity.Mark) (int, error) {
	if !mark.IsPlayer() {
		return tictactoe.NoMove, fmt.Errorf("%w: %q", ErrInvalidBotMark, mark)
	}

	if tictactoe.Evaluate(board).IsOver() {
		return tictactoe.NoMove, ErrNoAvailableMoves
	}

	cell := that.opponent.SelectMove(board, difficulty, mark)
	if cell == tictactoe.NoMove {
		return tictactoe.NoMove, ErrNoAvailableMoves
	}

	return cell, nil
}
