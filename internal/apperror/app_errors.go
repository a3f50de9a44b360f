package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("game not found")
	ErrForbidden   = errors.New("you are not a player in this game")
	ErrInvalidTurn = errors.New("not your turn")
	ErrInvalidMove = errors.New("invalid move")
	ErrFull        = errors.New("game is full")

	ErrCellOutOfRange = fmt.Errorf("%w: cell out of range", ErrInvalidMove)
	ErrCellOccupied   = fmt.Errorf("%w: square already filled", ErrInvalidMove)

	ErrConnectionFailure = errors.New("connection failure")
	ErrRelayStopped      = errors.New("relay is not running")
	ErrUnknownAction     = errors.New("unknown action")
	ErrBadPayload        = errors.New("malformed payload")
)

const internalMessage = "internal error"

// public is ordered most specific first.
var public = []error{
	ErrCellOutOfRange,
	ErrCellOccupied,
	ErrNotFound,
	ErrForbidden,
	ErrInvalidTurn,
	ErrInvalidMove,
	ErrFull,
	ErrRelayStopped,
	ErrUnknownAction,
	ErrBadPayload,
}

// PublicMessage returns the text reported to a client for err.
func PublicMessage(err error) string {
	for _, known := range public {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return internalMessage
}
