package tictactoe

import "github.com/rocketscienceinc/tictactoe-relay/internal/entity"

// Outcome is the result of evaluating a board.
type Outcome struct {
	Winner entity.Mark
	Line   *entity.Line
	IsDraw bool
}

// IsOver reports whether the game has a winner or ended in a draw.
func (that Outcome) IsOver() bool {
	return that.Winner != entity.Empty || that.IsDraw
}

// Evaluate scans the fixed lines in order and returns the first complete one.
func Evaluate(board entity.Board) Outcome {
	for _, line := range entity.Lines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != entity.Empty && a == b && b == c {
			winning := line
			return Outcome{Winner: a, Line: &winning}
		}
	}

	// the game continues while any square is free
	return Outcome{IsDraw: board.IsFull()}
}
