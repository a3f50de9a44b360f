package tictactoe

import (
	"math"
	"strings"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/samber/lo"
	"lukechampine.com/frand"
)

// NoMove is returned when the board has no empty cell.
const NoMove = -1

type Difficulty string

const (
	Easy       Difficulty = "easy"
	Medium     Difficulty = "medium"
	Hard       Difficulty = "hard"
	Impossible Difficulty = "impossible"
)

const (
	winScore = 10

	mediumSmartChance = 0.5
	hardSmartChance   = 0.8
)

// openingMoves are equally optimal on an empty board.
var openingMoves = []int{0, 2, 4, 6, 8}

// ParseDifficulty is case-insensitive. Unknown tiers fall back to Easy.
func ParseDifficulty(raw string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case Easy, Medium, Hard, Impossible:
		return d
	default:
		return Easy
	}
}

type randSource interface {
	Intn(n int) int
	Float64() float64
}

type frandSource struct{}

func (frandSource) Intn(n int) int   { return frand.Intn(n) }
func (frandSource) Float64() float64 { return frand.Float64() }

// Opponent picks moves for the computer player.
type Opponent struct {
	rnd randSource
}

func NewOpponent() *Opponent {
	return &Opponent{rnd: frandSource{}}
}

// NewOpponentWithSource lets callers pin the randomness, e.g. a seeded frand.RNG.
func NewOpponentWithSource(rnd randSource) *Opponent {
	return &Opponent{rnd: rnd}
}

// SelectMove returns the cell the engine plays as mark, or NoMove on a full board.
// The board is passed by value and never modified.
func (that *Opponent) SelectMove(board entity.Board, difficulty Difficulty, mark entity.Mark) int {
	available := board.EmptyCells()
	if len(available) == 0 {
		return NoMove
	}

	switch difficulty {
	case Medium:
		return that.heuristicMove(board, available, mark, mediumSmartChance)
	case Hard:
		return that.heuristicMove(board, available, mark, hardSmartChance)
	case Impossible:
		return that.bestMove(board, available, mark)
	default:
		return that.randomMove(available)
	}
}

func (that *Opponent) randomMove(cells []int) int {
	return cells[that.rnd.Intn(len(cells))]
}

func (that *Opponent) heuristicMove(board entity.Board, available []int, mark entity.Mark, chance float64) int {
	if that.rnd.Float64() < chance {
		if move, ok := that.smartMove(board, available, mark); ok {
			return move
		}
	}

	return that.randomMove(available)
}

// smartMove tries, in order: win, block, center, a random corner.
func (that *Opponent) smartMove(board entity.Board, available []int, mark entity.Mark) (int, bool) {
	if move, ok := findCompletingMove(board, mark); ok {
		return move, true
	}

	if move, ok := findCompletingMove(board, mark.Opponent()); ok {
		return move, true
	}

	if board[entity.Center] == entity.Empty {
		return entity.Center, true
	}

	corners := lo.Filter(entity.Corners, func(cell int, _ int) bool {
		return lo.Contains(available, cell)
	})
	if len(corners) > 0 {
		return that.randomMove(corners), true
	}

	return NoMove, false
}

// findCompletingMove returns the empty cell of the first line holding two of mark.
func findCompletingMove(board entity.Board, mark entity.Mark) (int, bool) {
	for _, line := range entity.Lines {
		owned := lo.CountBy(line[:], func(cell int) bool {
			return board[cell] == mark
		})
		if owned != 2 {
			continue
		}

		if cell, found := lo.Find(line[:], func(cell int) bool {
			return board[cell] == entity.Empty
		}); found {
			return cell, true
		}
	}

	return NoMove, false
}

func (that *Opponent) bestMove(board entity.Board, available []int, mark entity.Mark) int {
	if len(available) == 1 {
		return available[0]
	}

	if len(available) == entity.BoardSize {
		return that.randomMove(openingMoves)
	}

	bestScore := math.MinInt
	bestMove := NoMove

	for _, cell := range available {
		board[cell] = mark
		score := minimax(&board, 0, false, mark, math.MinInt, math.MaxInt)
		board[cell] = entity.Empty

		if score > bestScore {
			bestScore = score
			bestMove = cell
		}
	}

	return bestMove
}

// minimax scores the position for mark; faster wins and slower losses score higher.
func minimax(board *entity.Board, depth int, maximizing bool, mark entity.Mark, alpha, beta int) int {
	outcome := Evaluate(*board)
	switch {
	case outcome.Winner == mark:
		return winScore - depth
	case outcome.Winner == mark.Opponent():
		return depth - winScore
	case outcome.IsDraw:
		return 0
	}

	if maximizing {
		best := math.MinInt
		for cell := range board {
			if board[cell] != entity.Empty {
				continue
			}

			board[cell] = mark
			best = max(best, minimax(board, depth+1, false, mark, alpha, beta))
			board[cell] = entity.Empty

			alpha = max(alpha, best)
			if beta <= alpha {
				break
			}
		}

		return best
	}

	best := math.MaxInt
	for cell := range board {
		if board[cell] != entity.Empty {
			continue
		}

		board[cell] = mark.Opponent()
		best = min(best, minimax(board, depth+1, true, mark, alpha, beta))
		board[cell] = entity.Empty

		beta = min(beta, best)
		if beta <= alpha {
			break
		}
	}

	return best
}
