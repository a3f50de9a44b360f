package entity

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
)

// Mark is the symbol a seat places on the board.
type Mark string

const (
	Empty   Mark = ""
	PlayerX Mark = "X"
	PlayerO Mark = "O"
)

const (
	BoardSize = 9
	Center    = 4
)

// Corners lists the corner cells in row-major order.
var Corners = []int{0, 2, 6, 8}

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return Empty
	}
}

func (that Mark) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

// MarshalJSON encodes an empty cell as null.
func (that Mark) MarshalJSON() ([]byte, error) {
	if that == Empty {
		return []byte("null"), nil
	}

	return json.Marshal(string(that))
}

func (that *Mark) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*that = Empty
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal mark: %w", err)
	}

	*that = Mark(raw)

	return nil
}

// Board is a 3x3 grid stored row-major.
type Board [BoardSize]Mark

func (that Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == Empty {
			cells = append(cells, i)
		}
	}

	return cells
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == Empty {
			return false
		}
	}

	return true
}

func (that Board) IsEmpty() bool {
	for _, cell := range that {
		if cell != Empty {
			return false
		}
	}

	return true
}

// Line is a triple of cell indexes that wins when filled by one mark.
type Line [3]int

// Lines holds rows, then columns, then diagonals.
var Lines = [8]Line{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Players maps each seat to the connection occupying it. An empty string is a vacant seat.
type Players struct {
	X string
	O string
}

func (that Players) Get(mark Mark) string {
	switch mark {
	case PlayerX:
		return that.X
	case PlayerO:
		return that.O
	default:
		return ""
	}
}

func (that *Players) Set(mark Mark, connID string) {
	switch mark {
	case PlayerX:
		that.X = connID
	case PlayerO:
		that.O = connID
	}
}

// SeatOf reports which seat the connection holds.
func (that Players) SeatOf(connID string) (Mark, bool) {
	switch {
	case connID == "":
		return Empty, false
	case that.X == connID:
		return PlayerX, true
	case that.O == connID:
		return PlayerO, true
	default:
		return Empty, false
	}
}

// VacantSeat returns the first free seat, X before O.
func (that Players) VacantSeat() (Mark, bool) {
	switch {
	case that.X == "":
		return PlayerX, true
	case that.O == "":
		return PlayerO, true
	default:
		return Empty, false
	}
}

func (that Players) IsFull() bool {
	return that.X != "" && that.O != ""
}

// Connections returns the occupied seats' connections, X first.
func (that Players) Connections() []string {
	conns := make([]string, 0, 2)
	if that.X != "" {
		conns = append(conns, that.X)
	}
	if that.O != "" {
		conns = append(conns, that.O)
	}

	return conns
}

type playersJSON struct {
	X *string `json:"X"`
	O *string `json:"O"`
}

func (that Players) MarshalJSON() ([]byte, error) {
	var out playersJSON
	if that.X != "" {
		x := that.X
		out.X = &x
	}
	if that.O != "" {
		o := that.O
		out.O = &o
	}

	return json.Marshal(out)
}

func (that *Players) UnmarshalJSON(data []byte) error {
	var in playersJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to unmarshal players: %w", err)
	}

	*that = Players{}
	if in.X != nil {
		that.X = *in.X
	}
	if in.O != nil {
		that.O = *in.O
	}

	return nil
}

// Session is the authoritative state of one relayed game.
type Session struct {
	ID               string        `json:"id"`
	Board            Board         `json:"squares"`
	Players          Players       `json:"players"`
	Turn             Mark          `json:"currentTurn"`
	CreatedAt        time.Time     `json:"createdAt"`
	LastUpdated      time.Time     `json:"lastUpdated"`
	RestartRequested map[Mark]bool `json:"restartRequested,omitempty"`
}

// NewSession seats the creator as X, who always moves first.
func NewSession(id, creatorConnID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Players:   Players{X: creatorConnID},
		Turn:      PlayerX,
		CreatedAt: now,
	}
}

// MakeTurn places mark on cell. The session is unchanged when an error is returned.
func (that *Session) MakeTurn(mark Mark, cell int, now time.Time) error {
	if that.Turn != mark {
		return apperror.ErrInvalidTurn
	}

	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOutOfRange, cell)
	}

	if that.Board[cell] != Empty {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	that.Board[cell] = mark
	that.Turn = mark.Opponent()
	that.LastUpdated = now

	return nil
}

// Restart clears the board and hands the first move back to X.
func (that *Session) Restart(now time.Time) {
	that.Board = Board{}
	that.Turn = PlayerX
	that.LastUpdated = now
	that.RestartRequested = nil
}

// IsExpired reports whether the session outlived the retention window.
func (that *Session) IsExpired(now time.Time, retention time.Duration) bool {
	return now.Sub(that.CreatedAt) > retention
}

func (that *Session) State() GameState {
	state := GameState{
		ID:          that.ID,
		Squares:     that.Board,
		Players:     that.Players,
		CurrentTurn: that.Turn,
		CreatedAt:   that.CreatedAt.UnixMilli(),
	}

	if !that.LastUpdated.IsZero() {
		state.LastUpdated = that.LastUpdated.UnixMilli()
	}

	return state
}

// Clone returns a deep copy.
func (that *Session) Clone() *Session {
	clone := *that
	clone.RestartRequested = maps.Clone(that.RestartRequested)

	return &clone
}
