package usecase

import (
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/tictactoe"
)

type Phase string

const (
	PhaseAwaitingOpponent Phase = "awaitingOpponent"
	PhaseInProgress       Phase = "inProgress"
	PhaseConcluded        Phase = "concluded"
)

// PhaseOf classifies a session for logging and status reporting only.
// The relay never gates intents on it.
func PhaseOf(session *entity.Session) Phase {
	if tictactoe.Evaluate(session.Board).IsOver() {
		return PhaseConcluded
	}

	if !session.Players.IsFull() {
		return PhaseAwaitingOpponent
	}

	return PhaseInProgress
}
