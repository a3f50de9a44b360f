package client

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

// decodeEvent turns an envelope into an event with a typed payload.
func decodeEvent(msg message) (entity.Event, error) {
	switch msg.Action {
	case entity.EventGameCreated:
		return decodeAs[entity.GameCreated](msg)
	case entity.EventGameJoined:
		return decodeAs[entity.GameJoined](msg)
	case entity.EventOpponentJoined, entity.EventGameUpdated:
		return decodeAs[entity.GameState](msg)
	case entity.EventGameRestarted:
		return decodeAs[entity.GameRestarted](msg)
	case entity.EventPlayerDisconnected:
		return decodeAs[entity.PlayerDisconnected](msg)
	case entity.EventPlayerLeft:
		return decodeAs[entity.PlayerLeft](msg)
	case entity.EventError:
		return decodeAs[entity.ErrorPayload](msg)
	default:
		return entity.Event{}, fmt.Errorf("unknown event %q", msg.Action)
	}
}

func decodeAs[T any](msg message) (entity.Event, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return entity.Event{}, fmt.Errorf("failed to unmarshal %s: %w", msg.Action, err)
	}

	return entity.Event{Name: msg.Action, Payload: payload}, nil
}
