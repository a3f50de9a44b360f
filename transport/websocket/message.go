package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

// Message is the envelope for both directions: an intent name or an event name
// in Action, with its JSON payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeEvent(event entity.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event.Name, err)
	}

	message, err := json.Marshal(Message{Action: event.Name, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return message, nil
}

// decodePayload unmarshals a message payload into dst.
func decodePayload(msg *Message, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Action)
	}

	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", msg.Action, err)
	}

	return nil
}
