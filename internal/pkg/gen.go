package pkg

import "github.com/google/uuid"

// GenerateGameID - generates an opaque, shareable game identifier.
func GenerateGameID() string {
	return uuid.NewString()
}

// GenerateConnectionID - identifies one websocket connection for its lifetime.
func GenerateConnectionID() string {
	return uuid.NewString()
}
