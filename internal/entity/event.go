package entity

// Intents sent by clients.
const (
	IntentCreateGame  = "createGame"
	IntentJoinGame    = "joinGame"
	IntentMakeMove    = "makeMove"
	IntentRestartGame = "restartGame"
	IntentLeaveGame   = "leaveGame"
)

// Events sent by the relay.
const (
	EventGameCreated        = "gameCreated"
	EventGameJoined         = "gameJoined"
	EventOpponentJoined     = "opponentJoined"
	EventGameUpdated        = "gameUpdated"
	EventGameRestarted      = "gameRestarted"
	EventPlayerDisconnected = "playerDisconnected"
	EventPlayerLeft         = "playerLeft"
	EventError              = "error"
)

// Event is one server-to-client message. Payload is one of the structs below.
type Event struct {
	Name    string
	Payload any
}

// GameState is the full state payload shared by most events.
type GameState struct {
	ID          string  `json:"id"`
	Squares     Board   `json:"squares"`
	Players     Players `json:"players"`
	CurrentTurn Mark    `json:"currentTurn"`
	CreatedAt   int64   `json:"createdAt"`
	LastUpdated int64   `json:"lastUpdated,omitempty"`
}

type GameCreated struct {
	GameID   string `json:"gameId"`
	Role     Mark   `json:"role"`
	ShareURL string `json:"shareUrl"`
}

type GameJoined struct {
	GameState
	Role Mark `json:"role"`
}

type GameRestarted struct {
	GameState
	RestartedBy Mark `json:"restartedBy"`
}

type PlayerDisconnected struct {
	Player Mark `json:"player"`
}

type PlayerLeft struct {
	GameID  string `json:"gameId"`
	Player  Mark   `json:"player"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// GameRef is the payload of joinGame, restartGame and leaveGame.
type GameRef struct {
	GameID string `json:"gameId"`
}

type MovePayload struct {
	GameID string `json:"gameId"`
	Index  *int   `json:"index"`
}
