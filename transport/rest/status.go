package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	statusRunning      = "running"
	statusInitializing = "initializing"
)

type relayStatus interface {
	Running() bool
	ActiveGames(ctx context.Context) (int, error)
}

type StatusHandler interface {
	StatusHandler(w http.ResponseWriter, r *http.Request)
}

type statusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	GameCount *int   `json:"gameCount,omitempty"`
}

type statusHandler struct {
	logger *slog.Logger
	relay  relayStatus
}

func NewStatusHandler(logger *slog.Logger, relay relayStatus) StatusHandler {
	return &statusHandler{
		logger: logger,
		relay:  relay,
	}
}

// StatusHandler reports relay liveness and how many games it holds.
func (that *statusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "StatusHandler")

	if !that.relay.Running() {
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  statusInitializing,
			Message: "relay is starting, retry shortly",
		})
		return
	}

	count, err := that.relay.ActiveGames(r.Context())
	if err != nil {
		log.Error("failed to count games", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:  statusInitializing,
			Message: "relay is not accepting requests",
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:    statusRunning,
		Message:   "relay is running",
		GameCount: &count,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body)
}
