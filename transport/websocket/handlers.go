package websocket

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

func (that *Server) handleCreateGame(ctx context.Context, connID string, _ *Message) error {
	return that.relay.Create(ctx, connID)
}

func (that *Server) handleJoinGame(ctx context.Context, connID string, msg *Message) error {
	ref, err := decodeGameRef(msg)
	if err != nil {
		return err
	}

	return that.relay.Join(ctx, connID, ref.GameID)
}

func (that *Server) handleMakeMove(ctx context.Context, connID string, msg *Message) error {
	var payload entity.MovePayload
	if err := decodePayload(msg, &payload); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrBadPayload, err)
	}

	if payload.GameID == "" || payload.Index == nil {
		return fmt.Errorf("%w: gameId and index are required", apperror.ErrBadPayload)
	}

	return that.relay.Move(ctx, connID, payload.GameID, *payload.Index)
}

func (that *Server) handleRestartGame(ctx context.Context, connID string, msg *Message) error {
	ref, err := decodeGameRef(msg)
	if err != nil {
		return err
	}

	return that.relay.Restart(ctx, connID, ref.GameID)
}

func (that *Server) handleLeaveGame(ctx context.Context, connID string, msg *Message) error {
	ref, err := decodeGameRef(msg)
	if err != nil {
		return err
	}

	return that.relay.Leave(ctx, connID, ref.GameID)
}

func decodeGameRef(msg *Message) (entity.GameRef, error) {
	var ref entity.GameRef
	if err := decodePayload(msg, &ref); err != nil {
		return ref, fmt.Errorf("%w: %w", apperror.ErrBadPayload, err)
	}

	if ref.GameID == "" {
		return ref, fmt.Errorf("%w: gameId is required", apperror.ErrBadPayload)
	}

	return ref, nil
}
