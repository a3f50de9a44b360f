package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/rocketscienceinc/tictactoe-relay/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository"
)

func (that *Relay) create(ctx context.Context, connID string) error {
	log := that.logger.With("method", "create", "connID", connID)

	session := entity.NewSession(that.opts.NewID(), connID, that.opts.Now())
	if err := that.saveSession(ctx, session); err != nil {
		return err
	}

	that.joinRoom(session.ID, connID)

	log.Info("game created", "gameID", session.ID)

	that.emitter.Emit(connID, entity.Event{
		Name: entity.EventGameCreated,
		Payload: entity.GameCreated{
			GameID:   session.ID,
			Role:     entity.PlayerX,
			ShareURL: that.shareURL(session.ID),
		},
	})

	return nil
}

func (that *Relay) join(ctx context.Context, connID, gameID string) error {
	log := that.logger.With("method", "join", "connID", connID, "gameID", gameID)

	session, err := that.getSession(ctx, gameID)
	if err != nil {
		return err
	}

	if mark, seated := session.Players.SeatOf(connID); seated {
		that.joinRoom(gameID, connID)

		log.Debug("connection rejoined its seat", "mark", mark)

		that.emitter.Emit(connID, entity.Event{
			Name:    entity.EventGameJoined,
			Payload: entity.GameJoined{GameState: session.State(), Role: mark},
		})

		return nil
	}

	mark, ok := session.Players.VacantSeat()
	if !ok {
		return fmt.Errorf("%w: game %s", apperror.ErrFull, gameID)
	}

	session.Players.Set(mark, connID)
	if err = that.saveSession(ctx, session); err != nil {
		return err
	}

	others := that.recipients(session)
	that.joinRoom(gameID, connID)

	log.Info("player joined", "mark", mark, "phase", PhaseOf(session))

	that.emitter.Emit(connID, entity.Event{
		Name:    entity.EventGameJoined,
		Payload: entity.GameJoined{GameState: session.State(), Role: mark},
	})

	that.broadcast(lo.Without(others, connID), entity.Event{
		Name:    entity.EventOpponentJoined,
		Payload: session.State(),
	})

	return nil
}

// move applies a placement. Concluded boards are not rejected here: clients
// stop offering moves once the evaluator reports a result.
func (that *Relay) move(ctx context.Context, connID, gameID string, cell int) error {
	log := that.logger.With("method", "move", "connID", connID, "gameID", gameID)

	session, mark, err := that.seatedSession(ctx, connID, gameID)
	if err != nil {
		return err
	}

	if err = session.MakeTurn(mark, cell, that.opts.Now()); err != nil {
		return fmt.Errorf("failed to make turn: %w", err)
	}

	if err = that.saveSession(ctx, session); err != nil {
		return err
	}

	if phase := PhaseOf(session); phase == PhaseConcluded {
		log.Info("game concluded", "lastMark", mark, "cell", cell)
	}

	that.broadcast(that.recipients(session), entity.Event{
		Name:    entity.EventGameUpdated,
		Payload: session.State(),
	})

	return nil
}

// restart takes effect on the first request from either seated player.
func (that *Relay) restart(ctx context.Context, connID, gameID string) error {
	log := that.logger.With("method", "restart", "connID", connID, "gameID", gameID)

	session, mark, err := that.seatedSession(ctx, connID, gameID)
	if err != nil {
		return err
	}

	session.Restart(that.opts.Now())
	if err = that.saveSession(ctx, session); err != nil {
		return err
	}

	log.Info("game restarted", "restartedBy", mark)

	that.broadcast(that.recipients(session), entity.Event{
		Name:    entity.EventGameRestarted,
		Payload: entity.GameRestarted{GameState: session.State(), RestartedBy: mark},
	})

	return nil
}

func (that *Relay) leave(ctx context.Context, connID, gameID string) error {
	log := that.logger.With("method", "leave", "connID", connID, "gameID", gameID)

	session, mark, err := that.seatedSession(ctx, connID, gameID)
	if err != nil {
		return err
	}

	recipients := that.recipients(session)

	session.Players.Set(mark, "")
	if err = that.saveSession(ctx, session); err != nil {
		return err
	}

	that.leaveRoom(gameID, connID)

	log.Info("player left", "mark", mark)

	that.broadcast(recipients, entity.Event{
		Name: entity.EventPlayerLeft,
		Payload: entity.PlayerLeft{
			GameID:  gameID,
			Player:  mark,
			Message: fmt.Sprintf("Player %s left the game", mark),
		},
	})

	return nil
}

// disconnect vacates connID's seats and forgets it in every room.
func (that *Relay) disconnect(ctx context.Context, connID string) error {
	log := that.logger.With("method", "disconnect", "connID", connID)

	sessions, err := that.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var errs []error
	for _, session := range sessions {
		mark, seated := session.Players.SeatOf(connID)
		if !seated {
			continue
		}

		session.Players.Set(mark, "")
		if err = that.saveSession(ctx, session); err != nil {
			errs = append(errs, err)
			continue
		}

		that.leaveRoom(session.ID, connID)

		log.Info("player disconnected", "gameID", session.ID, "mark", mark)

		that.broadcast(that.recipients(session), entity.Event{
			Name:    entity.EventPlayerDisconnected,
			Payload: entity.PlayerDisconnected{Player: mark},
		})
	}

	for gameID := range that.rooms {
		that.leaveRoom(gameID, connID)
	}

	return errors.Join(errs...)
}

// sweep deletes sessions that outlived the retention window.
func (that *Relay) sweep(ctx context.Context) (int, error) {
	log := that.logger.With("method", "sweep")

	sessions, err := that.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := that.opts.Now()

	var removed int
	for _, session := range sessions {
		if !session.IsExpired(now, that.opts.Retention) {
			continue
		}

		if err = that.repo.DeleteByID(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			log.Error("failed to delete expired session", "gameID", session.ID, "error", err)
			continue
		}

		delete(that.rooms, session.ID)
		removed++
	}

	if removed > 0 {
		log.Info("expired sessions removed", "count", removed)
	}

	return removed, nil
}

// releaseSeats vacates seats left over from a previous process: those
// connections no longer exist.
func (that *Relay) releaseSeats(ctx context.Context) error {
	log := that.logger.With("method", "releaseSeats")

	sessions, err := that.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var released int
	for _, session := range sessions {
		if session.Players == (entity.Players{}) {
			continue
		}

		session.Players = entity.Players{}
		if err = that.saveSession(ctx, session); err != nil {
			return err
		}

		released++
	}

	if released > 0 {
		log.Info("stale seats released", "sessions", released)
	}

	return nil
}

func (that *Relay) getSession(ctx context.Context, gameID string) (*entity.Session, error) {
	session, err := that.repo.GetByID(ctx, gameID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotFound, gameID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// seatedSession loads gameID and checks that connID holds a seat in it.
func (that *Relay) seatedSession(ctx context.Context, connID, gameID string) (*entity.Session, entity.Mark, error) {
	session, err := that.getSession(ctx, gameID)
	if err != nil {
		return nil, entity.Empty, err
	}

	mark, seated := session.Players.SeatOf(connID)
	if !seated {
		return nil, entity.Empty, fmt.Errorf("%w: game %s", apperror.ErrForbidden, gameID)
	}

	return session, mark, nil
}

func (that *Relay) saveSession(ctx context.Context, session *entity.Session) error {
	if err := that.repo.CreateOrUpdate(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (that *Relay) shareURL(gameID string) string {
	return that.opts.BaseURL + "/play/" + gameID
}

func (that *Relay) joinRoom(gameID, connID string) {
	room, ok := that.rooms[gameID]
	if !ok {
		room = make(map[string]struct{})
		that.rooms[gameID] = room
	}

	room[connID] = struct{}{}
}

func (that *Relay) leaveRoom(gameID, connID string) {
	room, ok := that.rooms[gameID]
	if !ok {
		return
	}

	delete(room, connID)
	if len(room) == 0 {
		delete(that.rooms, gameID)
	}
}

// recipients lists the seated connections, X first, then any other room members.
func (that *Relay) recipients(session *entity.Session) []string {
	seated := session.Players.Connections()

	extra := lo.Without(lo.Keys(that.rooms[session.ID]), seated...)
	slices.Sort(extra)

	return lo.Uniq(append(seated, extra...))
}

func (that *Relay) broadcast(connIDs []string, event entity.Event) {
	for _, connID := range connIDs {
		that.emitter.Emit(connID, event)
	}
}
