package repository

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/samber/lo"
)

// memSession keeps sessions in a map. It is not safe for concurrent use:
// the relay loop is its only caller.
type memSession struct {
	sessions map[string]*entity.Session
}

func NewMemorySessionRepository() SessionRepository {
	return &memSession{
		sessions: make(map[string]*entity.Session),
	}
}

func (that *memSession) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	that.sessions[session.ID] = session.Clone()
	return nil
}

func (that *memSession) GetByID(_ context.Context, id string) (*entity.Session, error) {
	session, ok := that.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (that *memSession) DeleteByID(_ context.Context, id string) error {
	if _, ok := that.sessions[id]; !ok {
		return ErrSessionNotFound
	}

	delete(that.sessions, id)

	return nil
}

func (that *memSession) List(_ context.Context) ([]*entity.Session, error) {
	sessions := lo.MapToSlice(that.sessions, func(_ string, session *entity.Session) *entity.Session {
		return session.Clone()
	})

	sortSessions(sessions)

	return sessions, nil
}

func (that *memSession) Count(_ context.Context) (int, error) {
	return len(that.sessions), nil
}
