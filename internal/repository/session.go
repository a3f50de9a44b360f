package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
)

const (
	sessionKeyPrefix = "session:"
	scanBatch        = 100
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error

	List(ctx context.Context) ([]*entity.Session, error)
	Count(ctx context.Context) (int, error)
}

type dbSession struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &dbSession{
		client: client,
	}
}

func (that *dbSession) CreateOrUpdate(ctx context.Context, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	if err = that.client.Set(ctx, sessionKeyPrefix+session.ID, sessionJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	response, err := that.client.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	var session entity.Session
	if err = json.Unmarshal([]byte(response), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (that *dbSession) DeleteByID(ctx context.Context, id string) error {
	deleted, err := that.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session by id: %w", err)
	}

	if deleted == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (that *dbSession) List(ctx context.Context) ([]*entity.Session, error) {
	keys, err := that.keys(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.Session, 0, len(keys))
	for _, key := range keys {
		session, err := that.GetByID(ctx, strings.TrimPrefix(key, sessionKeyPrefix))
		if errors.Is(err, ErrSessionNotFound) {
			// deleted between SCAN and GET
			continue
		}
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	sortSessions(sessions)

	return sessions, nil
}

func (that *dbSession) Count(ctx context.Context) (int, error) {
	keys, err := that.keys(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

func (that *dbSession) keys(ctx context.Context) ([]string, error) {
	var keys []string

	iter := that.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	return keys, nil
}

// sortSessions orders by creation time, oldest first.
func sortSessions(sessions []*entity.Session) {
	slices.SortFunc(sessions, func(a, b *entity.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
