package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-relay/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByID returns a copy of the stored session", func(t *testing.T) {
		// Given: a stored session
		repo := NewMemorySessionRepository()
		session := entity.NewSession("g1", "conn-a", testNow)
		require.NoError(t, repo.CreateOrUpdate(ctx, session))

		// When: the caller mutates what it read without saving
		stored, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		stored.Board[0] = entity.PlayerX

		// Then: the stored copy is unchanged
		again, err := repo.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, again.Board.IsEmpty())
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		repo := NewMemorySessionRepository()

		session, err := repo.GetByID(ctx, "missing")

		require.ErrorIs(t, err, ErrSessionNotFound)
		assert.Nil(t, session)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewSession("g1", "conn-a", testNow)))

		require.NoError(t, repo.DeleteByID(ctx, "g1"))
		require.ErrorIs(t, repo.DeleteByID(ctx, "g1"), ErrSessionNotFound)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("List is ordered by creation time", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewSession("late", "c1", testNow.Add(time.Hour))))
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewSession("early", "c2", testNow)))

		sessions, err := repo.List(ctx)
		require.NoError(t, err)

		require.Len(t, sessions, 2)
		assert.Equal(t, "early", sessions[0].ID)
		assert.Equal(t, "late", sessions[1].ID)
	})
}
