package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicMessage(t *testing.T) {
	t.Run("Wrapped sentinel reports its own text", func(t *testing.T) {
		// Given: a not-found error wrapped with context
		err := fmt.Errorf("join game abc: %w", ErrNotFound)

		// When: mapping it to a client message
		msg := PublicMessage(err)

		// Then: the context is stripped
		assert.Equal(t, "game not found", msg)
	})

	t.Run("Occupied cell is reported more precisely than invalid move", func(t *testing.T) {
		err := fmt.Errorf("move: %w", ErrCellOccupied)

		assert.Equal(t, "invalid move: square already filled", PublicMessage(err))
		assert.ErrorIs(t, err, ErrInvalidMove)
	})

	t.Run("Unknown errors are hidden", func(t *testing.T) {
		msg := PublicMessage(errors.New("redis: connection refused"))

		assert.Equal(t, internalMessage, msg)
	})
}
