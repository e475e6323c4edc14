package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := Conflict("slot %s taken", "18:00")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("acquire: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Conflict("x").Retryable())
	assert.True(t, ExpiredHold("x").Retryable())
	assert.False(t, Permission("x").Retryable())
	assert.False(t, IneligibleDiscount("x").Retryable())

	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", ExpiredHold("gone"))))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := Wrap(KindConflict, cause, "hold insert")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "hold insert: duplicate entry", err.Error())
	assert.Equal(t, "conflict", KindConflict.String())
}
