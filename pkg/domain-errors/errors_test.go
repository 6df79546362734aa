package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("new carries code and message", func(t *testing.T) {
		err := New(CodeNotFound, "histogram not found")
		assert.Equal(t, "histogram not found", err.Error())
		assert.True(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(cause, CodeInternal, "flatten failed")
		require.Error(t, err)
		assert.True(t, Is(err, cause))
		assert.Equal(t, "flatten failed: boom", err.Error())
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("inner codes are visible through outer wrap", func(t *testing.T) {
		inner := New(CodeConflict, "name taken")
		outer := Wrap(inner, CodeValidation, "bad catalogue")
		assert.True(t, HasCode(outer, CodeValidation))
		assert.True(t, HasCode(outer, CodeConflict))
		assert.False(t, HasCode(outer, CodeNotFound))
		assert.Equal(t, CodeValidation, CodeOf(outer))
	})

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		err := fmt.Errorf("plain: %w", errors.New("x"))
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}
