package litetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	req := require.New(t)

	t.Run("test error wrapping", func(t *testing.T) {
		err := NewError(ErrProtocolViolation, "test error")
		req.NotNil(err)
		req.Implements((*error)(nil), err)

		req.Equal(ErrProtocolViolation, err.err)
		req.True(errors.Is(err, ErrProtocolViolation))
	})

	t.Run("test error wrapping with context", func(t *testing.T) {
		err := NewError(ErrSessionExhausted, "test error: %s", "context")
		req.NotNil(err)
		req.Implements((*error)(nil), err)

		req.Equal(ErrSessionExhausted, err.err)
		req.True(errors.Is(err, ErrSessionExhausted))
		req.Equal("session retry budget exhausted: test error: context", err.Error())
	})

	t.Run("empty context falls back to the sentinel text", func(t *testing.T) {
		err := NewError(ErrProtocolViolation, "")
		req.Equal("protocol violation", err.Error())
	})
}
