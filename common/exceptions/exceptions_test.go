package exceptions

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "timed out" }
func (timeoutError) Timeout() bool { return true }

func TestCause(t *testing.T) {
	t.Parallel()
	err := Cause(io.ErrUnexpectedEOF, "read socket")
	require.Equal(t, "read socket: unexpected EOF", err.Error())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, io.ErrUnexpectedEOF, err.Cause())
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()
	require.True(t, IsTimeout(Cause(timeoutError{}, "connect")))
	require.False(t, IsTimeout(New("refused")))
	require.False(t, IsTimeout(nil))
}

func TestErrors(t *testing.T) {
	t.Parallel()
	require.NoError(t, Errors(nil, nil))
	first := New("first")
	require.Equal(t, first, Errors(nil, first))
	joined := Errors(first, io.EOF)
	require.Equal(t, "first | EOF", joined.Error())
	require.True(t, errors.Is(joined, io.EOF))
	require.True(t, errors.Is(joined, first))
}
