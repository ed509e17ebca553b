package relay

import (
	"syscall"
	"testing"

	"github.com/sagernet/sing-nc/common/poll"

	"github.com/stretchr/testify/require"
)

type registration struct {
	fd       int
	token    poll.Token
	interest poll.Interest
}

type recordingRegistrar struct {
	calls []registration
	err   error
}

func (r *recordingRegistrar) Reregister(fd int, token poll.Token, interest poll.Interest) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, registration{fd, token, interest})
	return nil
}

func TestRecomputeInterest(t *testing.T) {
	t.Parallel()
	for _, testCase := range []struct {
		base    poll.Interest
		waiting bool
		expect  poll.Interest
	}{
		{poll.Readable, false, poll.Readable},
		{poll.Readable, true, poll.Readable | poll.Writable},
		{poll.None, true, poll.Writable},
		{poll.None, false, poll.None},
		{poll.Readable | poll.Writable, false, poll.Readable},
	} {
		require.Equal(t, testCase.expect, recomputeInterest(testCase.base, testCase.waiting))
	}
}

func TestInterestManagerTransitions(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{}
	manager := newInterestManager(registrar)
	manager.track(TokenSocket, 9, poll.Readable, poll.Readable)
	manager.track(TokenOutput, 1, poll.None, poll.None)

	require.NoError(t, manager.update(TokenSocket, false))
	require.NoError(t, manager.update(TokenOutput, false))
	require.Empty(t, registrar.calls)

	require.NoError(t, manager.update(TokenSocket, true))
	require.NoError(t, manager.update(TokenSocket, true))
	require.NoError(t, manager.update(TokenOutput, true))
	require.Equal(t, []registration{
		{9, TokenSocket, poll.Readable | poll.Writable},
		{1, TokenOutput, poll.Writable},
	}, registrar.calls)

	require.NoError(t, manager.update(TokenSocket, false))
	interest, loaded := manager.registered(TokenSocket)
	require.True(t, loaded)
	require.Equal(t, poll.Readable, interest)
	require.Len(t, registrar.calls, 3)
}

func TestInterestManagerSetBase(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{}
	manager := newInterestManager(registrar)
	manager.track(TokenSocket, 9, poll.Readable, poll.Readable)
	require.NoError(t, manager.update(TokenSocket, true))

	require.NoError(t, manager.setBase(TokenSocket, poll.None))
	interest, _ := manager.registered(TokenSocket)
	require.Equal(t, poll.Writable, interest)

	manager.forget(TokenSocket)
	require.NoError(t, manager.update(TokenSocket, false))
	_, loaded := manager.registered(TokenSocket)
	require.False(t, loaded)
	require.Len(t, registrar.calls, 2)
}

func TestInterestManagerFailedRegistration(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{err: syscall.EBADF}
	manager := newInterestManager(registrar)
	manager.track(TokenOutput, 1, poll.None, poll.None)
	require.ErrorIs(t, manager.update(TokenOutput, true), syscall.EBADF)
	interest, _ := manager.registered(TokenOutput)
	require.Equal(t, poll.None, interest)
}
