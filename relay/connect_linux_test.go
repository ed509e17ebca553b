//go:build linux

package relay

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	E "github.com/sagernet/sing-nc/common/exceptions"
	M "github.com/sagernet/sing-nc/common/metadata"
	"github.com/sagernet/sing-nc/common/poll"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
	"golang.org/x/sys/unix"
)

// silentPoller accepts registrations but never reports readiness.
type silentPoller struct {
	access        sync.Mutex
	registrations map[int]poll.Interest
	waits         int
	closed        bool
}

func newSilentPoller() *silentPoller {
	return &silentPoller{registrations: make(map[int]poll.Interest)}
}

func (p *silentPoller) Register(fd int, token poll.Token, interest poll.Interest) error {
	p.access.Lock()
	defer p.access.Unlock()
	p.registrations[fd] = interest
	return nil
}

func (p *silentPoller) Reregister(fd int, token poll.Token, interest poll.Interest) error {
	return p.Register(fd, token, interest)
}

func (p *silentPoller) Deregister(fd int) error {
	p.access.Lock()
	defer p.access.Unlock()
	delete(p.registrations, fd)
	return nil
}

func (p *silentPoller) Wait(events []poll.Event, timeout time.Duration) (int, error) {
	p.access.Lock()
	p.waits++
	p.access.Unlock()
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return 0, nil
}

func (p *silentPoller) Wakeup() error {
	return nil
}

func (p *silentPoller) Close() error {
	p.access.Lock()
	defer p.access.Unlock()
	p.closed = true
	return nil
}

func listenerAddr(t *testing.T, listener net.Listener) M.Socksaddr {
	addr, err := netip.ParseAddrPort(listener.Addr().String())
	require.NoError(t, err)
	return M.SocksaddrFromNetIP(addr)
}

func TestConnectorConnect(t *testing.T) {
	t.Parallel()
	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer listener.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	poller, err := poll.New()
	require.NoError(t, err)
	defer poller.Close()

	connector := &Connector{Poller: poller, Timeout: time.Second}
	conn, peer, err := connector.Connect(context.Background(), listenerAddr(t, listener))
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, listenerAddr(t, listener), peer)

	serverConn := <-accepted
	defer serverConn.Close()
	_, err = serverConn.Write([]byte("ping"))
	require.NoError(t, err)

	events := make([]poll.Event, 4)
	n, err := poller.Wait(events, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, TokenSocket, events[0].Token)
	require.True(t, events[0].Readable)
}

func TestConnectorTimeout(t *testing.T) {
	t.Parallel()
	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer listener.Close()

	poller := newSilentPoller()
	connector := &Connector{Poller: poller, Timeout: 100 * time.Millisecond}
	start := time.Now()
	_, _, err = connector.Connect(context.Background(), listenerAddr(t, listener))
	require.ErrorIs(t, err, ErrConnectionTimeout)
	require.True(t, E.IsTimeout(err))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.Empty(t, poller.registrations)
}

func TestConnectorRefused(t *testing.T) {
	t.Parallel()
	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	destination := listenerAddr(t, listener)
	require.NoError(t, listener.Close())

	poller, err := poll.New()
	require.NoError(t, err)
	defer poller.Close()

	connector := &Connector{Poller: poller, Timeout: time.Second}
	_, _, err = connector.Connect(context.Background(), destination)
	require.ErrorIs(t, err, unix.ECONNREFUSED)
	require.False(t, E.IsTimeout(err))
}

func TestConnectorCanceled(t *testing.T) {
	t.Parallel()
	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	connector := &Connector{Poller: newSilentPoller(), Timeout: time.Second}
	_, _, err = connector.Connect(ctx, listenerAddr(t, listener))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConnectorResolve(t *testing.T) {
	t.Parallel()
	connector := &Connector{}
	addr, err := connector.resolve(context.Background(), M.ParseSocksaddr("localhost:9000"))
	require.NoError(t, err)
	require.True(t, addr.Addr().IsLoopback())
	require.Equal(t, uint16(9000), addr.Port())
}
