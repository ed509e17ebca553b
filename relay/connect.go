package relay

import (
	"context"
	"net"
	"net/netip"
	"time"

	E "github.com/sagernet/sing-nc/common/exceptions"
	M "github.com/sagernet/sing-nc/common/metadata"
	"github.com/sagernet/sing-nc/common/poll"

	"github.com/sirupsen/logrus"
)

const DefaultConnectTimeout = 1000 * time.Millisecond

// Poller is the readiness notifier the relay runs on, implemented by *poll.Poller.
type Poller interface {
	Register(fd int, token poll.Token, interest poll.Interest) error
	Reregister(fd int, token poll.Token, interest poll.Interest) error
	Deregister(fd int) error
	Wait(events []poll.Event, timeout time.Duration) (int, error)
	Wakeup() error
	Close() error
}

// Connector establishes the relay's TCP connection. It waits at most Timeout
// for the socket to report writability, which signals connect completion.
type Connector struct {
	Poller   Poller
	Timeout  time.Duration
	Resolver *net.Resolver
	Logger   logrus.FieldLogger
}

// Connect returns a connected socket registered for readable interest
// under TokenSocket.
func (c *Connector) Connect(ctx context.Context, destination M.Socksaddr) (*Socket, M.Socksaddr, error) {
	addr, err := c.resolve(ctx, destination)
	if err != nil {
		return nil, M.Socksaddr{}, err
	}
	conn, err := dialNonblocking(addr)
	if err != nil {
		return nil, M.Socksaddr{}, err
	}
	peer, err := c.establish(ctx, conn, addr)
	if err != nil {
		conn.Close()
		return nil, M.Socksaddr{}, err
	}
	return conn, peer, nil
}

func (c *Connector) resolve(ctx context.Context, destination M.Socksaddr) (netip.AddrPort, error) {
	if destination.IsIP() {
		return destination.AddrPort(), nil
	}
	resolver := c.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", destination.Fqdn)
	if err != nil {
		return netip.AddrPort{}, E.Cause(err, "resolve ", destination.Fqdn)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, E.New("resolve ", destination.Fqdn, ": no addresses")
	}
	addr := M.AddrFromIP(addrs[0].AsSlice())
	if c.Logger != nil {
		c.Logger.Debug("resolved ", destination.Fqdn, " to ", addr)
	}
	return netip.AddrPortFrom(addr, destination.Port), nil
}

func (c *Connector) establish(ctx context.Context, conn *Socket, addr netip.AddrPort) (M.Socksaddr, error) {
	err := c.Poller.Register(conn.FD(), TokenSocket, poll.Writable)
	if err != nil {
		return M.Socksaddr{}, err
	}
	err = c.awaitWritable(ctx)
	if err == nil {
		err = conn.connectError()
	}
	if err != nil {
		c.Poller.Deregister(conn.FD())
		return M.Socksaddr{}, E.Cause(err, "connect ", addr)
	}
	err = c.Poller.Reregister(conn.FD(), TokenSocket, poll.Readable)
	if err != nil {
		return M.Socksaddr{}, err
	}
	peer, err := conn.PeerAddr()
	if err != nil {
		return M.Socksaddr{}, E.Cause(err, "get peer address")
	}
	return peer, nil
}

func (c *Connector) awaitWritable(ctx context.Context) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	deadline := time.Now().Add(timeout)
	events := make([]poll.Event, 4)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrConnectionTimeout
		}
		n, err := c.Poller.Wait(events, remaining)
		if err != nil {
			return err
		}
		for _, event := range events[:n] {
			if event.Token == TokenSocket {
				return nil
			}
		}
	}
}
