//go:build linux

package relay

import (
	"io"
	"net/netip"
	"os"

	E "github.com/sagernet/sing-nc/common/exceptions"
	M "github.com/sagernet/sing-nc/common/metadata"

	"golang.org/x/sys/unix"
)

// fdEndpoint performs raw non-blocking I/O on a file descriptor. Errors are
// the bare errno so that EAGAIN can be told apart by the pumps.
type fdEndpoint struct {
	fd int
}

func (e *fdEndpoint) FD() int {
	return e.fd
}

func (e *fdEndpoint) Read(p []byte) (int, error) {
	n, err := unix.Read(e.fd, p)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (e *fdEndpoint) Write(p []byte) (int, error) {
	n, err := unix.Write(e.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// stdioEndpoint is a standard stream switched to non-blocking mode. Close
// restores the original mode and leaves the descriptor open.
type stdioEndpoint struct {
	fdEndpoint
	name    string
	restore bool
}

func openStdio(file *os.File, name string) (*stdioEndpoint, error) {
	// Fd puts the file into blocking mode; the flag is set again below.
	fd := int(file.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil, E.Cause(err, "get ", name, " flags")
	}
	endpoint := &stdioEndpoint{
		fdEndpoint: fdEndpoint{fd},
		name:       name,
	}
	if flags&unix.O_NONBLOCK == 0 {
		err = unix.SetNonblock(fd, true)
		if err != nil {
			return nil, E.Cause(err, "set ", name, " non-blocking")
		}
		endpoint.restore = true
	}
	return endpoint, nil
}

func (e *stdioEndpoint) Close() error {
	if !e.restore {
		return nil
	}
	e.restore = false
	err := unix.SetNonblock(e.fd, false)
	if err != nil {
		return E.Cause(err, "restore ", e.name, " blocking mode")
	}
	return nil
}

// Socket is a non-blocking TCP socket owned by the relay.
type Socket struct {
	fdEndpoint
	closed bool
}

// dialNonblocking starts a TCP connect and returns before it completes.
func dialNonblocking(destination netip.AddrPort) (*Socket, error) {
	var (
		family   int
		sockaddr unix.Sockaddr
	)
	addr := destination.Addr()
	if addr.Is4() || addr.Is4In6() {
		family = unix.AF_INET
		sockaddr = &unix.SockaddrInet4{Port: int(destination.Port()), Addr: addr.As4()}
	} else {
		family = unix.AF_INET6
		sockaddr = &unix.SockaddrInet6{Port: int(destination.Port()), Addr: addr.As16()}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, E.Cause(err, "create socket")
	}
	// interactive traffic is mostly small writes
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	for {
		err = unix.Connect(fd, sockaddr)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, E.Cause(err, "connect ", destination)
	}
	return &Socket{fdEndpoint: fdEndpoint{fd}}, nil
}

// connectError returns the outcome of the pending connect.
func (s *Socket) connectError() error {
	value, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if value != 0 {
		return unix.Errno(value)
	}
	return nil
}

func (s *Socket) PeerAddr() (M.Socksaddr, error) {
	sockaddr, err := unix.Getpeername(s.fd)
	if err != nil {
		return M.Socksaddr{}, err
	}
	switch addr := sockaddr.(type) {
	case *unix.SockaddrInet4:
		return M.SocksaddrFromNetIP(netip.AddrPortFrom(netip.AddrFrom4(addr.Addr), uint16(addr.Port))), nil
	case *unix.SockaddrInet6:
		return M.SocksaddrFromNetIP(netip.AddrPortFrom(netip.AddrFrom16(addr.Addr), uint16(addr.Port))), nil
	default:
		return M.Socksaddr{}, unix.EAFNOSUPPORT
	}
}

// CloseWrite half-closes the connection: the peer reads end of stream while
// this side keeps receiving.
func (s *Socket) CloseWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
