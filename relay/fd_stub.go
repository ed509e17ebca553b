//go:build !linux

package relay

import (
	"net/netip"
	"os"

	M "github.com/sagernet/sing-nc/common/metadata"
	"github.com/sagernet/sing-nc/common/poll"
)

type fdEndpoint struct {
	fd int
}

func (e *fdEndpoint) FD() int {
	return e.fd
}

func (e *fdEndpoint) Read(p []byte) (int, error) {
	return 0, poll.ErrUnsupported
}

func (e *fdEndpoint) Write(p []byte) (int, error) {
	return 0, poll.ErrUnsupported
}

type stdioEndpoint struct {
	fdEndpoint
}

func openStdio(file *os.File, name string) (*stdioEndpoint, error) {
	return nil, poll.ErrUnsupported
}

func (e *stdioEndpoint) Close() error {
	return nil
}

type Socket struct {
	fdEndpoint
}

func dialNonblocking(destination netip.AddrPort) (*Socket, error) {
	return nil, poll.ErrUnsupported
}

func (s *Socket) connectError() error {
	return poll.ErrUnsupported
}

func (s *Socket) PeerAddr() (M.Socksaddr, error) {
	return M.Socksaddr{}, poll.ErrUnsupported
}

func (s *Socket) CloseWrite() error {
	return poll.ErrUnsupported
}

func (s *Socket) Close() error {
	return nil
}
