//go:build !linux

package poll

import "time"

type Poller struct{}

func New() (*Poller, error) {
	return nil, ErrUnsupported
}

func (p *Poller) Register(fd int, token Token, interest Interest) error {
	return ErrUnsupported
}

func (p *Poller) Reregister(fd int, token Token, interest Interest) error {
	return ErrUnsupported
}

func (p *Poller) Deregister(fd int) error {
	return ErrUnsupported
}

func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	return 0, ErrUnsupported
}

func (p *Poller) Wakeup() error {
	return ErrUnsupported
}

func (p *Poller) Close() error {
	return nil
}
