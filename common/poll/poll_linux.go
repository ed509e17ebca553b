//go:build linux

package poll

import (
	"sync"
	"time"
	"unsafe"

	E "github.com/sagernet/sing-nc/common/exceptions"

	"golang.org/x/sys/unix"
)

// wakeup pipe events carry data 0, registered tokens are stored shifted by one.
const wakeupData = 0

type Poller struct {
	epollFD int
	pipeFDs [2]int
	buffer  []unix.EpollEvent
	access  sync.Mutex
	closed  bool
}

func New() (*Poller, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, E.Cause(err, "epoll create")
	}

	var pipeFDs [2]int
	err = unix.Pipe2(pipeFDs[:], unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		unix.Close(epollFD)
		return nil, E.Cause(err, "create wakeup pipe")
	}

	pipeEvent := &unix.EpollEvent{Events: unix.EPOLLIN}
	*(*uint64)(unsafe.Pointer(&pipeEvent.Fd)) = wakeupData
	err = unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, pipeFDs[0], pipeEvent)
	if err != nil {
		unix.Close(pipeFDs[0])
		unix.Close(pipeFDs[1])
		unix.Close(epollFD)
		return nil, E.Cause(err, "register wakeup pipe")
	}

	return &Poller{
		epollFD: epollFD,
		pipeFDs: pipeFDs,
	}, nil
}

func epollEvent(token Token, interest Interest) *unix.EpollEvent {
	event := &unix.EpollEvent{Events: unix.EPOLLET}
	if interest&Readable != 0 {
		event.Events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&Writable != 0 {
		event.Events |= unix.EPOLLOUT
	}
	*(*uint64)(unsafe.Pointer(&event.Fd)) = uint64(token) + 1
	return event
}

func (p *Poller) control(op int, fd int, token Token, interest Interest) error {
	err := unix.EpollCtl(p.epollFD, op, fd, epollEvent(token, interest))
	if err == unix.EPERM {
		return ErrNotPollable
	}
	return err
}

// Register starts edge-triggered notifications for fd. Registering with None
// still reports errors and hangups.
func (p *Poller) Register(fd int, token Token, interest Interest) error {
	err := p.control(unix.EPOLL_CTL_ADD, fd, token, interest)
	if err != nil {
		return E.Cause(err, "epoll add fd ", fd)
	}
	return nil
}

// Reregister replaces the interest set of fd. Modifying an entry re-arms
// edge detection, so a condition that is already true is reported again.
func (p *Poller) Reregister(fd int, token Token, interest Interest) error {
	err := p.control(unix.EPOLL_CTL_MOD, fd, token, interest)
	if err != nil {
		return E.Cause(err, "epoll modify fd ", fd)
	}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	err := unix.EpollCtl(p.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return E.Cause(err, "epoll delete fd ", fd)
	}
	return nil
}

// Wait blocks until at least one registered fd is ready, the timeout expires,
// or Wakeup is called. A negative timeout blocks indefinitely. Interrupted
// waits and wakeups return zero events.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.buffer) < len(events) {
		p.buffer = make([]unix.EpollEvent, len(events))
	}
	buffer := p.buffer[:len(events)]

	n, err := unix.EpollWait(p.epollFD, buffer, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, E.Cause(err, "epoll wait")
	}

	var count int
	for i := 0; i < n; i++ {
		raw := buffer[i]
		data := *(*uint64)(unsafe.Pointer(&raw.Fd))
		if data == wakeupData {
			p.drainWakeup()
			continue
		}
		events[count] = Event{
			Token:    Token(data - 1),
			Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			Hangup:   raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Error:    raw.Events&unix.EPOLLERR != 0,
		}
		count++
	}
	return count, nil
}

func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	millis := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		millis++
	}
	return int(millis)
}

func (p *Poller) drainWakeup() {
	var buffer [64]byte
	for {
		n, err := unix.Read(p.pipeFDs[0], buffer[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Wakeup interrupts a blocked Wait. It may be called from any goroutine.
func (p *Poller) Wakeup() error {
	p.access.Lock()
	defer p.access.Unlock()
	if p.closed {
		return ErrClosed
	}
	_, err := unix.Write(p.pipeFDs[1], []byte{0})
	if err != nil && err != unix.EAGAIN {
		return E.Cause(err, "write wakeup pipe")
	}
	return nil
}

func (p *Poller) Close() error {
	p.access.Lock()
	defer p.access.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return E.Errors(
		unix.Close(p.epollFD),
		unix.Close(p.pipeFDs[0]),
		unix.Close(p.pipeFDs[1]),
	)
}
