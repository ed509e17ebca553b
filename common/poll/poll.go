// Package poll is a thin readiness notifier over the platform's edge-triggered
// multiplexer. A Poller is not safe for concurrent use except for Wakeup.
package poll

import (
	"strings"

	E "github.com/sagernet/sing-nc/common/exceptions"
)

type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable

	None Interest = 0
)

func (i Interest) String() string {
	if i == None {
		return "none"
	}
	var names []string
	if i&Readable != 0 {
		names = append(names, "readable")
	}
	if i&Writable != 0 {
		names = append(names, "writable")
	}
	return strings.Join(names, "|")
}

type Token uint64

type Event struct {
	Token    Token
	Readable bool
	Writable bool
	// Hangup is set when the peer closed its side; the endpoint still reads
	// until end of stream.
	Hangup bool
	Error  bool
}

var (
	// ErrNotPollable is returned by Register when the kernel refuses the file
	// descriptor, as it does for regular files.
	ErrNotPollable = E.New("file descriptor does not support readiness polling")
	ErrUnsupported = E.New("poller not supported on this platform")
	ErrClosed      = E.New("poller closed")
)
