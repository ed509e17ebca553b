// Package relay copies bytes between standard input/output and one TCP
// connection on a single goroutine driven by edge-triggered readiness.
//
// Input is read into the upload queue and written to the socket; the socket
// is read into the download queue and written to output. Writes are tried on
// every iteration and writability is only subscribed to while a queue holds
// unsent bytes.
package relay

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	E "github.com/sagernet/sing-nc/common/exceptions"
	"github.com/sagernet/sing-nc/common/poll"

	"github.com/sirupsen/logrus"
)

const (
	TokenInput  poll.Token = 0
	TokenOutput poll.Token = 1
	TokenSocket poll.Token = 4
)

type State int32

const (
	StateConnecting State = iota
	StateConnected
	// StateClosing is entered when the peer closes the connection; queued
	// bytes are flushed before the relay terminates.
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Relay struct {
	options  Options
	logger   logrus.FieldLogger
	poller   Poller
	interest *interestManager
	state    atomic.Int32
	started  atomic.Bool

	socket   *Socket
	input    *stdioEndpoint
	output   *stdioEndpoint
	upload   *Queue
	download *Queue

	inputOpen      bool
	inputPollable  bool
	outputPollable bool
	// an endpoint is ready while it may hold data no new edge will announce
	inputReady    bool
	socketReady   bool
	writeShutdown bool

	events []poll.Event
}

func New(options Options) (*Relay, error) {
	poller, err := poll.New()
	if err != nil {
		return nil, err
	}
	return newRelay(options, poller), nil
}

func newRelay(options Options, poller Poller) *Relay {
	options = options.normalize()
	return &Relay{
		options:  options,
		logger:   options.Logger,
		poller:   poller,
		interest: newInterestManager(poller),
		upload:   NewQueue(),
		download: NewQueue(),
		events:   make([]poll.Event, 8),
	}
}

// Run connects to Options.Destination and relays until the connection ends.
// It returns nil only after the peer closed the connection and every byte
// still queued was written; any I/O error ends the relay. A Relay runs once.
func Run(ctx context.Context, options Options) error {
	relay, err := New(options)
	if err != nil {
		return err
	}
	return relay.Run(ctx)
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

func (r *Relay) setState(state State) {
	previous := State(r.state.Swap(int32(state)))
	if previous != state {
		r.logger.Debug("state ", previous, " -> ", state)
	}
}

func (r *Relay) Run(ctx context.Context) (err error) {
	if !r.started.CompareAndSwap(false, true) {
		return E.New("relay already started")
	}
	defer func() {
		r.setState(StateTerminated)
		err = E.Errors(err, r.close())
	}()
	stop := context.AfterFunc(ctx, func() {
		r.poller.Wakeup()
	})
	defer stop()

	err = r.connect(ctx)
	if err != nil {
		return err
	}
	return r.loop(ctx)
}

func (r *Relay) connect(ctx context.Context) error {
	r.setState(StateConnecting)
	connector := &Connector{
		Poller:  r.poller,
		Timeout: r.options.ConnectTimeout,
		Logger:  r.logger,
	}
	conn, peer, err := connector.Connect(ctx, r.options.Destination)
	if err != nil {
		return err
	}
	r.socket = conn
	r.interest.track(TokenSocket, conn.FD(), poll.Readable, poll.Readable)
	r.logger.Info("connection established to ", peer)

	r.input, err = openStdio(r.options.Input, "input")
	if err != nil {
		return err
	}
	r.inputPollable, err = r.register(r.input.FD(), TokenInput, poll.Readable)
	if err != nil {
		return E.Cause(err, "register input")
	}
	r.output, err = openStdio(r.options.Output, "output")
	if err != nil {
		return err
	}
	r.outputPollable, err = r.register(r.output.FD(), TokenOutput, poll.None)
	if err != nil {
		return E.Cause(err, "register output")
	}
	r.inputOpen = true
	r.inputReady = !r.inputPollable
	r.setState(StateConnected)
	return nil
}

// register subscribes fd, reporting false for descriptors such as regular
// files that cannot be polled and are treated as always ready instead.
func (r *Relay) register(fd int, token poll.Token, interest poll.Interest) (bool, error) {
	err := r.poller.Register(fd, token, interest)
	if errors.Is(err, poll.ErrNotPollable) {
		r.logger.Debug("fd ", fd, " is not pollable, treating it as always ready")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.interest.track(token, fd, interest, interest)
	return true, nil
}

func (r *Relay) loop(ctx context.Context) error {
	for {
		// a wakeup may already have been consumed while connecting
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.poller.Wait(r.events, r.waitTimeout())
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		for _, event := range r.events[:n] {
			r.dispatch(event)
		}

		err = r.readInput()
		if err != nil {
			return err
		}
		err = r.readSocket()
		if err != nil {
			return err
		}
		err = r.flushUpload()
		if err != nil {
			return err
		}
		err = r.flushDownload()
		if err != nil {
			return err
		}

		if r.State() == StateClosing && r.upload.IsEmpty() && r.download.IsEmpty() {
			return nil
		}
	}
}

func (r *Relay) dispatch(event poll.Event) {
	wake := event.Readable || event.Hangup || event.Error
	switch event.Token {
	case TokenInput:
		if wake {
			r.inputReady = true
		}
	case TokenSocket:
		if wake {
			r.socketReady = true
		}
	}
}

func (r *Relay) hasRoom(queue *Queue) bool {
	return r.options.BufferLimit <= 0 || queue.Buffered() < r.options.BufferLimit
}

// waitTimeout does not block while a ready endpoint can still be read, since
// no further edge is guaranteed for it.
func (r *Relay) waitTimeout() time.Duration {
	if r.inputOpen && r.inputReady && r.hasRoom(r.upload) {
		return 0
	}
	if r.State() == StateConnected && r.socketReady && r.hasRoom(r.download) {
		return 0
	}
	if !r.outputPollable && !r.download.IsEmpty() {
		return 0
	}
	return -1
}

func (r *Relay) readInput() error {
	if !r.inputOpen || !r.inputReady || !r.hasRoom(r.upload) {
		return nil
	}
	n, err := ReadOnce(r.input, r.upload)
	if err == io.EOF {
		return r.closeInput()
	}
	if err != nil {
		return E.Cause(err, "read input")
	}
	r.inputReady = n > 0 || !r.inputPollable
	return nil
}

func (r *Relay) closeInput() error {
	r.inputOpen = false
	r.inputReady = false
	r.logger.Debug("input reached end of stream")
	if !r.inputPollable {
		return nil
	}
	r.interest.forget(TokenInput)
	err := r.poller.Deregister(r.input.FD())
	if err != nil {
		return E.Cause(err, "deregister input")
	}
	return nil
}

func (r *Relay) readSocket() error {
	if r.State() != StateConnected || !r.socketReady || !r.hasRoom(r.download) {
		return nil
	}
	_, err := Drain(r.socket, r.download, r.options.BufferLimit)
	if err == io.EOF {
		r.socketReady = false
		return r.beginClosing()
	}
	if err != nil {
		return E.Cause(err, "read socket")
	}
	r.socketReady = !r.hasRoom(r.download)
	return nil
}

func (r *Relay) beginClosing() error {
	r.setState(StateClosing)
	r.logger.Debug("connection closed by peer, ", r.upload.Buffered(), " bytes to send, ", r.download.Buffered(), " bytes to output")
	if r.inputOpen {
		err := r.closeInput()
		if err != nil {
			return err
		}
	}
	return r.interest.setBase(TokenSocket, poll.None)
}

func (r *Relay) flushUpload() error {
	_, err := Flush(r.socket, r.upload)
	if err != nil {
		return E.Cause(err, "write socket")
	}
	err = r.interest.update(TokenSocket, !r.upload.IsEmpty())
	if err != nil {
		return err
	}
	if r.options.HalfClose && !r.inputOpen && !r.writeShutdown && r.upload.IsEmpty() && r.State() == StateConnected {
		r.writeShutdown = true
		r.logger.Debug("shutting down sending side")
		err = r.socket.CloseWrite()
		if err != nil {
			return E.Cause(err, "shutdown socket")
		}
	}
	return nil
}

func (r *Relay) flushDownload() error {
	_, err := Flush(r.output, r.download)
	if err != nil {
		return E.Cause(err, "write output")
	}
	return r.interest.update(TokenOutput, !r.download.IsEmpty())
}

func (r *Relay) close() error {
	var errs []error
	if r.socket != nil {
		errs = append(errs, r.socket.Close())
	}
	if r.input != nil {
		errs = append(errs, r.input.Close())
	}
	if r.output != nil {
		errs = append(errs, r.output.Close())
	}
	errs = append(errs, r.poller.Close())
	return E.Errors(errs...)
}
