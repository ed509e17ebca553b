package relay

import (
	"os"
	"time"

	"github.com/sagernet/sing-nc/common/log"
	M "github.com/sagernet/sing-nc/common/metadata"

	"github.com/sirupsen/logrus"
)

const DefaultBufferLimit = 4 * 1024 * 1024

type Options struct {
	Destination M.Socksaddr

	// Input and Output default to the process's standard streams.
	Input  *os.File
	Output *os.File

	ConnectTimeout time.Duration

	// HalfClose shuts down the sending side of the connection once input
	// reaches end of stream and everything read from it was sent.
	HalfClose bool

	// BufferLimit bounds the bytes queued per direction before the reading
	// side is paused. Zero disables the limit.
	BufferLimit int

	Logger logrus.FieldLogger
}

func (o Options) normalize() Options {
	if o.Input == nil {
		o.Input = os.Stdin
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.BufferLimit < 0 {
		o.BufferLimit = 0
	}
	if o.Logger == nil {
		o.Logger = log.NewLogger("relay")
	}
	return o
}
