package relay

import (
	"errors"
	"io"
	"syscall"

	"github.com/sagernet/sing-nc/common/buf"
)

// ReadBufferSize is the largest chunk a single read produces.
const ReadBufferSize = buf.ReadBufferSize

var errWouldBlock = errors.New("would block")

// Endpoints follow write(2) rather than io.Writer: a short write with a nil
// error is normal, and EAGAIN means no progress is possible right now.

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

func read(source io.Reader, buffer []byte) (int, error) {
	for {
		n, err := source.Read(buffer)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if isWouldBlock(err) {
				return 0, errWouldBlock
			}
			if n > 0 {
				return n, err
			}
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func write(destination io.Writer, data []byte) (int, error) {
	for {
		n, err := destination.Write(data)
		if n < 0 {
			n = 0
		}
		if err != nil {
			if errors.Is(err, syscall.EINTR) && n == 0 {
				continue
			}
			if isWouldBlock(err) {
				return n, errWouldBlock
			}
			return n, err
		}
		if n == 0 {
			return 0, io.ErrShortWrite
		}
		return n, nil
	}
}

// ReadOnce performs a single read from source and queues what it got. It is
// used for interactive input, which should not be over-read in one wakeup.
//
// Would-block yields (0, nil). End of stream, including a zero-length read,
// yields io.EOF; bytes read together with io.EOF are still queued.
func ReadOnce(source io.Reader, queue *Queue) (int, error) {
	buffer := buf.Get()
	defer buf.Put(buffer)
	n, err := read(source, buffer)
	if n > 0 {
		queue.Push(buf.Clone(buffer[:n]))
	}
	if err == errWouldBlock {
		return n, nil
	}
	return n, err
}

// Drain reads source until it would block, queueing each read as its own
// chunk. A short read does not stop it. When limit is positive, Drain also
// stops once the queue holds at least limit bytes.
func Drain(source io.Reader, queue *Queue, limit int) (int, error) {
	buffer := buf.Get()
	defer buf.Put(buffer)
	var total int
	for limit <= 0 || queue.Buffered() < limit {
		n, err := read(source, buffer)
		if n > 0 {
			queue.Push(buf.Clone(buffer[:n]))
			total += n
		}
		if err != nil {
			if err == errWouldBlock {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// Flush writes queued chunks to destination in order until the queue is empty
// or the destination would block. Queue and cursor are left untouched by a
// write that would block, so nothing is lost or sent twice. Flushing an empty
// queue does nothing.
func Flush(destination io.Writer, queue *Queue) (int, error) {
	var total int
	for !queue.IsEmpty() {
		n, err := write(destination, queue.Head())
		if n > 0 {
			queue.Advance(n)
			total += n
		}
		if err != nil {
			if err == errWouldBlock {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
