package relay

import (
	"github.com/eapache/queue"
)

// Queue is one direction of the relay: chunks that were read but not yet
// completely written, oldest first, plus the write cursor into the oldest.
//
// The cursor is reset to zero exactly when the head chunk is popped.
type Queue struct {
	chunks   *queue.Queue
	cursor   int
	buffered int
}

func NewQueue() *Queue {
	return &Queue{chunks: queue.New()}
}

// Push appends a chunk. The queue takes ownership of it; empty chunks are dropped.
func (q *Queue) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	q.chunks.Add(chunk)
	q.buffered += len(chunk)
}

func (q *Queue) IsEmpty() bool {
	return q.chunks.Length() == 0
}

// Chunks returns the number of queued chunks, including a partially written head.
func (q *Queue) Chunks() int {
	return q.chunks.Length()
}

// Buffered returns the number of bytes not yet written.
func (q *Queue) Buffered() int {
	return q.buffered
}

func (q *Queue) Cursor() int {
	return q.cursor
}

// Head returns the unwritten remainder of the oldest chunk, or nil.
func (q *Queue) Head() []byte {
	if q.IsEmpty() {
		return nil
	}
	return q.chunks.Peek().([]byte)[q.cursor:]
}

// Advance records that n more bytes of the head chunk were written.
func (q *Queue) Advance(n int) {
	if n == 0 {
		return
	}
	if q.IsEmpty() {
		panic("relay: advance on empty queue")
	}
	head := q.chunks.Peek().([]byte)
	if n < 0 || q.cursor+n > len(head) {
		panic("relay: advance beyond head chunk")
	}
	q.cursor += n
	q.buffered -= n
	if q.cursor == len(head) {
		q.chunks.Remove()
		q.cursor = 0
	}
}
