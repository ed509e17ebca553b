package buf

import "sync"

const ReadBufferSize = 1024

var pool = sync.Pool{
	New: func() any {
		buffer := make([]byte, ReadBufferSize)
		return &buffer
	},
}

// Get returns a ReadBufferSize scratch buffer.
func Get() []byte {
	return *pool.Get().(*[]byte)
}

func Put(buffer []byte) {
	if cap(buffer) < ReadBufferSize {
		return
	}
	buffer = buffer[:ReadBufferSize]
	pool.Put(&buffer)
}

func Make(size int) []byte {
	var buffer []byte
	if size <= 16 {
		buffer = make([]byte, 16)
	} else if size <= 32 {
		buffer = make([]byte, 32)
	} else if size <= 64 {
		buffer = make([]byte, 64)
	} else if size <= 128 {
		buffer = make([]byte, 128)
	} else if size <= 256 {
		buffer = make([]byte, 256)
	} else if size <= 512 {
		buffer = make([]byte, 512)
	} else if size <= 1024 {
		buffer = make([]byte, 1024)
	} else {
		return make([]byte, size)
	}
	return buffer[:size]
}

// Clone copies data into a newly allocated slice of exactly len(data) bytes.
func Clone(data []byte) []byte {
	chunk := Make(len(data))
	copy(chunk, data)
	return chunk
}
