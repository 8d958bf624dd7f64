// Package pool reuses render buffers on hot paths.
package pool

import (
	"bytes"
	"sync"
)

// maxBufferSize bounds what is returned to the pool.
const maxBufferSize = 256 * 1024

var buffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves a buffer from the pool, resetting it for use.
func GetBuffer() *bytes.Buffer {
	buf := buffers.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool.
// Buffers that grew past 256KB are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxBufferSize {
		return
	}
	buffers.Put(buf)
}
