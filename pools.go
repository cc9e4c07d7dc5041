package evdump

import (
	"bytes"
	"sync"
)

// Container bodies are buffered before they are written, and containers
// nest, so one print may hold several buffers at once.
var bodyBufferPool = &sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

const maxPooledBufferSize = 1 << 20

func getBodyBuffer() *bytes.Buffer {
	return bodyBufferPool.Get().(*bytes.Buffer)
}

func releaseBodyBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	bodyBufferPool.Put(buf)
}
