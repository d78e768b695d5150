package server

import (
	"bufio"
	"io"
	"sync"
)

// readerBufferSize fits a typical request head in one read.
const readerBufferSize = 4096

// readerPool reuses the per-connection bufio.Readers.
var readerPool = sync.Pool{
	New: func() any {
		return bufio.NewReaderSize(nil, readerBufferSize)
	},
}

// getReader returns a pooled reader reading from r.
func getReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// putReader returns br to the pool. br must not be used afterwards.
func putReader(br *bufio.Reader) {
	br.Reset(nil)
	readerPool.Put(br)
}
