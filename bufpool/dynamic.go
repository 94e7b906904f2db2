package bufpool

import (
	"bytes"
	"sync"
)

type dynamic struct {
	p sync.Pool
}

// NewDynamic is an unbounded buffer pool, a thin wrapper around sync.Pool.
// This is the default: envelope and chunk encoding is bursty but short-
// lived, and sync.Pool reclaims idle buffers under memory pressure on its
// own.
func NewDynamic() Pool {
	return &dynamic{p: sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}}
}

func (d *dynamic) Get() *bytes.Buffer {
	buf := d.p.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (d *dynamic) Put(buf *bytes.Buffer) {
	d.p.Put(buf)
}
