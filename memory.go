package main

import "sync"

// BufferPool recycles the short-lived byte slices of the I/O path: header
// read buffers and encoded response bytes. Payload read buffers are never
// pooled because decoded commands may alias them.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 0, 1024)
			},
		},
	}
}

func (bp *BufferPool) Get(size int) []byte {
	buf := bp.pool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) <= 64*1024 { // Don't pool very large buffers
		bp.pool.Put(buf[:0])
	}
}
