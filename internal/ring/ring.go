// Package ring holds the serial receive ring buffer and the scanner that
// extracts framed commands from it.
//
// The buffer is single-producer/single-consumer without a lock. The producer
// (the DMA engine on hardware, Buffer.Write here) fills bytes ahead of the
// write cursor and then publishes the cursor. The consumer only reads and
// clears bytes between its own read cursor and the published write cursor.
//
// Cursors are free-running byte counts; the position inside the backing
// array is the count modulo the capacity. This keeps a completely full
// buffer distinct from an empty one.
package ring

import (
	"fmt"
	"sync/atomic"
)

// DefaultCapacity of the receive buffer
const DefaultCapacity = 256

// Buffer is a fixed-capacity circular byte buffer.
type Buffer struct {
	data    []byte
	written atomic.Uint64
}

// NewBuffer creates a zero-filled buffer of the given capacity.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 16 || capacity > 0xFFFF {
		return nil, fmt.Errorf("ring capacity %d out of range [16, 65535]", capacity)
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Written returns the producer cursor: the total number of bytes ever written.
func (b *Buffer) Written() uint64 {
	return b.written.Load()
}

// WriteIndex returns the producer cursor as a position in the backing array.
func (b *Buffer) WriteIndex() int {
	return b.Offset(b.Written())
}

// Write is the producer side: it copies p at the write cursor, wrapping at
// the end, and then advances the cursor. Like the DMA engine it overwrites
// whatever is there; a producer more than Cap bytes ahead of the consumer
// loses data.
func (b *Buffer) Write(p []byte) {
	w := b.Written()
	for len(p) > 0 {
		n := copy(b.data[b.Offset(w):], p)
		p = p[n:]
		w += uint64(n)
		b.written.Store(w)
	}
}

// Offset maps a cursor to its position in the backing array.
func (b *Buffer) Offset(pos uint64) int {
	return int(pos % uint64(len(b.data)))
}

// At returns the byte at cursor pos.
func (b *Buffer) At(pos uint64) byte {
	return b.data[b.Offset(pos)]
}

// CopyOut copies len(dst) bytes starting at cursor pos into dst, splitting
// the copy when the span wraps past the end. len(dst) must not exceed Cap.
func (b *Buffer) CopyOut(dst []byte, pos uint64) {
	n := copy(dst, b.data[b.Offset(pos):])
	if n < len(dst) {
		copy(dst[n:], b.data[:len(dst)-n])
	}
}

// Zero clears the bytes from cursor from up to (not including) cursor to.
// A span of Cap or more clears the whole buffer.
func (b *Buffer) Zero(from, to uint64) {
	if to <= from {
		return
	}
	if to-from >= uint64(len(b.data)) {
		clear(b.data)
		return
	}
	start, end := b.Offset(from), b.Offset(to)
	if end > start {
		clear(b.data[start:end])
		return
	}
	clear(b.data[start:])
	clear(b.data[:end])
}
