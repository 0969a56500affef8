/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package buffer implements a growable byte store with three non-overlapping
// zones - prependable, readable, writable - the layout muduo's net::Buffer
// uses for TCP input/output queues:
//
//	+-------------------+------------------+------------------+
//	| prependable bytes  |  readable bytes  |  writable bytes  |
//	+-------------------+------------------+------------------+
//	0            <=   readerIndex   <=  writerIndex   <=     cap
package buffer

import (
	"encoding/binary"
	"io"
)

const (
	// CheapPrepend is the reserve kept at the front of every Buffer so a
	// 4-byte length frame can be stamped in place without a copy.
	CheapPrepend = 8
	// InitialSize is the writable capacity a freshly created Buffer holds.
	InitialSize = 1024
)

var crlf = []byte{'\r', '\n'}

// Buffer is a non-thread-safe byte queue. Each TCP connection owns exactly
// one input Buffer and one queue of output Buffers; concurrent access across
// goroutines is excluded by the owning reactor loop.
type Buffer struct {
	buf    []byte
	rIndex int
	wIndex int
}

// New returns an empty Buffer with the default cheap-prepend reserve.
func New() *Buffer {
	return NewSize(InitialSize)
}

// NewSize returns an empty Buffer whose writable region holds at least size
// bytes without growing.
func NewSize(size int) *Buffer {
	return &Buffer{
		buf:    make([]byte, CheapPrepend+size),
		rIndex: CheapPrepend,
		wIndex: CheapPrepend,
	}
}

// NewFromBytes returns a Buffer pre-loaded with data as its readable region.
func NewFromBytes(data []byte) *Buffer {
	b := &Buffer{
		buf:    make([]byte, CheapPrepend+len(data)),
		rIndex: CheapPrepend,
		wIndex: CheapPrepend,
	}
	b.Append(data)
	return b
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.wIndex - b.rIndex }

// WritableBytes returns the number of bytes that can be appended without growing.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.wIndex }

// PrependableBytes returns the number of bytes free before the readable region.
func (b *Buffer) PrependableBytes() int { return b.rIndex }

// Peek returns the readable region without consuming it. The slice aliases
// the buffer's storage and is only valid until the next mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.rIndex:b.wIndex] }

// FindCRLF returns the offset (relative to Peek()) of the first CRLF in the
// readable region, or -1 if none is present.
func (b *Buffer) FindCRLF() int {
	readable := b.Peek()
	for i := 0; i+1 < len(readable); i++ {
		if readable[i] == '\r' && readable[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// Consume advances the read cursor by length bytes, clamped to ReadableBytes.
func (b *Buffer) Consume(length int) {
	if length < b.ReadableBytes() {
		b.rIndex += length
	} else {
		b.ConsumeAll()
	}
}

// ConsumeAll resets both cursors to the start of the readable region,
// reclaiming every byte as writable/prependable space.
func (b *Buffer) ConsumeAll() {
	b.rIndex = CheapPrepend
	b.wIndex = CheapPrepend
}

// ConsumeAllAsBytes copies the entire readable region out, then discards it.
func (b *Buffer) ConsumeAllAsBytes() []byte {
	out := make([]byte, b.ReadableBytes())
	copy(out, b.Peek())
	b.ConsumeAll()
	return out
}

// ConsumeAsBytes copies length readable bytes out, then discards them.
func (b *Buffer) ConsumeAsBytes(length int) []byte {
	out := make([]byte, length)
	copy(out, b.buf[b.rIndex:b.rIndex+length])
	b.Consume(length)
	return out
}

// Append copies data into the writable region, growing the buffer if needed.
func (b *Buffer) Append(data []byte) {
	b.ensureWritable(len(data))
	copy(b.buf[b.wIndex:], data)
	b.wIndex += len(data)
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// AppendInt32 appends a big-endian int32 to the writable region.
func (b *Buffer) AppendInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Append(tmp[:])
}

// Read copies up to len(p) readable bytes into p, consuming them.
func (b *Buffer) Read(p []byte) (int, error) {
	n := b.ReadableBytes()
	if n == 0 {
		return 0, io.EOF
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, b.buf[b.rIndex:b.rIndex+n])
	b.Consume(n)
	return n, nil
}

// ReadInt32 consumes and returns a big-endian int32 from the front of the
// readable region. The caller must ensure ReadableBytes() >= 4.
func (b *Buffer) ReadInt32() int32 {
	v := b.PeekInt32()
	b.Consume(4)
	return v
}

// PeekInt32 reads a big-endian int32 from the front of the readable region
// without consuming it. The caller must ensure ReadableBytes() >= 4.
func (b *Buffer) PeekInt32() int32 {
	return int32(binary.BigEndian.Uint32(b.buf[b.rIndex : b.rIndex+4]))
}

// Prepend writes data immediately before the readable region, consuming
// prependable space. The caller must ensure PrependableBytes() >= len(data).
func (b *Buffer) Prepend(data []byte) {
	b.rIndex -= len(data)
	copy(b.buf[b.rIndex:], data)
}

// PrependInt32 prepends a big-endian int32 in place, the operation the
// length-prefixed RPC frame format relies on to avoid a copy.
func (b *Buffer) PrependInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Prepend(tmp[:])
}

// BeginWrite returns the writable region as a slice suitable for scatter
// reads (e.g. readv-style Recv implementations).
func (b *Buffer) BeginWrite() []byte { return b.buf[b.wIndex:] }

// HasWritten advances the write cursor after external code has filled
// BeginWrite()'s slice directly (used by the connection's Read path).
func (b *Buffer) HasWritten(length int) { b.wIndex += length }

// ensureWritable grows or compacts the buffer so at least length bytes of
// writable space are available, preserving the cheap-prepend reserve.
func (b *Buffer) ensureWritable(length int) {
	if b.WritableBytes() >= length {
		return
	}

	if b.WritableBytes()+b.PrependableBytes() < length+CheapPrepend {
		grown := make([]byte, b.wIndex+length)
		copy(grown, b.buf)
		b.buf = grown
		return
	}

	readable := b.ReadableBytes()
	copy(b.buf[CheapPrepend:], b.buf[b.rIndex:b.wIndex])
	b.rIndex = CheapPrepend
	b.wIndex = b.rIndex + readable
}
