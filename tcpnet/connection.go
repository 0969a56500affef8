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

//go:build linux

package tcpnet

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nabbar/rpcx/buffer"
	"github.com/nabbar/rpcx/reactor"
)

// ConnID identifies a connection within the scope of one Server or Client.
type ConnID int64

// State is a connection's position in its monotonic lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// DefaultHighWaterMark is the queued-output threshold (bytes) above which
// the high-water-mark callback fires, per the connection option default.
const DefaultHighWaterMark = 64 * 1024 * 1024

type (
	ConnectionCallback    func(c *Connection)
	MessageCallback       func(c *Connection, in *buffer.Buffer)
	WriteCompleteCallback func(c *Connection)
	HighWaterMarkCallback func(c *Connection, queued int)
	CloseCallback         func(c *Connection)
)

// Connection is a buffered, stateful duplex TCP stream: one socket, one
// reactor Channel, one input buffer, a queue of pending output buffers.
// Every method except Send/Shutdown (which may be called from any
// goroutine) must run on the owning Loop's goroutine.
type Connection struct {
	loop *reactor.Loop
	id   ConnID

	sock *socket
	ch   *reactor.Channel

	state atomic.Int32
	gen   atomic.Uint64 // tie generation; bumped on close so late callbacks no-op

	local *Addr
	peer  *Addr

	in  *buffer.Buffer
	out []*buffer.Buffer

	highWaterMark int

	onConn  ConnectionCallback
	onMsg   MessageCallback
	onWrite WriteCompleteCallback
	onHWM   HighWaterMarkCallback
	onClose CloseCallback

	ctxMu sync.RWMutex
	ctx   interface{}

	sentBytes     int64
	receivedBytes int64
}

// newConnection wraps an already-connected socket. The caller must call
// Establish once callbacks are configured.
func newConnection(loop *reactor.Loop, sock *socket, id ConnID, local, peer *Addr) *Connection {
	c := &Connection{
		loop:          loop,
		id:            id,
		sock:          sock,
		local:         local,
		peer:          peer,
		in:            buffer.New(),
		highWaterMark: DefaultHighWaterMark,
	}
	c.state.Store(int32(StateConnecting))

	c.ch = reactor.NewChannel(loop, sock.Fd())
	c.ch.Tie(&c.gen)
	c.ch.SetReadCallback(c.handleRead)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetCloseCallback(c.handleClose)
	c.ch.SetErrorCallback(c.handleError)

	return c
}

func (c *Connection) ID() ConnID       { return c.id }
func (c *Connection) Loop() *reactor.Loop { return c.loop }
func (c *Connection) LocalAddr() *Addr { return c.local }
func (c *Connection) PeerAddr() *Addr  { return c.peer }
func (c *Connection) Connected() bool  { return State(c.state.Load()) == StateConnected }
func (c *Connection) State() State     { return State(c.state.Load()) }

func (c *Connection) SetContext(v interface{}) {
	c.ctxMu.Lock()
	c.ctx = v
	c.ctxMu.Unlock()
}

func (c *Connection) Context() interface{} {
	c.ctxMu.RLock()
	defer c.ctxMu.RUnlock()
	return c.ctx
}

func (c *Connection) SetConnectionCallback(cb ConnectionCallback)       { c.onConn = cb }
func (c *Connection) SetMessageCallback(cb MessageCallback)             { c.onMsg = cb }
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.onWrite = cb }
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { c.onHWM = cb }
func (c *Connection) SetCloseCallback(cb CloseCallback)                 { c.onClose = cb }
func (c *Connection) SetHighWaterMark(n int)                            { c.highWaterMark = n }

// Establish transitions connecting -> connected and arms read interest.
// Called once, on the owning loop, right after construction.
func (c *Connection) Establish() {
	c.loop.AssertInLoopGoroutine()
	c.state.Store(int32(StateConnected))
	c.ch.EnableReading()
	if c.onConn != nil {
		c.onConn(c)
	}
}

// Send schedules data for write. If called on the owning loop with no
// pending output, it attempts a direct write first; any unwritten
// remainder is queued and write-interest enabled. Off-loop callers have
// their payload copied and scheduled via RunInLoop.
func (c *Connection) Send(data []byte) {
	if c.loop.IsInLoopGoroutine() {
		c.sendInLoop(data)
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.loop.RunInLoop(func() { c.sendInLoop(cp) })
}

func (c *Connection) sendInLoop(data []byte) {
	if State(c.state.Load()) != StateConnected {
		return
	}

	wasEmpty := len(c.out) == 0

	if wasEmpty {
		n, e := c.sock.Write(data)
		if e != nil {
			if !isWouldBlock(e) {
				return
			}
			n = 0
		}
		if n == len(data) {
			if c.onWrite != nil {
				c.loop.RunInLoop(func() { c.onWrite(c) })
			}
			return
		}
		data = data[n:]
	}

	before := c.queuedBytes()
	b := buffer.NewFromBytes(append([]byte(nil), data...))
	c.out = append(c.out, b)
	after := before + b.ReadableBytes()

	if before < c.highWaterMark && after >= c.highWaterMark && c.onHWM != nil {
		c.onHWM(c, after)
	}

	if !c.ch.IsWriting() {
		c.ch.EnableWriting()
	}
}

func (c *Connection) queuedBytes() int {
	n := 0
	for _, b := range c.out {
		n += b.ReadableBytes()
	}
	return n
}

// Shutdown half-closes the write side once queued output drains; if
// nothing is queued it half-closes immediately.
func (c *Connection) Shutdown() {
	c.loop.RunInLoop(func() {
		if State(c.state.Load()) != StateConnected {
			return
		}
		c.state.Store(int32(StateDisconnecting))
		if !c.ch.IsWriting() {
			_ = c.sock.ShutdownWrite()
		}
	})
}

func (c *Connection) handleRead() {
	buf := make([]byte, 65536)
	n, e := c.sock.Read(buf)
	switch {
	case n > 0:
		c.receivedBytes += int64(n)
		c.in.Append(buf[:n])
		if c.onMsg != nil {
			c.onMsg(c, c.in)
		}
	case n == 0:
		c.handleClose()
	default:
		if !isWouldBlock(e) {
			c.handleError()
		}
	}
}

func (c *Connection) handleWrite() {
	if !c.ch.IsWriting() {
		return
	}

	for len(c.out) > 0 {
		b := c.out[0]
		n, e := c.sock.Write(b.Peek())
		if e != nil {
			if !isWouldBlock(e) {
				break
			}
			break
		}
		b.Consume(n)
		c.sentBytes += int64(n)
		if b.ReadableBytes() > 0 {
			break
		}
		c.out = c.out[1:]
	}

	if len(c.out) == 0 {
		c.ch.DisableWriting()
		if c.onWrite != nil {
			c.onWrite(c)
		}
		if State(c.state.Load()) == StateDisconnecting {
			_ = c.sock.ShutdownWrite()
		}
	}
}

func (c *Connection) handleClose() {
	if State(c.state.Load()) == StateDisconnected {
		return
	}
	c.state.Store(int32(StateDisconnected))
	c.gen.Add(1)
	c.ch.DisableAll()

	if c.onConn != nil {
		c.onConn(c)
	}
	if c.onClose != nil {
		c.onClose(c)
	}
}

func (c *Connection) handleError() {
	_, _ = c.sock.ErrorCode()
}

// destroy removes the channel from the poller and closes the socket; the
// server/client lifetime manager calls this after onClose has run.
func (c *Connection) destroy() {
	c.ch.Remove()
	_ = c.sock.Close()
}

func (c *Connection) BytesSent() int64     { return c.sentBytes }
func (c *Connection) BytesReceived() int64 { return c.receivedBytes }

func isWouldBlock(e error) bool {
	return e == unix.EAGAIN || e == unix.EWOULDBLOCK
}
