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

package reactor

import (
	"sync/atomic"
)

// Priority orders how channels are drained within one poll batch: high
// strictly before normal, normal strictly before low.
type Priority int8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

const (
	eventNone  = 0
	eventRead  = 0x001
	eventWrite = 0x004
)

// EventCallback is invoked from the owning loop's goroutine only.
type EventCallback func()

// Channel binds interest in readability/writability of one file descriptor
// to callbacks, within exactly one owning Loop. It does not own fd: the fd
// belongs to whichever component opened it (socket, timer, wake-up eventfd).
type Channel struct {
	loop *Loop
	fd   int

	events  int32
	revents int32

	priority Priority

	handling atomic.Bool
	tieGen   *atomic.Uint64
	tieWant  uint64
	tied     bool

	onRead  EventCallback
	onWrite EventCallback
	onClose EventCallback
	onError EventCallback

	index int // poller bookkeeping, e.g. epoll_ctl state
}

// NewChannel creates a Channel for fd on loop with no interest registered.
func NewChannel(loop *Loop, fd int) *Channel {
	return &Channel{
		loop:     loop,
		fd:       fd,
		priority: PriorityNormal,
		index:    -1,
	}
}

func (c *Channel) Fd() int             { return c.fd }
func (c *Channel) Events() int32       { return c.events }
func (c *Channel) Revents() int32      { return c.revents }
func (c *Channel) SetRevents(r int32)  { c.revents = r }
func (c *Channel) Priority() Priority  { return c.priority }
func (c *Channel) SetPriority(p Priority) { c.priority = p }
func (c *Channel) IsNoneEvent() bool   { return c.events == eventNone }
func (c *Channel) IsWriting() bool     { return c.events&eventWrite != 0 }
func (c *Channel) IsReading() bool     { return c.events&eventRead != 0 }
func (c *Channel) Index() int          { return c.index }
func (c *Channel) SetIndex(i int)      { c.index = i }
func (c *Channel) OwnerLoop() *Loop    { return c.loop }

func (c *Channel) SetReadCallback(cb EventCallback)  { c.onRead = cb }
func (c *Channel) SetWriteCallback(cb EventCallback) { c.onWrite = cb }
func (c *Channel) SetCloseCallback(cb EventCallback) { c.onClose = cb }
func (c *Channel) SetErrorCallback(cb EventCallback) { c.onError = cb }

// Tie binds the channel's dispatch to a generation counter owned by some
// reference-counted object (e.g. a TCP connection); HandleEvent skips
// dispatch once gen no longer equals the counter's current value. This is
// the generation-counter substitute for the weak_ptr "tie" pattern, per
// the module's ownership design notes.
func (c *Channel) Tie(gen *atomic.Uint64) {
	c.tieGen = gen
	c.tieWant = gen.Load()
	c.tied = true
}

func (c *Channel) EnableReading() {
	c.events |= eventRead
	c.update()
}

func (c *Channel) EnableWriting() {
	c.events |= eventWrite
	c.update()
}

func (c *Channel) DisableWriting() {
	c.events &^= eventWrite
	c.update()
}

func (c *Channel) DisableAll() {
	c.events = eventNone
	c.update()
}

func (c *Channel) update() {
	if c.loop != nil {
		c.loop.updateChannel(c)
	}
}

// Remove detaches the channel from its loop's poller. The caller must have
// disabled all interest first.
func (c *Channel) Remove() {
	if c.loop != nil {
		c.loop.removeChannel(c)
	}
}

// HandleEvent dispatches the callbacks matching Revents(). Must only be
// called from the owning loop's goroutine.
func (c *Channel) HandleEvent() {
	if c.tied {
		if c.tieGen.Load() != c.tieWant {
			return
		}
	}

	c.handling.Store(true)
	defer c.handling.Store(false)

	if c.revents&0x010 != 0 && c.revents&eventRead == 0 { // POLLHUP without POLLIN
		if c.onClose != nil {
			c.onClose()
		}
		return
	}

	if c.revents&0x008 != 0 { // POLLERR
		if c.onError != nil {
			c.onError()
		}
	}

	if c.revents&(eventRead|0x002|0x2000) != 0 { // POLLIN | POLLPRI | POLLRDHUP
		if c.onRead != nil {
			c.onRead()
		}
	}

	if c.revents&eventWrite != 0 {
		if c.onWrite != nil {
			c.onWrite()
		}
	}
}
